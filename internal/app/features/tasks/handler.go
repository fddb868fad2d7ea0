// Package tasks serves the task endpoints nested under a project.
package tasks

import (
	"context"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/gateway"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Lister pages a project's live tasks.
type Lister interface {
	PageByProject(ctx context.Context, codec *paging.Codec, projectID primitive.ObjectID, q paging.Query) (paging.Page[models.Task], error)
}

type Handler struct {
	Gateway *gateway.Gateway
	Tasks   Lister
	Cursors *paging.Codec
	Log     *zap.Logger
}

func NewHandler(gw *gateway.Gateway, tasks Lister, cursors *paging.Codec, logger *zap.Logger) *Handler {
	return &Handler{Gateway: gw, Tasks: tasks, Cursors: cursors, Log: logger}
}
