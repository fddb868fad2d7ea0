// Package comments serves task comments. Creation and listing hang off the
// task; edits and deletes address the comment directly and are limited to
// its author.
package comments

import (
	"context"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/gateway"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type Lister interface {
	PageByTask(ctx context.Context, codec *paging.Codec, taskID primitive.ObjectID, q paging.Query) (paging.Page[models.Comment], error)
}

type Handler struct {
	Gateway  *gateway.Gateway
	Comments Lister
	Cursors  *paging.Codec
	Log      *zap.Logger
}

func NewHandler(gw *gateway.Gateway, comments Lister, cursors *paging.Codec, logger *zap.Logger) *Handler {
	return &Handler{Gateway: gw, Comments: comments, Cursors: cursors, Log: logger}
}
