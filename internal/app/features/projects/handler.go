// Package projects serves the project endpoints and project membership.
// Writes go through the mutation gateway; list reads go straight to the
// store, scoped to the caller's memberships.
package projects

import (
	"context"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/gateway"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Lister pages the projects an account belongs to.
type Lister interface {
	PageForMember(ctx context.Context, codec *paging.Codec, accountID primitive.ObjectID, status string, q paging.Query) (paging.Page[models.Project], error)
}

// Directory resolves member ids to accounts for the project detail view.
type Directory interface {
	ListByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Account, error)
}

type Handler struct {
	Gateway  *gateway.Gateway
	Projects Lister
	Accounts Directory
	Cursors  *paging.Codec
	Log      *zap.Logger
}

func NewHandler(gw *gateway.Gateway, projects Lister, accounts Directory, cursors *paging.Codec, logger *zap.Logger) *Handler {
	return &Handler{
		Gateway:  gw,
		Projects: projects,
		Accounts: accounts,
		Cursors:  cursors,
		Log:      logger,
	}
}

type memberView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// detail is a project with its members resolved.
type detail struct {
	models.Project
	Members []memberView `json:"members"`
}
