// Package users serves signup, login, the caller's profile and account
// lookup by email.
package users

import (
	"context"
	"net/http"

	accountstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/accounts"
	loginstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/logins"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/ratelimit"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// AccountStore is the subset of the account store the handlers use.
type AccountStore interface {
	Create(ctx context.Context, a models.Account) (models.Account, error)
	GetByIdpUserID(ctx context.Context, subject string) (models.Account, error)
	GetByEmail(ctx context.Context, email string) (models.Account, error)
}

// LoginHistory records successful logins.
type LoginHistory interface {
	CreateFrom(ctx context.Context, r *http.Request, accountID primitive.ObjectID, provider string) error
	Recent(ctx context.Context, accountID primitive.ObjectID, limit int64) ([]models.LoginRecord, error)
}

// Handler is the feature-level handler for accounts.
type Handler struct {
	Provider identity.Provider
	Accounts AccountStore
	History  LoginHistory       // optional
	Logins   *ratelimit.Limiter // failed logins per email
	Log      *zap.Logger
}

var (
	_ AccountStore = (*accountstore.Store)(nil)
	_ LoginHistory = (*loginstore.Store)(nil)
)

func NewHandler(provider identity.Provider, accounts AccountStore, history LoginHistory, logins *ratelimit.Limiter, logger *zap.Logger) *Handler {
	return &Handler{
		Provider: provider,
		Accounts: accounts,
		History:  history,
		Logins:   logins,
		Log:      logger,
	}
}

// profile is the public view of an Account.
type profile struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Gender string `json:"gender"`
	Role   string `json:"role"`
}

func toProfile(a models.Account) profile {
	return profile{
		ID:     a.ID.Hex(),
		Name:   a.Name,
		Email:  a.Email,
		Gender: a.Gender,
		Role:   a.Role,
	}
}
