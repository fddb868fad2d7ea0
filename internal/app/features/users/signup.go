package users

import (
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/shared"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/htmlsanitize"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/validators"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.uber.org/zap"
)

type signupRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Gender   string `json:"gender" validate:"required,oneof=MALE FEMALE OTHER PREFER_NOT_TO_SAY"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// HandleSignup registers the identity with the provider and creates the
// Account bound to it.
// POST /signup
func (h *Handler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := validators.DecodeJSON(w, r, &req); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	name := htmlsanitize.Text(req.Name)
	if name == "" {
		apierr.Write(w, h.Log, apierr.Invalid("name is required", map[string]string{"name": "is required"}))
		return
	}
	email := identity.NormalizeEmail(req.Email)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "signup")
	defer cancel()

	id, err := h.Provider.SignUp(ctx, email, req.Password)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	acct, err := h.Accounts.Create(ctx, models.Account{
		IdpUserID: id.Subject,
		Name:      name,
		Gender:    req.Gender,
		Email:     email,
		Role:      models.RoleUser,
	})
	if err != nil {
		h.Log.Warn("identity created without account",
			zap.String("provider", h.Provider.Name()),
			zap.String("subject", id.Subject),
			zap.Error(err))
		apierr.Write(w, h.Log, apierr.StoreFailure(err))
		return
	}

	h.Log.Info("account created", zap.String("account", acct.ID.Hex()))
	shared.OK(w, http.StatusCreated, toProfile(acct))
}
