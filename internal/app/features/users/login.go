package users

import (
	"net/http"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/shared"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/ratelimit"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/validators"
	"go.uber.org/zap"
)

var errTooManyAttempts = apierr.New(apierr.RateLimited, "too many login attempts, try again later")

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
	User        profile   `json:"user"`
}

// HandleLogin exchanges email and password for an access token.
// POST /login
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := validators.DecodeJSON(w, r, &req); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	email := identity.NormalizeEmail(req.Email)
	key := ratelimit.NormalizeKey(email)

	if h.Logins != nil && !h.Logins.Allow(key) {
		h.Log.Warn("login rate limited",
			zap.String("email", email),
			zap.String("ip", ratelimit.ClientIP(r)))
		apierr.Write(w, h.Log, errTooManyAttempts)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "login")
	defer cancel()

	sess, err := h.Provider.SignIn(ctx, email, req.Password)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	acct, err := h.Accounts.GetByIdpUserID(ctx, sess.Identity.Subject)
	if err != nil {
		apierr.Write(w, h.Log, apierr.StoreFailure(err))
		return
	}

	if h.Logins != nil {
		h.Logins.Reset(key)
	}
	if h.History != nil {
		if err := h.History.CreateFrom(ctx, r, acct.ID, h.Provider.Name()); err != nil {
			h.Log.Warn("record login failed", zap.String("account", acct.ID.Hex()), zap.Error(err))
		}
	}
	shared.OK(w, http.StatusOK, loginResponse{
		AccessToken: sess.AccessToken,
		ExpiresAt:   sess.ExpiresAt,
		User:        toProfile(acct),
	})
}
