package users

import (
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/shared"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/auth"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-playground/validator/v10"
)

var lookupEmail = validator.New()

const recentLogins = 20

// ServeProfile returns the caller's own account.
// GET /get-profile
func (h *Handler) ServeProfile(w http.ResponseWriter, r *http.Request) {
	acct, ok := auth.CurrentAccount(r)
	if !ok {
		apierr.Write(w, h.Log, auth.ErrNoAccount)
		return
	}
	shared.OK(w, http.StatusOK, toProfile(*acct))
}

// ServeLookup finds an account by email so owners can add it to a project.
// GET /users/lookup?email=
func (h *Handler) ServeLookup(w http.ResponseWriter, r *http.Request) {
	email := identity.NormalizeEmail(query.Get(r, "email"))
	if err := lookupEmail.Var(email, "required,email"); err != nil {
		apierr.Write(w, h.Log, apierr.Invalid("email must be a valid email",
			map[string]string{"email": "must be a valid email"}))
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "lookup account")
	defer cancel()

	acct, err := h.Accounts.GetByEmail(ctx, email)
	if err != nil {
		apierr.Write(w, h.Log, apierr.StoreFailure(err))
		return
	}
	shared.OK(w, http.StatusOK, toProfile(acct))
}

// ServeLogins returns the caller's most recent logins, newest first.
// GET /users/me/logins
func (h *Handler) ServeLogins(w http.ResponseWriter, r *http.Request) {
	acct, ok := auth.CurrentAccount(r)
	if !ok {
		apierr.Write(w, h.Log, auth.ErrNoAccount)
		return
	}
	if h.History == nil {
		shared.OK(w, http.StatusOK, []models.LoginRecord{})
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "list logins")
	defer cancel()

	recs, err := h.History.Recent(ctx, acct.ID, recentLogins)
	if err != nil {
		apierr.Write(w, h.Log, apierr.StoreFailure(err))
		return
	}
	shared.OK(w, http.StatusOK, recs)
}
