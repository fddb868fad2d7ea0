// Package auth resolves the bearer credential on each request to an Account.
//
// Authenticate verifies the credential with the identity provider, maps the
// provider subject to the Account bound to it and stores the Account in the
// request context. The WebSocket handshake uses Resolve directly.
package auth

import (
	"context"
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.uber.org/zap"
)

// ErrNoAccount is returned when a valid identity has no Account yet.
var ErrNoAccount = apierr.New(apierr.AuthRequired, "no account exists for this identity")

// AccountResolver looks up the Account bound to a provider subject. It
// returns an error coded NOT_FOUND when there is none.
type AccountResolver interface {
	GetByIdpUserID(ctx context.Context, subject string) (models.Account, error)
}

// Middleware authenticates requests.
type Middleware struct {
	verifier identity.Verifier
	accounts AccountResolver
	log      *zap.Logger
}

func NewMiddleware(verifier identity.Verifier, accounts AccountResolver, logger *zap.Logger) *Middleware {
	return &Middleware{verifier: verifier, accounts: accounts, log: logger}
}

// Resolve verifies credential and returns the Account it belongs to.
// A missing or rejected credential is AUTH_REQUIRED; a provider or store
// outage is UPSTREAM_UNAVAILABLE.
func (m *Middleware) Resolve(ctx context.Context, credential string) (models.Account, error) {
	vctx, cancel := timeouts.WithTimeout(ctx, timeouts.Verify(), m.log, "verify credential")
	id, err := m.verifier.Verify(vctx, credential)
	cancel()
	if err != nil {
		return models.Account{}, err
	}

	actx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), m.log, "resolve account")
	defer cancel()
	acct, err := m.accounts.GetByIdpUserID(actx, id.Subject)
	if err != nil {
		if apierr.CodeOf(err) == apierr.NotFound {
			return models.Account{}, ErrNoAccount
		}
		return models.Account{}, apierr.StoreFailure(err)
	}
	return acct, nil
}

// Authenticate rejects requests without a valid bearer credential.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		acct, err := m.Resolve(r.Context(), identity.BearerToken(r))
		if err != nil {
			apierr.Write(w, m.log, err)
			return
		}
		next.ServeHTTP(w, WithAccount(r, &acct))
	})
}

type ctxKey string

const currentAccountKey ctxKey = "currentAccount"

// CurrentAccount returns the authenticated Account, if any.
func CurrentAccount(r *http.Request) (*models.Account, bool) {
	a, ok := r.Context().Value(currentAccountKey).(*models.Account)
	return a, ok && a != nil
}

// WithAccount returns r carrying acct. Handler tests use it to skip
// Authenticate.
func WithAccount(r *http.Request, acct *models.Account) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentAccountKey, acct))
}
