// Package identity verifies bearer credentials against an identity provider
// and exposes the provider's signup and password login.
//
// Two providers exist:
//   - LocalProvider keeps bcrypt password hashes in Mongo and issues HS256 JWTs
//   - SupabaseProvider delegates to a Supabase GoTrue endpoint
//
// Verification failures are split in two: a credential that is missing,
// malformed or rejected is AUTH_REQUIRED, while a provider that cannot be
// reached is UPSTREAM_UNAVAILABLE. Callers must never treat the latter as a
// rejection.
package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/metrics"
)

var (
	ErrNoCredential      = apierr.New(apierr.AuthRequired, "authentication required")
	ErrInvalidCredential = apierr.New(apierr.AuthRequired, "invalid or expired token")
	ErrBadLogin          = apierr.New(apierr.AuthRequired, "invalid email or password")
	ErrEmailTaken        = apierr.New(apierr.Conflict, "an account with this email already exists")
	ErrUnavailable       = apierr.New(apierr.Upstream, "identity provider unavailable")
)

// Identity is what a provider vouches for: a stable subject id and an email.
type Identity struct {
	Subject string
	Email   string
}

// Session is the result of a successful password login.
type Session struct {
	AccessToken string
	ExpiresAt   time.Time
	Identity    Identity
}

// Verifier checks a bearer credential.
type Verifier interface {
	Verify(ctx context.Context, credential string) (Identity, error)
}

// Provider is a Verifier that can also register and log in users.
type Provider interface {
	Verifier
	Name() string
	SignUp(ctx context.Context, email, password string) (Identity, error)
	SignIn(ctx context.Context, email, password string) (Session, error)
}

// BearerToken returns the token from an "Authorization: Bearer" header, or
// "" when the header is absent or uses another scheme.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// NormalizeEmail lowercases and trims an email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func observe(provider string, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrUnavailable):
		result = "unavailable"
	default:
		result = "invalid"
	}
	metrics.IdentityVerifications.WithLabelValues(provider, result).Inc()
}
