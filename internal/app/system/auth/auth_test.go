package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/auth"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/identity"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type stubVerifier struct{}

func (stubVerifier) Verify(_ context.Context, credential string) (identity.Identity, error) {
	switch credential {
	case "":
		return identity.Identity{}, identity.ErrNoCredential
	case "good", "orphan", "storefail":
		return identity.Identity{Subject: credential}, nil
	case "down":
		return identity.Identity{}, identity.ErrUnavailable
	default:
		return identity.Identity{}, identity.ErrInvalidCredential
	}
}

type stubAccounts struct{ acct models.Account }

func (s stubAccounts) GetByIdpUserID(_ context.Context, subject string) (models.Account, error) {
	switch subject {
	case "good":
		return s.acct, nil
	case "storefail":
		return models.Account{}, errors.New("connection refused")
	default:
		return models.Account{}, apierr.New(apierr.NotFound, "user not found")
	}
}

func TestAuthenticate(t *testing.T) {
	acct := models.Account{ID: primitive.NewObjectID(), Role: models.RoleUser}
	m := auth.NewMiddleware(stubVerifier{}, stubAccounts{acct: acct}, zap.NewNop())

	var seen *models.Account
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.CurrentAccount(r)
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid", "Bearer good", http.StatusOK},
		{"missing", "", http.StatusUnauthorized},
		{"rejected", "Bearer nope", http.StatusUnauthorized},
		{"no account", "Bearer orphan", http.StatusUnauthorized},
		{"provider down", "Bearer down", http.StatusServiceUnavailable},
		{"store down", "Bearer storefail", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest("GET", "/api/v1/get-profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.want {
				t.Fatalf("status: got %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
			if tt.want == http.StatusOK && (seen == nil || seen.ID != acct.ID) {
				t.Errorf("account not in context: %+v", seen)
			}
		})
	}
}
