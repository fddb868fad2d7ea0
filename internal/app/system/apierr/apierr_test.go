package apierr_test

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"go.uber.org/zap"
)

type denied struct{}

func (denied) Error() string { return "denied" }
func (denied) ErrorCode() apierr.Code { return apierr.NotOwner }

func TestCodeOf(t *testing.T) {
	notFound := apierr.New(apierr.NotFound, "missing")

	tests := []struct {
		name string
		err  error
		want apierr.Code
	}{
		{"direct", notFound, apierr.NotFound},
		{"wrapped", fmt.Errorf("load: %w", notFound), apierr.NotFound},
		{"coded type", denied{}, apierr.NotOwner},
		{"plain", errors.New("boom"), apierr.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := apierr.CodeOf(tt.err); got != tt.want {
				t.Errorf("CodeOf: got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeStatus(t *testing.T) {
	tests := []struct {
		code apierr.Code
		want int
	}{
		{apierr.AuthRequired, http.StatusUnauthorized},
		{apierr.NotOwner, http.StatusForbidden},
		{apierr.NotMember, http.StatusForbidden},
		{apierr.NotAuthor, http.StatusForbidden},
		{apierr.Forbidden, http.StatusForbidden},
		{apierr.NotFound, http.StatusNotFound},
		{apierr.Validation, http.StatusBadRequest},
		{apierr.Conflict, http.StatusConflict},
		{apierr.Upstream, http.StatusServiceUnavailable},
		{apierr.Internal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.Status(); got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestWrite_HidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	apierr.Write(rec, zap.NewNop(), errors.New("mongo: connection string leaked"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status: got %d, want 500", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "leaked") {
		t.Errorf("internal error text leaked into response: %s", rec.Body.String())
	}
}

func TestWrite_ValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	apierr.Write(rec, zap.NewNop(), apierr.Invalid("name is required", map[string]string{"name": "is required"}))

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d, want 400", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"code":"VALIDATION"`) || !strings.Contains(body, `"name":"is required"`) {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestStoreFailure(t *testing.T) {
	if apierr.StoreFailure(nil) != nil {
		t.Error("nil should stay nil")
	}
	notFound := apierr.New(apierr.NotFound, "task not found")
	if got := apierr.StoreFailure(notFound); got != notFound {
		t.Errorf("coded error should pass through, got %v", got)
	}
	got := apierr.StoreFailure(errors.New("connection reset"))
	if !errors.Is(got, apierr.ErrStore) || apierr.CodeOf(got) != apierr.Upstream {
		t.Errorf("raw error should become ErrStore, got %v", got)
	}
}
