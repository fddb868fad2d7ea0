// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"go.uber.org/zap"
)

// Handler renders router-level failures in the API error envelope.
type Handler struct {
	Log *zap.Logger
}

// NewHandler constructs an errors Handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

var errNoRoute = apierr.New(apierr.NotFound, "route not found")

// NotFound answers unknown routes.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Log.Debug("no route", zap.String("method", r.Method), zap.String("path", r.URL.Path))
	apierr.Write(w, h.Log, errNoRoute)
}

// MethodNotAllowed answers a known route called with the wrong method.
// The body keeps the envelope; the status is 405.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	apierr.WriteJSON(w, http.StatusMethodNotAllowed, map[string]any{
		"success": false,
		"code":    apierr.Validation,
		"message": "method " + r.Method + " not allowed on " + r.URL.Path,
	})
}
