package health

import (
	"context"
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/realtime"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// StatsSource reports the live connection table. *realtime.Manager
// satisfies it.
type StatsSource interface {
	Stats() realtime.Stats
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Client   *mongo.Client
	Realtime StatsSource
	Log      *zap.Logger
}

// NewHandler constructs a health Handler. rt may be nil.
func NewHandler(client *mongo.Client, rt StatsSource, logger *zap.Logger) *Handler {
	return &Handler{
		Client:   client,
		Realtime: rt,
		Log:      logger,
	}
}

type healthResponse struct {
	Status   string          `json:"status"`
	Database string          `json:"database"`
	Message  string          `json:"message,omitempty"`
	Error    string          `json:"error,omitempty"`
	Realtime *realtime.Stats `json:"realtime,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "database":"connected", "realtime":{"connections":3,"rooms":2} }
//
// On DB failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…" }
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	resp := healthResponse{
		Status:   "ok",
		Database: "connected",
	}
	if h.Realtime != nil {
		s := h.Realtime.Stats()
		resp.Realtime = &s
	}

	if err := h.Client.Ping(ctx, readpref.Primary()); err != nil {
		h.Log.Error("health-check: mongo ping failed", zap.Error(err))
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		apierr.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	apierr.WriteJSON(w, http.StatusOK, resp)
}
