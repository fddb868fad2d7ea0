package projects

import (
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/shared"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/auth"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/validators"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type addMemberRequest struct {
	UserID string `json:"userId" validate:"required,objectid"`
}

// HandleAddMember adds an existing account to the project.
// ADMIN or owner.
// POST /projects/{id}/members
func (h *Handler) HandleAddMember(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	id, err := shared.PathID(r, "id", "project")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	var req addMemberRequest
	if err := validators.DecodeJSON(w, r, &req); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	memberID, _ := primitive.ObjectIDFromHex(req.UserID)

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "add member")
	defer cancel()

	p, err := h.Gateway.AddMember(ctx, acct, id, memberID)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	shared.OK(w, http.StatusOK, p)
}

// HandleRemoveMember removes an account from the project. The owner cannot
// be removed. ADMIN or owner.
// DELETE /projects/{id}/members/{userId}
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	id, err := shared.PathID(r, "id", "project")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	memberID, err := shared.PathID(r, "userId", "user")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "remove member")
	defer cancel()

	p, err := h.Gateway.RemoveMember(ctx, acct, id, memberID)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	shared.OK(w, http.StatusOK, p)
}
