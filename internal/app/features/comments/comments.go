package comments

import (
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/shared"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/auth"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/validators"
	"go.uber.org/zap"
)

type contentRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// HandleCreate comments on a task.
// POST /tasks/{taskId}/comments
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	taskID, err := shared.PathID(r, "taskId", "task")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	var req contentRequest
	if err := validators.DecodeJSON(w, r, &req); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create comment")
	defer cancel()

	c, err := h.Gateway.CreateComment(ctx, acct, taskID, req.Content)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	shared.OK(w, http.StatusCreated, c)
}

// ServeList pages a task's comments, oldest first.
// GET /tasks/{taskId}/comments?cursor&limit
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	taskID, err := shared.PathID(r, "taskId", "task")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	q, err := paging.ParseQuery(r, paging.OldestFirst, false)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if _, err := h.Gateway.Authorize(r.Context(), acct, accesspolicy.Task(taskID), accesspolicy.ListComments); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list comments")
	defer cancel()

	page, err := h.Comments.PageByTask(ctx, h.Cursors, taskID, q)
	if err != nil {
		apierr.Write(w, h.Log, apierr.StoreFailure(err))
		return
	}
	shared.List(w, page)
}

// HandleUpdate replaces a comment's content. Author only.
// PATCH /comments/{commentId}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	id, err := shared.PathID(r, "commentId", "comment")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	var req contentRequest
	if err := validators.DecodeJSON(w, r, &req); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update comment")
	defer cancel()

	c, err := h.Gateway.UpdateComment(ctx, acct, id, req.Content)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	shared.OK(w, http.StatusOK, c)
}

// HandleDelete soft-deletes a comment. Author only.
// DELETE /comments/{commentId}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	id, err := shared.PathID(r, "commentId", "comment")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "delete comment")
	defer cancel()

	if err := h.Gateway.DeleteComment(ctx, acct, id); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.Log.Debug("comment deleted", zap.String("comment", id.Hex()), zap.String("by", acct.ID.Hex()))
	shared.Message(w, "comment deleted")
}
