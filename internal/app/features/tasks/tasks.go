package tasks

import (
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/shared"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/gateway"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	taskstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/tasks"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/auth"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/validators"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	errNoFields     = apierr.New(apierr.Validation, "at least one field is required for update")
	errTaskNotFound = apierr.New(apierr.NotFound, "task not found")
)

type createRequest struct {
	Title       string  `json:"title" validate:"required,max=200"`
	Description string  `json:"description" validate:"max=5000"`
	Status      string  `json:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS ON_HOLD CLOSED"`
	AssigneeID  *string `json:"assigneeId" validate:"omitempty,objectid"`
}

// updateRequest distinguishes "assigneeId": null (clear) from an absent key
// by the key set DecodeJSONKeys reports.
type updateRequest struct {
	Title       *string `json:"title" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Status      *string `json:"status" validate:"omitempty,oneof=OPEN IN_PROGRESS ON_HOLD CLOSED"`
	AssigneeID  *string `json:"assigneeId" validate:"omitempty,objectid"`
}

func objectID(s *string) *primitive.ObjectID {
	if s == nil {
		return nil
	}
	id, err := primitive.ObjectIDFromHex(*s)
	if err != nil {
		return nil
	}
	return &id
}

// HandleCreate adds a task to the project.
// POST /projects/{projectId}/tasks
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	projectID, err := shared.PathID(r, "projectId", "project")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	var req createRequest
	if err := validators.DecodeJSON(w, r, &req); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create task")
	defer cancel()

	t, err := h.Gateway.CreateTask(ctx, acct, projectID, gateway.NewTask{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		AssigneeID:  objectID(req.AssigneeID),
	})
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.Log.Debug("task created", zap.String("task", t.ID.Hex()), zap.String("project", projectID.Hex()))
	shared.OK(w, http.StatusCreated, t)
}

// ServeList pages the project's tasks, newest first.
// GET /projects/{projectId}/tasks?cursor&limit
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	projectID, err := shared.PathID(r, "projectId", "project")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	q, err := paging.ParseQuery(r, paging.NewestFirst, false)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if _, err := h.Gateway.Authorize(r.Context(), acct, accesspolicy.Project(projectID), accesspolicy.ListTasks); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list tasks")
	defer cancel()

	page, err := h.Tasks.PageByProject(ctx, h.Cursors, projectID, q)
	if err != nil {
		apierr.Write(w, h.Log, apierr.StoreFailure(err))
		return
	}
	shared.List(w, page)
}

// ServeTask returns one task. A task that lives in a different project than
// the path names is reported as not found.
// GET /projects/{projectId}/tasks/{taskId}
func (h *Handler) ServeTask(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	projectID, taskID, err := pathIDs(r)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	d, err := h.Gateway.Authorize(r.Context(), acct, accesspolicy.Task(taskID), accesspolicy.ReadTask)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if d.Task.ProjectID != projectID {
		apierr.Write(w, h.Log, errTaskNotFound)
		return
	}
	shared.OK(w, http.StatusOK, d.Task)
}

// HandleUpdate edits a task. "assigneeId": null unassigns it.
// PATCH /projects/{projectId}/tasks/{taskId}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	projectID, taskID, err := pathIDs(r)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	var req updateRequest
	keys, err := validators.DecodeJSONKeys(w, r, &req)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if len(keys) == 0 {
		apierr.Write(w, h.Log, errNoFields)
		return
	}

	u := taskstore.Update{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Assignee:    objectID(req.AssigneeID),
	}
	if _, present := keys["assigneeId"]; present && req.AssigneeID == nil {
		u.ClearAssignee = true
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update task")
	defer cancel()

	t, err := h.Gateway.UpdateTask(ctx, acct, projectID, taskID, u)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	shared.OK(w, http.StatusOK, t)
}

// HandleDelete soft-deletes the task and its comments. ADMIN or creator.
// DELETE /projects/{projectId}/tasks/{taskId}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	projectID, taskID, err := pathIDs(r)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete task")
	defer cancel()

	if err := h.Gateway.DeleteTask(ctx, acct, projectID, taskID); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.Log.Info("task deleted", zap.String("task", taskID.Hex()), zap.String("by", acct.ID.Hex()))
	shared.Message(w, "task deleted")
}

func pathIDs(r *http.Request) (project, task primitive.ObjectID, err error) {
	if project, err = shared.PathID(r, "projectId", "project"); err != nil {
		return
	}
	task, err = shared.PathID(r, "taskId", "task")
	return
}
