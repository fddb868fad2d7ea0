package projects

import (
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/shared"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/gateway"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	projectstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/projects"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/auth"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/validators"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

var (
	errNoFields  = apierr.New(apierr.Validation, "at least one field is required for update")
	errBadStatus = apierr.Invalid("status must be one of ACTIVE, ON_HOLD, COMPLETED, ARCHIVED",
		map[string]string{"status": "must be one of ACTIVE, ON_HOLD, COMPLETED, ARCHIVED"})
)

type createRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Status      string `json:"status" validate:"omitempty,oneof=ACTIVE ON_HOLD COMPLETED ARCHIVED"`
}

type updateRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=200"`
	Description *string `json:"description" validate:"omitempty,max=5000"`
	Status      *string `json:"status" validate:"omitempty,oneof=ACTIVE ON_HOLD COMPLETED ARCHIVED"`
}

// HandleCreate creates a project owned by the caller. ADMIN only.
// POST /projects
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	var req createRequest
	if err := validators.DecodeJSON(w, r, &req); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "create project")
	defer cancel()

	p, err := h.Gateway.CreateProject(ctx, acct, gateway.NewProject{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.Log.Info("project created", zap.String("project", p.ID.Hex()), zap.String("owner", acct.ID.Hex()))
	shared.OK(w, http.StatusCreated, p)
}

// ServeList pages the projects the caller owns or belongs to, newest first
// unless sortBy/sortOrder say otherwise.
// GET /projects?status&sortBy&sortOrder&cursor&limit
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	q, err := paging.ParseQuery(r, paging.NewestFirst, true)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	status := query.Get(r, "status")
	if status != "" && !validStatus(status) {
		apierr.Write(w, h.Log, errBadStatus)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "list projects")
	defer cancel()

	page, err := h.Projects.PageForMember(ctx, h.Cursors, acct.ID, status, q)
	if err != nil {
		apierr.Write(w, h.Log, apierr.StoreFailure(err))
		return
	}
	shared.List(w, page)
}

// ServeProject returns one project with its members.
// GET /projects/{id}
func (h *Handler) ServeProject(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	id, err := shared.PathID(r, "id", "project")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	d, err := h.Gateway.Authorize(r.Context(), acct, accesspolicy.Project(id), accesspolicy.ReadProject)
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "project members")
	defer cancel()

	p := *d.Project
	members, err := h.Accounts.ListByIDs(ctx, p.MemberIDs)
	if err != nil {
		apierr.Write(w, h.Log, apierr.StoreFailure(err))
		return
	}
	out := detail{Project: p, Members: make([]memberView, 0, len(members))}
	for _, m := range members {
		out.Members = append(out.Members, memberView{ID: m.ID.Hex(), Name: m.Name, Email: m.Email})
	}
	shared.OK(w, http.StatusOK, out)
}

// HandleUpdate edits name, description or status. Owner only.
// PATCH /projects/{id}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	id, err := shared.PathID(r, "id", "project")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	var req updateRequest
	if err := validators.DecodeJSON(w, r, &req); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	if req.Name == nil && req.Description == nil && req.Status == nil {
		apierr.Write(w, h.Log, errNoFields)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Medium(), h.Log, "update project")
	defer cancel()

	p, err := h.Gateway.UpdateProject(ctx, acct, id, projectstore.Update{
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	shared.OK(w, http.StatusOK, p)
}

// HandleDelete soft-deletes the project with its tasks and comments.
// Owner only.
// DELETE /projects/{id}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	id, err := shared.PathID(r, "id", "project")
	if err != nil {
		apierr.Write(w, h.Log, err)
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "delete project")
	defer cancel()

	if err := h.Gateway.DeleteProject(ctx, acct, id); err != nil {
		apierr.Write(w, h.Log, err)
		return
	}
	h.Log.Info("project deleted", zap.String("project", id.Hex()), zap.String("by", acct.ID.Hex()))
	shared.Message(w, "project deleted")
}

func validStatus(s string) bool {
	switch s {
	case "ACTIVE", "ON_HOLD", "COMPLETED", "ARCHIVED":
		return true
	}
	return false
}
