// internal/app/policy/accesspolicy/accesspolicy.go
//
// Package accesspolicy decides whether an account may perform an action on
// a project, task or comment. It is the single authorization point for REST
// handlers, the mutation gateway and room joins.
//
// Rules, first match wins:
//   - ADMIN may create projects and manage members of any project
//   - update/delete project and manage members: owner only (NOT_OWNER)
//   - project read, task read/list/create/update, comment list/create:
//     project members only, the owner included (NOT_MEMBER)
//   - comment update/delete: author only (NOT_AUTHOR); no role overrides it
//   - task delete: ADMIN or the task's creator (FORBIDDEN)
//   - anything else: FORBIDDEN
//
// A missing or tombstoned resource (or enclosing task/project) is NOT_FOUND.
// Membership is read from the store on every call.
package accesspolicy

import (
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Action is something an account wants to do.
type Action int

const (
	CreateProject Action = iota + 1
	ReadProject
	UpdateProject
	DeleteProject
	ManageMembers
	ListTasks
	CreateTask
	ReadTask
	UpdateTask
	DeleteTask
	ListComments
	CreateComment
	UpdateComment
	DeleteComment
)

var actionNames = map[Action]string{
	CreateProject: "create project",
	ReadProject:   "read project",
	UpdateProject: "update project",
	DeleteProject: "delete project",
	ManageMembers: "manage members",
	ListTasks:     "list tasks",
	CreateTask:    "create task",
	ReadTask:      "read task",
	UpdateTask:    "update task",
	DeleteTask:    "delete task",
	ListComments:  "list comments",
	CreateComment: "create comment",
	UpdateComment: "update comment",
	DeleteComment: "delete comment",
}

func (a Action) String() string {
	if s, ok := actionNames[a]; ok {
		return s
	}
	return "unknown action"
}

// Kind is the type of resource a ResourceRef points at.
type Kind int

const (
	KindNone Kind = iota
	KindProject
	KindTask
	KindComment
)

func (k Kind) String() string {
	switch k {
	case KindProject:
		return "project"
	case KindTask:
		return "task"
	case KindComment:
		return "comment"
	}
	return "resource"
}

// ResourceRef names the target of an action.
type ResourceRef struct {
	Kind Kind
	ID   primitive.ObjectID
}

func Project(id primitive.ObjectID) ResourceRef { return ResourceRef{Kind: KindProject, ID: id} }
func Task(id primitive.ObjectID) ResourceRef    { return ResourceRef{Kind: KindTask, ID: id} }
func Comment(id primitive.ObjectID) ResourceRef { return ResourceRef{Kind: KindComment, ID: id} }

// Global is the ref for actions with no existing target (project creation).
func Global() ResourceRef { return ResourceRef{Kind: KindNone} }

// Decision is the outcome of Check.
//
// Visible reports whether the account is a member of the enclosing project,
// i.e. whether it may learn the resource exists. Boundaries report a denial
// with Visible false as NOT_FOUND.
//
// The loaded records are returned so callers act on the same snapshot the
// decision was made from.
type Decision struct {
	Allowed bool
	Reason  apierr.Code
	Visible bool

	Project *models.Project
	Task    *models.Task
	Comment *models.Comment

	kind Kind
}

// Err returns nil for an allowed decision and a *Denied otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &Denied{Reason: d.Reason, Visible: d.Visible, Kind: d.kind}
}

// Denied is the error form of a negative Decision.
type Denied struct {
	Reason  apierr.Code
	Visible bool
	Kind    Kind
}

func (e *Denied) ErrorCode() apierr.Code {
	if !e.Visible {
		return apierr.NotFound
	}
	return e.Reason
}

func (e *Denied) Error() string {
	switch e.ErrorCode() {
	case apierr.NotFound:
		return e.Kind.String() + " not found"
	case apierr.AuthRequired:
		return "authentication required"
	case apierr.NotOwner:
		return "only the project owner can do this"
	case apierr.NotMember:
		return "you are not a member of this project"
	case apierr.NotAuthor:
		return "only the comment author can do this"
	default:
		return "you do not have permission to do this"
	}
}
