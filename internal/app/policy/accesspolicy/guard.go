package accesspolicy

import (
	"context"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProjectReader, TaskReader and CommentReader return live records or an
// error coded NOT_FOUND.
type ProjectReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error)
}

type TaskReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Task, error)
}

type CommentReader interface {
	GetByID(ctx context.Context, id primitive.ObjectID) (models.Comment, error)
}

// Guard evaluates the access rules against the current store state.
type Guard struct {
	projects ProjectReader
	tasks    TaskReader
	comments CommentReader
}

func NewGuard(projects ProjectReader, tasks TaskReader, comments CommentReader) *Guard {
	return &Guard{projects: projects, tasks: tasks, comments: comments}
}

// Authorize is Check with a denial returned as a *Denied error.
func (g *Guard) Authorize(ctx context.Context, acct *models.Account, ref ResourceRef, action Action) (Decision, error) {
	d, err := g.Check(ctx, acct, ref, action)
	if err != nil {
		return d, err
	}
	return d, d.Err()
}

// Check decides whether acct may perform action on ref. The error is non-nil
// only when the store could not be read; it is never a denial.
func (g *Guard) Check(ctx context.Context, acct *models.Account, ref ResourceRef, action Action) (Decision, error) {
	d := Decision{kind: ref.Kind, Visible: true}
	if acct == nil {
		return deny(d, apierr.AuthRequired), nil
	}

	if action == CreateProject {
		if acct.IsAdmin() {
			return allow(d), nil
		}
		return deny(d, apierr.Forbidden), nil
	}

	found, err := g.load(ctx, &d, ref)
	if err != nil {
		return Decision{}, err
	}
	if !found {
		d.Visible = false
		return deny(d, apierr.NotFound), nil
	}

	p := d.Project
	d.Visible = p.HasMember(acct.ID)

	switch action {
	case ManageMembers:
		if acct.IsAdmin() || p.IsOwner(acct.ID) {
			return allow(d), nil
		}
		return deny(d, apierr.NotOwner), nil

	case UpdateProject, DeleteProject:
		if p.IsOwner(acct.ID) {
			return allow(d), nil
		}
		return deny(d, apierr.NotOwner), nil

	case ReadProject, ListTasks, CreateTask, ReadTask, UpdateTask, ListComments, CreateComment:
		if d.Visible {
			return allow(d), nil
		}
		return deny(d, apierr.NotMember), nil

	case UpdateComment, DeleteComment:
		if d.Comment != nil && d.Comment.AuthorID == acct.ID {
			return allow(d), nil
		}
		return deny(d, apierr.NotAuthor), nil

	case DeleteTask:
		if d.Task != nil && (acct.IsAdmin() || d.Task.CreatedBy == acct.ID) {
			return allow(d), nil
		}
		return deny(d, apierr.Forbidden), nil
	}

	return deny(d, apierr.Forbidden), nil
}

// load walks from ref up to its project, filling d. It reports false when
// any link in the chain is missing or tombstoned.
func (g *Guard) load(ctx context.Context, d *Decision, ref ResourceRef) (bool, error) {
	projectID := ref.ID

	switch ref.Kind {
	case KindComment:
		c, err := g.comments.GetByID(ctx, ref.ID)
		if ok, err := present(err); !ok {
			return false, err
		}
		d.Comment = &c
		ref = Task(c.TaskID)
		fallthrough
	case KindTask:
		t, err := g.tasks.GetByID(ctx, ref.ID)
		if ok, err := present(err); !ok {
			return false, err
		}
		d.Task = &t
		projectID = t.ProjectID
	case KindProject:
	default:
		return false, nil
	}

	p, err := g.projects.GetByID(ctx, projectID)
	if ok, err := present(err); !ok {
		return false, err
	}
	d.Project = &p
	return true, nil
}

// present maps a store error to (found, failure).
func present(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case apierr.CodeOf(err) == apierr.NotFound:
		return false, nil
	default:
		return false, apierr.StoreFailure(err)
	}
}

func allow(d Decision) Decision {
	d.Allowed = true
	d.Reason = ""
	return d
}

func deny(d Decision, reason apierr.Code) Decision {
	d.Allowed = false
	d.Reason = reason
	return d
}
