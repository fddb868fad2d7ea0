package gateway

import (
	"context"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	projectstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/projects"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/htmlsanitize"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/events"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// NewProject is the input to CreateProject.
type NewProject struct {
	Name        string
	Description string
	Status      string
}

func (g *Gateway) CreateProject(ctx context.Context, acct *models.Account, in NewProject) (models.Project, error) {
	if _, err := g.Authorize(ctx, acct, accesspolicy.Global(), accesspolicy.CreateProject); err != nil {
		return models.Project{}, err
	}
	name, err := cleanRequired("name", in.Name)
	if err != nil {
		return models.Project{}, err
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), g.log, "create project")
	defer cancel()
	p, err := g.projects.Create(ctx, models.Project{
		Name:        name,
		Description: htmlsanitize.Rich(in.Description),
		Status:      in.Status,
		OwnerID:     acct.ID,
	})
	if err != nil {
		return models.Project{}, apierr.StoreFailure(err)
	}
	g.emit(events.NewProjectCreated(p))
	return p, nil
}

func (g *Gateway) UpdateProject(ctx context.Context, acct *models.Account, id primitive.ObjectID, u projectstore.Update) (models.Project, error) {
	if _, err := g.Authorize(ctx, acct, accesspolicy.Project(id), accesspolicy.UpdateProject); err != nil {
		return models.Project{}, err
	}
	if u.Name != nil {
		name, err := cleanRequired("name", *u.Name)
		if err != nil {
			return models.Project{}, err
		}
		u.Name = &name
	}
	if u.Description != nil {
		desc := htmlsanitize.Rich(*u.Description)
		u.Description = &desc
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), g.log, "update project")
	defer cancel()
	p, err := g.projects.Update(ctx, id, u)
	if err != nil {
		return models.Project{}, apierr.StoreFailure(err)
	}
	g.emit(events.NewProjectUpdated(p))
	return p, nil
}

// DeleteProject tombstones the project, then its tasks and comments.
// The project goes first so a partial cascade leaves nothing reachable.
func (g *Gateway) DeleteProject(ctx context.Context, acct *models.Account, id primitive.ObjectID) error {
	if _, err := g.Authorize(ctx, acct, accesspolicy.Project(id), accesspolicy.DeleteProject); err != nil {
		return err
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), g.log, "delete project")
	defer cancel()
	at := now()
	if err := g.projects.SoftDelete(ctx, id, at); err != nil {
		return apierr.StoreFailure(err)
	}
	if _, err := g.tasks.SoftDeleteByProject(ctx, id, at); err != nil {
		g.log.Warn("cascade delete of tasks failed", zap.String("project_id", id.Hex()), zap.Error(err))
	}
	if _, err := g.comments.SoftDeleteByProject(ctx, id, at); err != nil {
		g.log.Warn("cascade delete of comments failed", zap.String("project_id", id.Hex()), zap.Error(err))
	}

	g.emit(events.NewProjectDeleted(id))
	g.bus.CloseRoom(events.ProjectRoom(id))
	return nil
}

var errUserNotFound = apierr.New(apierr.NotFound, "user not found, cannot add non-existent user as member")

func (g *Gateway) AddMember(ctx context.Context, acct *models.Account, projectID, memberID primitive.ObjectID) (models.Project, error) {
	if _, err := g.Authorize(ctx, acct, accesspolicy.Project(projectID), accesspolicy.ManageMembers); err != nil {
		return models.Project{}, err
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), g.log, "add member")
	defer cancel()
	member, err := g.accounts.GetByID(ctx, memberID)
	if err != nil {
		if apierr.CodeOf(err) == apierr.NotFound {
			return models.Project{}, errUserNotFound
		}
		return models.Project{}, apierr.StoreFailure(err)
	}
	p, err := g.projects.AddMember(ctx, projectID, memberID)
	if err != nil {
		return models.Project{}, apierr.StoreFailure(err)
	}
	g.emit(events.NewMemberAdded(p, member))
	return p, nil
}

// RemoveMember removes a member and drops their live subscriptions to the
// project's rooms. The owner cannot be removed.
func (g *Gateway) RemoveMember(ctx context.Context, acct *models.Account, projectID, memberID primitive.ObjectID) (models.Project, error) {
	if _, err := g.Authorize(ctx, acct, accesspolicy.Project(projectID), accesspolicy.ManageMembers); err != nil {
		return models.Project{}, err
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), g.log, "remove member")
	defer cancel()
	p, err := g.projects.RemoveMember(ctx, projectID, memberID)
	if err != nil {
		return models.Project{}, apierr.StoreFailure(err)
	}
	g.emit(events.NewMemberRemoved(p, memberID))
	g.bus.EvictAccount(memberID, projectID)
	return p, nil
}

// cleanRequired strips markup from a single-line field and rejects it when
// nothing is left.
func cleanRequired(field, s string) (string, error) {
	out := htmlsanitize.Text(s)
	if out == "" {
		return "", apierr.Invalid(field+" is required", map[string]string{field: "is required"})
	}
	return out, nil
}
