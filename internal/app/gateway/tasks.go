package gateway

import (
	"context"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	taskstore "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/store/tasks"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/htmlsanitize"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/events"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

var (
	errAssigneeNotMember = apierr.Invalid("assignee must be a member of the project",
		map[string]string{"assigneeId": "must be a member of the project"})
	errTaskNotFound = apierr.New(apierr.NotFound, "task not found")
)

// NewTask is the input to CreateTask.
type NewTask struct {
	Title       string
	Description string
	Status      string
	AssigneeID  *primitive.ObjectID
}

func (g *Gateway) CreateTask(ctx context.Context, acct *models.Account, projectID primitive.ObjectID, in NewTask) (models.Task, error) {
	d, err := g.Authorize(ctx, acct, accesspolicy.Project(projectID), accesspolicy.CreateTask)
	if err != nil {
		return models.Task{}, err
	}
	if in.AssigneeID != nil && !d.Project.HasMember(*in.AssigneeID) {
		return models.Task{}, errAssigneeNotMember
	}
	title, err := cleanRequired("title", in.Title)
	if err != nil {
		return models.Task{}, err
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), g.log, "create task")
	defer cancel()
	t, err := g.tasks.Create(ctx, models.Task{
		ProjectID:   projectID,
		Title:       title,
		Description: htmlsanitize.Rich(in.Description),
		Status:      in.Status,
		AssigneeID:  in.AssigneeID,
		CreatedBy:   acct.ID,
	})
	if err != nil {
		return models.Task{}, apierr.StoreFailure(err)
	}
	g.emit(events.NewTaskCreated(t))
	return t, nil
}

// UpdateTask applies u to a task of projectID. A new assignee must be a
// member at this moment.
func (g *Gateway) UpdateTask(ctx context.Context, acct *models.Account, projectID, taskID primitive.ObjectID, u taskstore.Update) (models.Task, error) {
	d, err := g.Authorize(ctx, acct, accesspolicy.Task(taskID), accesspolicy.UpdateTask)
	if err != nil {
		return models.Task{}, err
	}
	if d.Task.ProjectID != projectID {
		return models.Task{}, errTaskNotFound
	}
	if !u.ClearAssignee && u.Assignee != nil && !d.Project.HasMember(*u.Assignee) {
		return models.Task{}, errAssigneeNotMember
	}
	if u.Title != nil {
		title, err := cleanRequired("title", *u.Title)
		if err != nil {
			return models.Task{}, err
		}
		u.Title = &title
	}
	if u.Description != nil {
		desc := htmlsanitize.Rich(*u.Description)
		u.Description = &desc
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), g.log, "update task")
	defer cancel()
	t, err := g.tasks.Update(ctx, taskID, u)
	if err != nil {
		return models.Task{}, apierr.StoreFailure(err)
	}
	g.emit(events.NewTaskUpdated(t))
	return t, nil
}

// DeleteTask tombstones a task and its comments.
func (g *Gateway) DeleteTask(ctx context.Context, acct *models.Account, projectID, taskID primitive.ObjectID) error {
	d, err := g.Authorize(ctx, acct, accesspolicy.Task(taskID), accesspolicy.DeleteTask)
	if err != nil {
		return err
	}
	if d.Task.ProjectID != projectID {
		return errTaskNotFound
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), g.log, "delete task")
	defer cancel()
	at := now()
	if err := g.tasks.SoftDelete(ctx, taskID, at); err != nil {
		return apierr.StoreFailure(err)
	}
	if _, err := g.comments.SoftDeleteByTask(ctx, taskID, at); err != nil {
		g.log.Warn("cascade delete of comments failed", zap.String("task_id", taskID.Hex()), zap.Error(err))
	}

	g.emit(events.NewTaskDeleted(projectID, taskID))
	g.bus.CloseRoom(events.TaskRoom(taskID))
	return nil
}
