package gateway

import (
	"context"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/policy/accesspolicy"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/htmlsanitize"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/events"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var errEmptyComment = apierr.Invalid("content is required", map[string]string{"content": "is required"})

func cleanContent(s string) (string, error) {
	out := htmlsanitize.Rich(s)
	if htmlsanitize.Text(out) == "" {
		return "", errEmptyComment
	}
	return out, nil
}

func (g *Gateway) CreateComment(ctx context.Context, acct *models.Account, taskID primitive.ObjectID, content string) (models.Comment, error) {
	d, err := g.Authorize(ctx, acct, accesspolicy.Task(taskID), accesspolicy.CreateComment)
	if err != nil {
		return models.Comment{}, err
	}
	content, err = cleanContent(content)
	if err != nil {
		return models.Comment{}, err
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), g.log, "create comment")
	defer cancel()
	c, err := g.comments.Create(ctx, models.Comment{
		TaskID:    taskID,
		ProjectID: d.Task.ProjectID,
		Content:   content,
		AuthorID:  acct.ID,
	})
	if err != nil {
		return models.Comment{}, apierr.StoreFailure(err)
	}
	g.emit(events.NewCommentCreated(c))
	return c, nil
}

func (g *Gateway) UpdateComment(ctx context.Context, acct *models.Account, commentID primitive.ObjectID, content string) (models.Comment, error) {
	if _, err := g.Authorize(ctx, acct, accesspolicy.Comment(commentID), accesspolicy.UpdateComment); err != nil {
		return models.Comment{}, err
	}
	content, err := cleanContent(content)
	if err != nil {
		return models.Comment{}, err
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), g.log, "update comment")
	defer cancel()
	c, err := g.comments.UpdateContent(ctx, commentID, content)
	if err != nil {
		return models.Comment{}, apierr.StoreFailure(err)
	}
	g.emit(events.NewCommentUpdated(c))
	return c, nil
}

func (g *Gateway) DeleteComment(ctx context.Context, acct *models.Account, commentID primitive.ObjectID) error {
	d, err := g.Authorize(ctx, acct, accesspolicy.Comment(commentID), accesspolicy.DeleteComment)
	if err != nil {
		return err
	}

	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Medium(), g.log, "delete comment")
	defer cancel()
	if err := g.comments.SoftDelete(ctx, commentID, now()); err != nil {
		return apierr.StoreFailure(err)
	}
	g.emit(events.NewCommentDeleted(*d.Comment))
	return nil
}
