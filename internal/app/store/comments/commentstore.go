// internal/app/store/comments/commentstore.go
package commentstore

import (
	"context"
	"errors"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/search"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/visibility"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = apierr.New(apierr.NotFound, "comment not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("comments")}
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func (s *Store) Create(ctx context.Context, c models.Comment) (models.Comment, error) {
	ts := now()
	c.ID = primitive.NewObjectID()
	c.CreatedAt = ts
	c.UpdatedAt = ts
	c.DeletedAt = nil
	if _, err := s.c.InsertOne(ctx, c); err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

// GetByID returns a live comment.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Comment, error) {
	var c models.Comment
	if err := s.c.FindOne(ctx, visibility.Live(bson.M{"_id": id})).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, err
	}
	return c, nil
}

func (s *Store) UpdateContent(ctx context.Context, id primitive.ObjectID, content string) (models.Comment, error) {
	var c models.Comment
	err := s.c.FindOneAndUpdate(ctx, visibility.Live(bson.M{"_id": id}),
		bson.M{"$set": bson.M{"content": content, "updated_at": now()}},
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Comment{}, ErrNotFound
		}
		return models.Comment{}, err
	}
	return c, nil
}

// SoftDelete tombstones a live comment.
func (s *Store) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := s.c.UpdateOne(ctx, visibility.Live(bson.M{"_id": id}), visibility.Tombstone(at))
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// SoftDeleteByTask tombstones every live comment on a task.
func (s *Store) SoftDeleteByTask(ctx context.Context, taskID primitive.ObjectID, at time.Time) (int64, error) {
	return s.softDeleteMany(ctx, bson.M{"task_id": taskID}, at)
}

// SoftDeleteByProject tombstones every live comment in a project.
func (s *Store) SoftDeleteByProject(ctx context.Context, projectID primitive.ObjectID, at time.Time) (int64, error) {
	return s.softDeleteMany(ctx, bson.M{"project_id": projectID}, at)
}

func (s *Store) softDeleteMany(ctx context.Context, filter bson.M, at time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx, visibility.Live(filter), visibility.Tombstone(at))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// PageByTask lists the live comments on a task.
func (s *Store) PageByTask(ctx context.Context, codec *paging.Codec, taskID primitive.ObjectID, q paging.Query) (paging.Page[models.Comment], error) {
	return paging.Find(ctx, s.c, codec, bson.M{"task_id": taskID}, q, func(c models.Comment) paging.Position {
		return paging.Position{At: q.Sort.Pick(c.CreatedAt, c.UpdatedAt), ID: c.ID}
	})
}

// Search runs a text query over comments in the given projects.
func (s *Store) Search(ctx context.Context, projectIDs []primitive.ObjectID, q string, limit int) ([]models.Comment, error) {
	return search.Text[models.Comment](ctx, s.c, bson.M{"project_id": bson.M{"$in": projectIDs}}, q, limit)
}
