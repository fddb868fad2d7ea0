// internal/app/store/tasks/taskstore.go
package taskstore

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

var ErrNotFound = apierr.New(apierr.NotFound, "task not found")

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("tasks")}
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func (s *Store) Create(ctx context.Context, t models.Task) (models.Task, error) {
	ts := now()
	t.ID = primitive.NewObjectID()
	if t.Status == "" {
		t.Status = models.TaskOpen
	}
	t.CreatedAt = ts
	t.UpdatedAt = ts
	t.DeletedAt = nil
	if _, err := s.c.InsertOne(ctx, t); err != nil {
		return models.Task{}, err
	}
	return t, nil
}

// GetByID returns a live task.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Task, error) {
	var t models.Task
	if err := s.c.FindOne(ctx, visibility.Live(bson.M{"_id": id})).Decode(&t); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, err
	}
	return t, nil
}

// Update is a partial update. ClearAssignee unsets the assignee and wins
// over Assignee.
type Update struct {
	Title         *string
	Description   *string
	Status        *string
	Assignee      *primitive.ObjectID
	ClearAssignee bool
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, u Update) (models.Task, error) {
	set := bson.M{"updated_at": now()}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	update := bson.M{"$set": set}
	switch {
	case u.ClearAssignee:
		update["$unset"] = bson.M{"assignee_id": ""}
	case u.Assignee != nil:
		set["assignee_id"] = *u.Assignee
	}

	var t models.Task
	err := s.c.FindOneAndUpdate(ctx, visibility.Live(bson.M{"_id": id}), update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Task{}, ErrNotFound
		}
		return models.Task{}, err
	}
	return t, nil
}

// SoftDelete tombstones a live task.
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

// SoftDeleteByProject tombstones every live task of a project.
func (s *Store) SoftDeleteByProject(ctx context.Context, projectID primitive.ObjectID, at time.Time) (int64, error) {
	res, err := s.c.UpdateMany(ctx, visibility.Live(bson.M{"project_id": projectID}), visibility.Tombstone(at))
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}

// PageByProject lists the live tasks of a project.
func (s *Store) PageByProject(ctx context.Context, codec *paging.Codec, projectID primitive.ObjectID, q paging.Query) (paging.Page[models.Task], error) {
	return paging.Find(ctx, s.c, codec, bson.M{"project_id": projectID}, q, func(t models.Task) paging.Position {
		return paging.Position{At: q.Sort.Pick(t.CreatedAt, t.UpdatedAt), ID: t.ID}
	})
}

// Search runs a text query over tasks in the given projects.
func (s *Store) Search(ctx context.Context, projectIDs []primitive.ObjectID, q string, limit int) ([]models.Task, error) {
	return search.Text[models.Task](ctx, s.c, bson.M{"project_id": bson.M{"$in": projectIDs}}, q, limit)
}
