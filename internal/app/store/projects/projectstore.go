// internal/app/store/projects/projectstore.go
package projectstore

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

var (
	ErrNotFound      = apierr.New(apierr.NotFound, "project not found")
	ErrAlreadyMember = apierr.New(apierr.Conflict, "user is already a member of this project")
	ErrNotAMember    = apierr.New(apierr.NotFound, "user is not a member of this project")
	ErrOwnerRemoval  = apierr.New(apierr.Validation, "cannot remove project owner")
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("projects")}
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

// Create inserts p. The owner is always stored as a member.
func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	ts := now()
	p.ID = primitive.NewObjectID()
	if p.Status == "" {
		p.Status = models.ProjectActive
	}
	if !containsID(p.MemberIDs, p.OwnerID) {
		p.MemberIDs = append([]primitive.ObjectID{p.OwnerID}, p.MemberIDs...)
	}
	p.CreatedAt = ts
	p.UpdatedAt = ts
	p.DeletedAt = nil
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// GetByID returns a live project.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	if err := s.c.FindOne(ctx, visibility.Live(bson.M{"_id": id})).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}

// Update is a partial update; nil fields are left untouched.
type Update struct {
	Name        *string
	Description *string
	Status      *string
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, u Update) (models.Project, error) {
	set := bson.M{"updated_at": now()}
	if u.Name != nil {
		set["name"] = *u.Name
	}
	if u.Description != nil {
		set["description"] = *u.Description
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	return s.findOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set})
}

// SoftDelete tombstones a live project.
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

// AddMember adds accountID to the member set.
func (s *Store) AddMember(ctx context.Context, id, accountID primitive.ObjectID) (models.Project, error) {
	p, err := s.findOneAndUpdate(ctx,
		bson.M{"_id": id, "member_ids": bson.M{"$ne": accountID}, "owner_id": bson.M{"$ne": accountID}},
		bson.M{"$addToSet": bson.M{"member_ids": accountID}, "$set": bson.M{"updated_at": now()}})
	if err == ErrNotFound {
		return models.Project{}, s.explainMiss(ctx, id, func(p models.Project) error {
			if p.HasMember(accountID) {
				return ErrAlreadyMember
			}
			return nil
		})
	}
	return p, err
}

// RemoveMember pulls accountID from the member set. The owner cannot be
// removed.
func (s *Store) RemoveMember(ctx context.Context, id, accountID primitive.ObjectID) (models.Project, error) {
	p, err := s.findOneAndUpdate(ctx,
		bson.M{"_id": id, "member_ids": accountID, "owner_id": bson.M{"$ne": accountID}},
		bson.M{"$pull": bson.M{"member_ids": accountID}, "$set": bson.M{"updated_at": now()}})
	if err == ErrNotFound {
		return models.Project{}, s.explainMiss(ctx, id, func(p models.Project) error {
			if p.IsOwner(accountID) {
				return ErrOwnerRemoval
			}
			return ErrNotAMember
		})
	}
	return p, err
}

// IsMember re-reads membership from the store.
func (s *Store) IsMember(ctx context.Context, id, accountID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, visibility.Live(bson.M{"_id": id, "$or": memberOf(accountID)}),
		options.Count().SetLimit(1))
	return n > 0, err
}

// PageForMember lists the live projects accountID belongs to, optionally
// narrowed by status.
func (s *Store) PageForMember(ctx context.Context, codec *paging.Codec, accountID primitive.ObjectID, status string, q paging.Query) (paging.Page[models.Project], error) {
	filter := bson.M{"$or": memberOf(accountID)}
	if status != "" {
		filter["status"] = status
	}
	return paging.Find(ctx, s.c, codec, filter, q, func(p models.Project) paging.Position {
		return paging.Position{At: q.Sort.Pick(p.CreatedAt, p.UpdatedAt), ID: p.ID}
	})
}

// IDsForMember returns the ids of every live project accountID belongs to.
func (s *Store) IDsForMember(ctx context.Context, accountID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, visibility.Live(bson.M{"$or": memberOf(accountID)}),
		options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	ids := []primitive.ObjectID{}
	for cur.Next(ctx) {
		var row struct {
			ID primitive.ObjectID `bson:"_id"`
		}
		if err := cur.Decode(&row); err != nil {
			return nil, err
		}
		ids = append(ids, row.ID)
	}
	return ids, cur.Err()
}

// Search runs a text query over the given projects.
func (s *Store) Search(ctx context.Context, ids []primitive.ObjectID, q string, limit int) ([]models.Project, error) {
	return search.Text[models.Project](ctx, s.c, bson.M{"_id": bson.M{"$in": ids}}, q, limit)
}

func (s *Store) findOneAndUpdate(ctx context.Context, filter, update bson.M) (models.Project, error) {
	var p models.Project
	err := s.c.FindOneAndUpdate(ctx, visibility.Live(filter), update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Project{}, ErrNotFound
		}
		return models.Project{}, err
	}
	return p, nil
}

// explainMiss turns a conditional update that matched nothing into the
// reason: a missing project, or whatever why reports for a live one.
func (s *Store) explainMiss(ctx context.Context, id primitive.ObjectID, why func(models.Project) error) error {
	p, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := why(p); err != nil {
		return err
	}
	// Lost a race with a concurrent write; report as a conflict.
	return apierr.New(apierr.Conflict, "project changed concurrently, retry")
}

func memberOf(accountID primitive.ObjectID) []bson.M {
	return []bson.M{{"owner_id": accountID}, {"member_ids": accountID}}
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
