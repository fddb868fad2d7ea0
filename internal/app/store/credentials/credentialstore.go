// internal/app/store/credentials/credentialstore.go
package credentialstore

import (
	"context"
	"errors"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var (
	ErrNotFound  = apierr.New(apierr.NotFound, "credential not found")
	ErrDuplicate = apierr.New(apierr.Conflict, "a credential with this email already exists")
)

// Store holds password credentials for the built-in identity provider.
type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("credentials")}
}

func (s *Store) Create(ctx context.Context, cred models.Credential) (models.Credential, error) {
	cred.ID = primitive.NewObjectID()
	if _, err := s.c.InsertOne(ctx, cred); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Credential{}, ErrDuplicate
		}
		return models.Credential{}, err
	}
	return cred, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (*models.Credential, error) {
	var cred models.Credential
	if err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&cred); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &cred, nil
}
