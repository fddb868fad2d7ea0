// internal/domain/models/credential.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Credential is a password login held by the built-in identity provider.
// Subject is the stable id handed to Account.IdpUserID.
type Credential struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Subject      string             `bson:"subject"`
	Email        string             `bson:"email"`
	PasswordHash []byte             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
}
