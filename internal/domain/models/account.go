// internal/domain/models/account.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Account is the application-side record for an authenticated identity.
// IdpUserID is the subject id issued by the identity provider and maps 1:1
// to an Account. Role is global and fixed at creation.
type Account struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	IdpUserID string             `bson:"idp_user_id" json:"idpUserId"`
	Name      string             `bson:"name" json:"name"`
	NameCI    string             `bson:"name_ci" json:"-"` // lowercase, diacritics-stripped
	Gender    string             `bson:"gender" json:"gender"`
	Email     string             `bson:"email" json:"email"`
	Role      string             `bson:"role" json:"role"`

	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// IsAdmin reports whether the account holds the ADMIN role.
func (a *Account) IsAdmin() bool { return a != nil && a.Role == RoleAdmin }
