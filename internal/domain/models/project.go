// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Project groups tasks and defines who may see them.
//
// NOTE:
//   - OwnerID never changes after creation and is always present in MemberIDs.
//   - DeletedAt marks a tombstone; tombstoned projects are invisible to reads.
type Project struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Name        string               `bson:"name" json:"name"`
	Description string               `bson:"description" json:"description"`
	Status      string               `bson:"status" json:"status"`
	OwnerID     primitive.ObjectID   `bson:"owner_id" json:"ownerId"`
	MemberIDs   []primitive.ObjectID `bson:"member_ids" json:"memberIds"`

	CreatedAt time.Time  `bson:"created_at" json:"createdAt"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"-"`
}

// IsOwner reports whether id owns the project.
func (p *Project) IsOwner(id primitive.ObjectID) bool {
	return p != nil && p.OwnerID == id
}

// HasMember reports whether id is the owner or a listed member.
func (p *Project) HasMember(id primitive.ObjectID) bool {
	if p == nil {
		return false
	}
	if p.OwnerID == id {
		return true
	}
	for _, m := range p.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}
