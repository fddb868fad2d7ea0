// Package visibility is the single definition of which stored records are
// readable. Projects, tasks and comments are soft-deleted by setting
// deleted_at; every read path goes through Live so tombstones never surface.
package visibility

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
)

// Field is the tombstone marker.
const Field = "deleted_at"

// Live returns a copy of filter restricted to records that are not
// tombstoned. A nil filter matches every live record.
func Live(filter bson.M) bson.M {
	out := bson.M{Field: nil}
	for k, v := range filter {
		out[k] = v
	}
	return out
}

// Tombstone returns the update that soft-deletes a record at t.
func Tombstone(t time.Time) bson.M {
	return bson.M{"$set": bson.M{Field: t}}
}
