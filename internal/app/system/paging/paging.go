// internal/app/system/paging/paging.go
package paging

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/visibility"
	"github.com/dalemusser/waffle/pantry/query"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DefaultLimit is the page size used when the client does not ask for one.
const DefaultLimit = 20

// MaxLimit caps the page size a client may request.
const MaxLimit = 100

// Field is a sortable timestamp field.
type Field string

const (
	CreatedAt Field = "created_at"
	UpdatedAt Field = "updated_at"
)

// Sort is a total order over a collection: the timestamp field first, then
// _id in the same direction as the tiebreak.
type Sort struct {
	Field Field
	Desc  bool
}

var (
	NewestFirst = Sort{Field: CreatedAt, Desc: true}
	OldestFirst = Sort{Field: CreatedAt}
)

func (s Sort) String() string {
	if s.Desc {
		return string(s.Field) + ":desc"
	}
	return string(s.Field) + ":asc"
}

// Resumable reports whether cursors can be minted for this sort.
//
// updated_at changes when a record is edited, so a record can move across a
// cursor boundary between two page fetches. Those sorts report HasMore but
// never hand out a NextCursor.
func (s Sort) Resumable() bool { return s.Field == CreatedAt }

// Pick returns whichever of the two timestamps the sort orders by.
func (s Sort) Pick(created, updated time.Time) time.Time {
	if s.Field == UpdatedAt {
		return updated
	}
	return created
}

func (s Sort) order() int {
	if s.Desc {
		return -1
	}
	return 1
}

// ClampLimit forces n into [1, MaxLimit].
func ClampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > MaxLimit {
		return MaxLimit
	}
	return n
}

/* -------------------------------------------------------------------------- */
/* Request parsing                                                            */
/* -------------------------------------------------------------------------- */

// Query is a parsed page request.
type Query struct {
	Sort   Sort
	Cursor string
	Limit  int
}

// ParseQuery reads cursor and limit from the request. When sortable is true
// the client may override def with sortBy (createdAt|updatedAt) and
// sortOrder (asc|desc).
func ParseQuery(r *http.Request, def Sort, sortable bool) (Query, error) {
	q := Query{Sort: def, Cursor: query.Get(r, "cursor"), Limit: DefaultLimit}
	fields := map[string]string{}

	if raw := query.Get(r, "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			fields["limit"] = "must be a number"
		} else {
			q.Limit = ClampLimit(n)
		}
	}

	if sortable {
		switch query.Get(r, "sortBy") {
		case "":
		case "createdAt":
			q.Sort.Field = CreatedAt
		case "updatedAt":
			q.Sort.Field = UpdatedAt
		default:
			fields["sortBy"] = "must be one of createdAt, updatedAt"
		}
		switch query.Get(r, "sortOrder") {
		case "":
		case "asc":
			q.Sort.Desc = false
		case "desc":
			q.Sort.Desc = true
		default:
			fields["sortOrder"] = "must be one of asc, desc"
		}
	}

	if len(fields) > 0 {
		return Query{}, apierr.Invalid("invalid pagination parameters", fields)
	}
	return q, nil
}

/* -------------------------------------------------------------------------- */
/* Keyset pages                                                               */
/* -------------------------------------------------------------------------- */

// Position is the (sort value, _id) pair of the last item on a page.
type Position struct {
	At time.Time
	ID primitive.ObjectID
}

// Page is one window of results.
type Page[T any] struct {
	Items      []T
	HasMore    bool
	NextCursor *string
}

// Find returns the page of live documents matching filter that comes
// strictly after q.Cursor in q.Sort order. keyOf reports the position of a
// decoded item under q.Sort.
//
// One extra document is fetched to derive HasMore. Items inserted ahead of
// the cursor or soft-deleted after it never cause duplicates or skips among
// the remaining items, because the window is a strict inequality over a
// total order.
func Find[T any](ctx context.Context, coll *mongo.Collection, codec *Codec, filter bson.M, q Query, keyOf func(T) Position) (Page[T], error) {
	limit := ClampLimit(q.Limit)

	f := visibility.Live(filter)
	if q.Cursor != "" {
		pos, err := codec.Decode(q.Cursor, q.Sort)
		if err != nil {
			return Page[T]{}, err
		}
		f = bson.M{"$and": []bson.M{f, window(q.Sort, pos)}}
	}

	opts := options.Find().
		SetSort(bson.D{
			{Key: string(q.Sort.Field), Value: q.Sort.order()},
			{Key: "_id", Value: q.Sort.order()},
		}).
		SetLimit(int64(limit + 1))

	cur, err := coll.Find(ctx, f, opts)
	if err != nil {
		return Page[T]{}, err
	}
	defer cur.Close(ctx)

	items := make([]T, 0, limit+1)
	if err := cur.All(ctx, &items); err != nil {
		return Page[T]{}, err
	}

	page := Page[T]{Items: items}
	if len(items) > limit {
		page.Items = items[:limit]
		page.HasMore = true
		if q.Sort.Resumable() {
			tok, err := codec.Encode(q.Sort, keyOf(page.Items[limit-1]))
			if err != nil {
				return Page[T]{}, err
			}
			page.NextCursor = &tok
		}
	}
	return page, nil
}

// window matches documents strictly after pos in s order.
func window(s Sort, pos Position) bson.M {
	op := "$gt"
	if s.Desc {
		op = "$lt"
	}
	field := string(s.Field)
	return bson.M{"$or": []bson.M{
		{field: bson.M{op: pos.At}},
		{field: pos.At, "_id": bson.M{op: pos.ID}},
	}}
}
