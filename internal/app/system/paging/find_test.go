package paging_test

import (
	"strings"
	"testing"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/visibility"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type row struct {
	ID        primitive.ObjectID `bson:"_id"`
	Group     string             `bson:"group"`
	CreatedAt time.Time          `bson:"created_at"`
	UpdatedAt time.Time          `bson:"updated_at"`
	DeletedAt *time.Time         `bson:"deleted_at,omitempty"`
}

func keyOf(s paging.Sort) func(row) paging.Position {
	return func(r row) paging.Position {
		return paging.Position{At: s.Pick(r.CreatedAt, r.UpdatedAt), ID: r.ID}
	}
}

func insertRows(t *testing.T, coll *mongo.Collection, at time.Time, n int) []row {
	t.Helper()
	ctx, cancel := testutil.TestContext()
	defer cancel()

	out := make([]row, 0, n)
	for i := 0; i < n; i++ {
		r := row{ID: primitive.NewObjectID(), Group: "g", CreatedAt: at, UpdatedAt: at}
		if _, err := coll.InsertOne(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
		out = append(out, r)
	}
	return out
}

func codec() *paging.Codec {
	return paging.NewCodec([]byte(strings.Repeat("k", 32)), nil)
}

func TestFind_TiesAndConcurrentWrites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	coll := db.Collection("rows")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	base := time.Now().UTC().Truncate(time.Millisecond)
	// Seven rows share a timestamp so only the _id tiebreak orders them.
	tied := insertRows(t, coll, base, 7)
	older := insertRows(t, coll, base.Add(-time.Hour), 3)

	q := paging.Query{Sort: paging.NewestFirst, Limit: 4}
	c := codec()
	key := keyOf(q.Sort)

	first, err := paging.Find(ctx, coll, c, bson.M{"group": "g"}, q, key)
	if err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first.Items) != 4 || !first.HasMore || first.NextCursor == nil {
		t.Fatalf("first page: len=%d hasMore=%v cursor=%v", len(first.Items), first.HasMore, first.NextCursor)
	}

	// Between pages: a newer row arrives (must not appear), an older row
	// arrives (must appear once, in order) and an unseen row is soft-deleted.
	_ = insertRows(t, coll, base.Add(time.Hour), 1)
	oldest := insertRows(t, coll, base.Add(-2*time.Hour), 1)[0]
	victim := older[0]
	if _, err := coll.UpdateByID(ctx, victim.ID, visibility.Tombstone(time.Now())); err != nil {
		t.Fatalf("tombstone: %v", err)
	}

	seen := map[primitive.ObjectID]int{}
	var order []row
	collect := func(p paging.Page[row]) {
		for _, r := range p.Items {
			seen[r.ID]++
			order = append(order, r)
		}
	}
	collect(first)

	page := first
	for page.HasMore {
		q.Cursor = *page.NextCursor
		page, err = paging.Find(ctx, coll, c, bson.M{"group": "g"}, q, key)
		if err != nil {
			t.Fatalf("next page: %v", err)
		}
		collect(page)
	}
	if page.NextCursor != nil {
		t.Error("last page must not carry a cursor")
	}

	for id, n := range seen {
		if n > 1 {
			t.Errorf("row %s returned %d times", id.Hex(), n)
		}
	}
	for _, r := range tied {
		if seen[r.ID] != 1 {
			t.Errorf("tied row %s missing", r.ID.Hex())
		}
	}
	if seen[victim.ID] != 0 {
		t.Error("soft-deleted row was returned")
	}
	if seen[oldest.ID] != 1 {
		t.Error("row inserted behind the cursor was skipped")
	}
	if want := 7 + 2 + 1; len(order) != want {
		t.Errorf("total rows: got %d, want %d", len(order), want)
	}

	for i := 1; i < len(order); i++ {
		a, b := order[i-1], order[i]
		if a.CreatedAt.Before(b.CreatedAt) {
			t.Fatalf("order broken at %d: %v before %v", i, a.CreatedAt, b.CreatedAt)
		}
		if a.CreatedAt.Equal(b.CreatedAt) && a.ID.Hex() < b.ID.Hex() {
			t.Fatalf("tiebreak broken at %d", i)
		}
	}
}

func TestFind_UpdatedAtSortHasNoCursor(t *testing.T) {
	db := testutil.SetupTestDB(t)
	coll := db.Collection("rows")
	ctx, cancel := testutil.TestContext()
	defer cancel()

	insertRows(t, coll, time.Now().UTC().Truncate(time.Millisecond), 5)

	q := paging.Query{Sort: paging.Sort{Field: paging.UpdatedAt, Desc: true}, Limit: 2}
	page, err := paging.Find(ctx, coll, codec(), nil, q, keyOf(q.Sort))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if !page.HasMore {
		t.Error("expected HasMore")
	}
	if page.NextCursor != nil {
		t.Error("updated_at sort must not return a cursor")
	}
}

func TestFind_EmptyCollection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	page, err := paging.Find(ctx, db.Collection("rows"), codec(), nil, paging.Query{Sort: paging.OldestFirst, Limit: 10}, keyOf(paging.OldestFirst))
	if err != nil {
		t.Fatalf("Find: %v", err)
	}
	if page.Items == nil || len(page.Items) != 0 || page.HasMore {
		t.Errorf("expected empty non-nil page, got %+v", page)
	}
}
