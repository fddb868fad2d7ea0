// Package search runs MongoDB $text queries over live documents.
//
// Collections searched here carry a text index (see indexes.EnsureAll).
// Results are ordered by relevance and never include tombstones.
package search

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/visibility"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	DefaultLimit = 10
	MaxLimit     = 50

	// MaxQueryLen bounds the text handed to $text, in runes.
	MaxQueryLen = 200
)

// Normalize trims q, collapses inner whitespace and caps its length.
func Normalize(q string) string {
	q = strings.Join(strings.Fields(q), " ")
	if utf8.RuneCountInString(q) > MaxQueryLen {
		q = string([]rune(q)[:MaxQueryLen])
	}
	return q
}

// ClampLimit bounds n to [1, MaxLimit]; 0 selects DefaultLimit.
func ClampLimit(n int) int {
	switch {
	case n == 0:
		return DefaultLimit
	case n < 1:
		return 1
	case n > MaxLimit:
		return MaxLimit
	}
	return n
}

// Text returns up to limit live documents in coll matching q within scope,
// best match first.
func Text[T any](ctx context.Context, coll *mongo.Collection, scope bson.M, q string, limit int) ([]T, error) {
	out := []T{}
	q = Normalize(q)
	if q == "" {
		return out, nil
	}

	filter := visibility.Live(scope)
	filter["$text"] = bson.M{"$search": q}

	score := bson.M{"$meta": "textScore"}
	opts := options.Find().
		SetProjection(bson.M{"score": score}).
		SetSort(bson.D{{Key: "score", Value: score}, {Key: "_id", Value: -1}}).
		SetLimit(int64(ClampLimit(limit)))

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
