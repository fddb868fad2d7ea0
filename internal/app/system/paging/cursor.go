// internal/app/system/paging/cursor.go
package paging

import (
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/gorilla/securecookie"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrBadCursor is returned for cursors that fail to decode, were altered,
// or were minted for a different sort.
var ErrBadCursor = apierr.New(apierr.Validation, "invalid cursor")

const cursorName = "page-cursor"

// token is the signed cursor payload. At is in milliseconds, the precision
// Mongo stores dates with.
type token struct {
	Sort string `json:"s"`
	At   int64  `json:"t"`
	ID   string `json:"i"`
}

// Codec mints and verifies opaque cursors. Cursors are HMAC-signed (and
// encrypted when a block key is set) so clients cannot forge positions.
type Codec struct {
	sc *securecookie.SecureCookie
}

// NewCodec builds a Codec. hashKey should be 32 or 64 bytes; blockKey is
// optional and, when set, must be 16, 24 or 32 bytes.
func NewCodec(hashKey, blockKey []byte) *Codec {
	sc := securecookie.New(hashKey, blockKey)
	sc.MaxAge(0) // cursors do not expire
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &Codec{sc: sc}
}

// Encode returns the cursor for pos under s.
func (c *Codec) Encode(s Sort, pos Position) (string, error) {
	return c.sc.Encode(cursorName, token{
		Sort: s.String(),
		At:   pos.At.UnixMilli(),
		ID:   pos.ID.Hex(),
	})
}

// Decode verifies raw and returns its position. The cursor must have been
// minted for s, and s must be resumable.
func (c *Codec) Decode(raw string, s Sort) (Position, error) {
	if !s.Resumable() {
		return Position{}, ErrBadCursor
	}
	var tok token
	if err := c.sc.Decode(cursorName, raw, &tok); err != nil {
		return Position{}, ErrBadCursor
	}
	if tok.Sort != s.String() {
		return Position{}, ErrBadCursor
	}
	id, err := primitive.ObjectIDFromHex(tok.ID)
	if err != nil {
		return Position{}, ErrBadCursor
	}
	return Position{At: time.UnixMilli(tok.At).UTC(), ID: id}, nil
}
