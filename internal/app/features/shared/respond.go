// Package shared holds the JSON response helpers used by every feature.
package shared

import (
	"net/http"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/paging"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type listEnvelope struct {
	Success    bool       `json:"success"`
	Data       any        `json:"data"`
	Pagination pagination `json:"pagination"`
}

type pagination struct {
	HasMore    bool    `json:"hasMore"`
	NextCursor *string `json:"nextCursor"`
}

// OK writes {success:true, data}.
func OK(w http.ResponseWriter, status int, data any) {
	apierr.WriteJSON(w, status, envelope{Success: true, Data: data})
}

// Message writes {success:true, message} for operations with no body.
func Message(w http.ResponseWriter, msg string) {
	apierr.WriteJSON(w, http.StatusOK, envelope{Success: true, Message: msg})
}

// List writes a page as {success:true, data:[...], pagination:{...}}.
func List[T any](w http.ResponseWriter, p paging.Page[T]) {
	items := p.Items
	if items == nil {
		items = []T{}
	}
	apierr.WriteJSON(w, http.StatusOK, listEnvelope{
		Success:    true,
		Data:       items,
		Pagination: pagination{HasMore: p.HasMore, NextCursor: p.NextCursor},
	})
}

// PathID parses the chi URL parameter name as an ObjectID. A malformed id
// names no resource, so it is reported as NOT_FOUND.
func PathID(r *http.Request, name string, what string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, name))
	if err != nil {
		return primitive.NilObjectID, apierr.New(apierr.NotFound, what+" not found")
	}
	return id, nil
}
