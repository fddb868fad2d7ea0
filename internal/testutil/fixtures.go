package testutil

import (
	"context"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data. Records are
// written straight to the collections, bypassing stores and the gateway.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

func now() time.Time { return time.Now().UTC().Truncate(time.Millisecond) }

func (f *Fixtures) insert(ctx context.Context, coll string, doc any) {
	f.t.Helper()
	if _, err := f.db.Collection(coll).InsertOne(ctx, doc); err != nil {
		f.t.Fatalf("insert into %s: %v", coll, err)
	}
}

// CreateAccount creates an account with a unique subject and an email
// derived from name.
func (f *Fixtures) CreateAccount(ctx context.Context, name, role string) models.Account {
	f.t.Helper()
	ts := now()
	subject := uuid.NewString()
	a := models.Account{
		ID:        primitive.NewObjectID(),
		IdpUserID: subject,
		Name:      name,
		NameCI:    text.Fold(name),
		Gender:    models.GenderPreferNotToSay,
		Email:     strings.ToLower(strings.ReplaceAll(name, " ", ".")) + "." + subject[:8] + "@test.com",
		Role:      role,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	f.insert(ctx, "accounts", a)
	return a
}

// CreateProject creates an active project owned by owner with the given
// extra members.
func (f *Fixtures) CreateProject(ctx context.Context, name string, owner models.Account, members ...models.Account) models.Project {
	f.t.Helper()
	ts := now()
	ids := []primitive.ObjectID{owner.ID}
	for _, m := range members {
		ids = append(ids, m.ID)
	}
	p := models.Project{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Status:    models.ProjectActive,
		OwnerID:   owner.ID,
		MemberIDs: ids,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	f.insert(ctx, "projects", p)
	return p
}

// CreateTask creates an open task in project.
func (f *Fixtures) CreateTask(ctx context.Context, project models.Project, title string, creator models.Account) models.Task {
	f.t.Helper()
	ts := now()
	task := models.Task{
		ID:        primitive.NewObjectID(),
		ProjectID: project.ID,
		Title:     title,
		Status:    models.TaskOpen,
		CreatedBy: creator.ID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	f.insert(ctx, "tasks", task)
	return task
}

// CreateComment creates a comment on task.
func (f *Fixtures) CreateComment(ctx context.Context, task models.Task, content string, author models.Account) models.Comment {
	f.t.Helper()
	ts := now()
	c := models.Comment{
		ID:        primitive.NewObjectID(),
		TaskID:    task.ID,
		ProjectID: task.ProjectID,
		Content:   content,
		AuthorID:  author.ID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	f.insert(ctx, "comments", c)
	return c
}
