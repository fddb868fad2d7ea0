// Package search serves full-text search over everything the caller can
// read: the projects they belong to and those projects' tasks and comments.
package search

import (
	"context"
	"net/http"
	"strconv"

	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/shared"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/auth"
	textsearch "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/search"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/timeouts"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type ProjectSearcher interface {
	IDsForMember(ctx context.Context, accountID primitive.ObjectID) ([]primitive.ObjectID, error)
	Search(ctx context.Context, ids []primitive.ObjectID, q string, limit int) ([]models.Project, error)
}

type TaskSearcher interface {
	Search(ctx context.Context, projectIDs []primitive.ObjectID, q string, limit int) ([]models.Task, error)
}

type CommentSearcher interface {
	Search(ctx context.Context, projectIDs []primitive.ObjectID, q string, limit int) ([]models.Comment, error)
}

type Handler struct {
	Projects ProjectSearcher
	Tasks    TaskSearcher
	Comments CommentSearcher
	Log      *zap.Logger
}

func NewHandler(projects ProjectSearcher, tasks TaskSearcher, comments CommentSearcher, logger *zap.Logger) *Handler {
	return &Handler{Projects: projects, Tasks: tasks, Comments: comments, Log: logger}
}

// Routes mounts GET / behind authenticate.
func Routes(h *Handler, authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authenticate)
	r.Get("/", h.ServeSearch)
	return r
}

type results struct {
	Query      string           `json:"query"`
	Projects   []models.Project `json:"projects"`
	Tasks      []models.Task    `json:"tasks"`
	Comments   []models.Comment `json:"comments"`
	TotalCount int              `json:"totalCount"`
}

var (
	errNoQuery  = apierr.Invalid("search query is required", map[string]string{"q": "is required"})
	errBadLimit = apierr.Invalid("limit must be a number", map[string]string{"limit": "must be a number"})
)

// ServeSearch runs the three collection searches in parallel, each capped
// at limit and ranked by relevance.
// GET /search?q&limit
func (h *Handler) ServeSearch(w http.ResponseWriter, r *http.Request) {
	acct, _ := auth.CurrentAccount(r)
	q := textsearch.Normalize(query.Get(r, "q"))
	if q == "" {
		apierr.Write(w, h.Log, errNoQuery)
		return
	}
	limit := textsearch.DefaultLimit
	if raw := query.Get(r, "limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			apierr.Write(w, h.Log, errBadLimit)
			return
		}
		limit = textsearch.ClampLimit(n)
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Long(), h.Log, "search")
	defer cancel()

	ids, err := h.Projects.IDsForMember(ctx, acct.ID)
	if err != nil {
		apierr.Write(w, h.Log, apierr.StoreFailure(err))
		return
	}

	out := results{Query: q, Projects: []models.Project{}, Tasks: []models.Task{}, Comments: []models.Comment{}}
	if len(ids) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() (err error) {
			out.Projects, err = h.Projects.Search(gctx, ids, q, limit)
			return err
		})
		g.Go(func() (err error) {
			out.Tasks, err = h.Tasks.Search(gctx, ids, q, limit)
			return err
		})
		g.Go(func() (err error) {
			out.Comments, err = h.Comments.Search(gctx, ids, q, limit)
			return err
		})
		if err := g.Wait(); err != nil {
			h.Log.Warn("search failed", zap.String("query", q), zap.Error(err))
			apierr.Write(w, h.Log, apierr.StoreFailure(err))
			return
		}
	}
	out.TotalCount = len(out.Projects) + len(out.Tasks) + len(out.Comments)
	shared.OK(w, http.StatusOK, out)
}
