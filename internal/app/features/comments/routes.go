package comments

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// TaskRoutes mounts creation and listing under a task:
// r.Mount("/tasks/{taskId}/comments", comments.TaskRoutes(h, mw.Authenticate))
func TaskRoutes(h *Handler, authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authenticate)
	r.Post("/", h.HandleCreate)
	r.Get("/", h.ServeList)
	return r
}

// Routes mounts the per-comment endpoints:
// r.Mount("/comments", comments.Routes(h, mw.Authenticate))
func Routes(h *Handler, authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authenticate)
	r.Patch("/{commentId}", h.HandleUpdate)
	r.Delete("/{commentId}", h.HandleDelete)
	return r
}
