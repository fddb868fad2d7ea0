package tasks

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the task endpoints. The parent must capture {projectId}:
// r.Mount("/projects/{projectId}/tasks", tasks.Routes(h, mw.Authenticate))
func Routes(h *Handler, authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authenticate)

	r.Post("/", h.HandleCreate)
	r.Get("/", h.ServeList)
	r.Get("/{taskId}", h.ServeTask)
	r.Patch("/{taskId}", h.HandleUpdate)
	r.Delete("/{taskId}", h.HandleDelete)

	return r
}
