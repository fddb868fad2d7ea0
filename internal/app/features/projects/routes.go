package projects

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the project endpoints. Typically:
// r.Mount("/projects", projects.Routes(h, mw.Authenticate))
func Routes(h *Handler, authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authenticate)

	r.Post("/", h.HandleCreate)
	r.Get("/", h.ServeList)
	r.Get("/{id}", h.ServeProject)
	r.Patch("/{id}", h.HandleUpdate)
	r.Delete("/{id}", h.HandleDelete)

	r.Post("/{id}/members", h.HandleAddMember)
	r.Delete("/{id}/members/{userId}", h.HandleRemoveMember)

	return r
}
