package users

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes mounts the account endpoints. authenticate guards the endpoints
// that need a caller; limit throttles the public signup and login posts.
func Routes(h *Handler, authenticate, limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Group(func(pub chi.Router) {
		pub.Use(limit)
		pub.Post("/signup", h.HandleSignup)
		pub.Post("/login", h.HandleLogin)
	})

	r.Group(func(pr chi.Router) {
		pr.Use(authenticate)
		pr.Get("/get-profile", h.ServeProfile)
		pr.Get("/users/lookup", h.ServeLookup)
		pr.Get("/users/me/logins", h.ServeLogins)
	})

	return r
}
