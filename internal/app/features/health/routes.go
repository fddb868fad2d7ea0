package health

import "github.com/go-chi/chi/v5"

// Routes serves GET and HEAD on the mount point. Load balancers that only
// probe with HEAD get the same status code without the body.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Serve)
	r.Head("/", h.Serve)
	return r
}
