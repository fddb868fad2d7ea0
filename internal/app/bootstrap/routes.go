// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"
	"time"

	commentsfeature "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/comments"
	errorsfeature "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/errors"
	healthfeature "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/health"
	projectsfeature "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/projects"
	searchfeature "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/search"
	tasksfeature "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/tasks"
	usersfeature "github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/features/users"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/apierr"
	"github.com/PratikChakraborty10/realtime-task-manager-backend/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var errTooManyRequests = apierr.New(apierr.RateLimited, "too many requests, try again later")

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// Startup have completed. The REST API lives under /api/v1; /ws, /health and
// /metrics sit at the root.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	s := current()
	if s == nil {
		return nil, errNotStarted
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   appCfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(metrics.Instrument)

	errorsHandler := errorsfeature.NewHandler(logger)
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, s.realtime, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket endpoint; authenticates during the handshake.
	r.Get("/ws", s.realtime.ServeHTTP)

	authLimit := httprate.Limit(appCfg.RateLimitAuth, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			apierr.Write(w, logger, errTooManyRequests)
		}))
	authenticate := s.auth.Authenticate

	r.Route("/api/v1", func(api chi.Router) {
		usersHandler := usersfeature.NewHandler(s.provider, s.accounts, s.history, s.logins, logger)
		api.Mount("/", usersfeature.Routes(usersHandler, authenticate, authLimit))

		projectsHandler := projectsfeature.NewHandler(s.gateway, s.projects, s.accounts, s.cursors, logger)
		api.Mount("/projects", projectsfeature.Routes(projectsHandler, authenticate))

		tasksHandler := tasksfeature.NewHandler(s.gateway, s.tasks, s.cursors, logger)
		api.Mount("/projects/{projectId}/tasks", tasksfeature.Routes(tasksHandler, authenticate))

		commentsHandler := commentsfeature.NewHandler(s.gateway, s.comments, s.cursors, logger)
		api.Mount("/tasks/{taskId}/comments", commentsfeature.TaskRoutes(commentsHandler, authenticate))
		api.Mount("/comments", commentsfeature.Routes(commentsHandler, authenticate))

		searchHandler := searchfeature.NewHandler(s.projects, s.tasks, s.comments, logger)
		api.Mount("/search", searchfeature.Routes(searchHandler, authenticate))
	})

	return r, nil
}
