package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aatumaykin/taskrunner/internal/logger"
)

// Handler builds the router with all routes wired.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", s.handleHealth())
	r.Get("/", s.handleDashboard())

	if s.config.MetricsHandler != nil {
		r.Handle("/metrics", s.config.MetricsHandler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/tasks", s.handleListTasks())
		r.Post("/tasks", s.handleAddTask())
		r.Get("/tasks/{name}", s.handleGetTask())
		r.Delete("/tasks/{name}", s.handleRemoveTask())
		r.Post("/tasks/{name}/toggle", s.handleToggleTask())
		r.Post("/tasks/{name}/run", s.handleRunTask())

		r.Get("/scheduler", s.handleSchedulerStatus())
		r.Post("/scheduler/start", s.handleSchedulerStart())
		r.Post("/scheduler/stop", s.handleSchedulerStop())
	})

	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.DebugCtx(r.Context(), "http request",
			logger.Field{Key: "method", Value: r.Method},
			logger.Field{Key: "path", Value: r.URL.Path},
			logger.Field{Key: "status", Value: ww.Status()},
			logger.Field{Key: "duration", Value: time.Since(start).String()})
	})
}
