package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viralforge/taskboard/internal/platform/web"
	"github.com/viralforge/taskboard/internal/tasktracker/application"
)

// Handler is the HTTP adapter entrypoint for task-board use-cases.
type Handler struct {
	service *application.Service
}

func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers task routes and the shared middleware stack. Every task
// endpoint requires an authenticated caller; only the health endpoints are public.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(web.RequestID)
	r.Use(web.Recover)
	r.Use(web.AccessLog)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/tasks/v1", func(r chi.Router) {
		r.Use(handler.authMiddleware)
		r.Post("/tasks", handler.createTask)
		r.Get("/tasks", handler.listTasks)
		r.Post("/tasks/shuffle", handler.shuffleTasks)
		r.Post("/tasks/{task_id}/complete", handler.completeTask)
	})

	return r
}
