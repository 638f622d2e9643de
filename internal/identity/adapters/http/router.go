package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/viralforge/taskboard/internal/identity/application"
	"github.com/viralforge/taskboard/internal/platform/web"
)

// Handler is the HTTP adapter entrypoint for identity use-cases.
// Keeping only application dependency here preserves clean adapter boundaries.
type Handler struct {
	service *application.Service
}

// NewHandler constructs an HTTP handler bound to application service.
func NewHandler(service *application.Service) *Handler {
	return &Handler{service: service}
}

// NewRouter registers identity HTTP routes and middleware stack.
// Centralizing routes here ensures consistent auth and error behavior across endpoints.
func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(web.RequestID)
	r.Use(web.Recover)
	r.Use(web.AccessLog)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/identity/v1", func(r chi.Router) {
		r.Post("/signup", handler.signup)
		r.Post("/login", handler.login)
		r.Post("/verify", handler.verify)

		r.Group(func(r chi.Router) {
			r.Use(handler.authMiddleware)
			r.Get("/account", handler.getAccount)
			r.Put("/account", handler.updateAccount)
			r.Delete("/account", handler.deleteAccount)
		})
	})

	return r
}
