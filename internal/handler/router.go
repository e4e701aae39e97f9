package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/auxillium/backend/internal/handler/accounts"
	"github.com/auxillium/backend/internal/handler/chats"
	"github.com/auxillium/backend/internal/handler/intake"
	"github.com/auxillium/backend/internal/handler/stream"
	"github.com/auxillium/backend/internal/handler/worklist"
	"github.com/auxillium/backend/internal/middleware"
)

// Dependencies bundles everything the router mounts.
type Dependencies struct {
	Auth     *accounts.Handler
	Chats    *chats.Handler
	Worklist *worklist.Handler
	Intake   *intake.Handler
	Stream   *stream.Handler
	Sessions middleware.SessionResolver
}

// NewRouter wires HTTP routes to the services.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	r.Route("/api", func(api chi.Router) {
		// Public identity and intake-helper routes.
		deps.Auth.RegisterRoutes(api)
		deps.Intake.RegisterRoutes(api)

		// Everything else requires a resolved session.
		api.Group(func(private chi.Router) {
			private.Use(middleware.RequireSession(deps.Sessions))
			deps.Chats.RegisterRoutes(private)
			deps.Worklist.RegisterRoutes(private)
			deps.Stream.RegisterRoutes(private)
		})
	})

	return r
}
