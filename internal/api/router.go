package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/reciperag/session-cache/internal/api/handler"
	customMiddleware "github.com/reciperag/session-cache/internal/api/middleware"
	"github.com/reciperag/session-cache/internal/config"
	"github.com/reciperag/session-cache/internal/remote"
	"github.com/reciperag/session-cache/internal/security"
	"github.com/reciperag/session-cache/internal/storage"
)

// Deps carries the wired backends the router needs.
type Deps struct {
	Selector     storage.Selector
	RemoteClient *remote.Client
	DB           handler.Pinger
}

// NewRouter creates and configures the HTTP router
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(customMiddleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Server.MiddlewareTimeout))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Auth-state detection (not a gate: guests pass as guests)
	jwtManager := security.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTL)
	authState := customMiddleware.NewAuthStateMiddleware(jwtManager)

	// Handlers
	sessionHandler := handler.NewSessionHandler(deps.Selector, deps.RemoteClient)
	chatHandler := handler.NewChatHandler(deps.Selector, deps.RemoteClient)

	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", handler.HealthCheck)
		r.Get("/ready", handler.ReadyCheck(deps.DB))

		r.Group(func(r chi.Router) {
			r.Use(authState.Detect)

			r.Route("/session", func(r chi.Router) {
				r.Get("/", sessionHandler.GetCurrent)
				r.Post("/", sessionHandler.Create)
				r.Delete("/", sessionHandler.Clear)

				r.Put("/ingredients", sessionHandler.SetIngredients)
				r.Put("/recipe", sessionHandler.SetRecipe)
				r.Post("/messages", sessionHandler.AppendMessage)
				r.Post("/refinements", sessionHandler.AppendRefinement)
				r.Post("/resume/{sessionID}", sessionHandler.Resume)
			})

			r.Post("/chat/message", chatHandler.Send)
		})
	})

	return r
}
