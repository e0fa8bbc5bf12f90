package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter creates a new router with all routes configured
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (all routes)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware)
	r.Use(middleware.Recoverer)

	// Evaluation replays the pipeline over every eligible user; allow a
	// small burst, then one run per 10 seconds.
	evaluateRateLimiter := NewRateLimiter(3, 10*time.Second)

	r.Route("/api/v1", func(r chi.Router) {
		// Public routes (no auth required)
		r.Get("/health", h.Health)

		// Protected routes (auth required)
		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(h.apiKey))

			r.Get("/personality/{userID}", h.GetPersonality)

			r.Get("/recommendations/trending", h.GetTrending)
			r.Get("/recommendations/{userID}", h.GetRecommendations)

			r.Get("/products/{productID}/similar", h.GetSimilarProducts)
			r.Put("/products", h.UpsertProduct)

			r.Post("/events", h.PostEvents)

			r.Post("/feedback", h.PostFeedback)
			r.Delete("/feedback/{userID}/{productID}", h.DeleteFeedback)

			r.With(evaluateRateLimiter.Middleware).Post("/evaluate", h.PostEvaluate)
		})
	})

	return r
}
