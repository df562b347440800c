package api

import (
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/swapmeet-dev/swapmeet/internal/api/middleware"
	"github.com/swapmeet-dev/swapmeet/internal/handlers"
	"github.com/swapmeet-dev/swapmeet/internal/store"
	"github.com/swapmeet-dev/swapmeet/internal/ws"
)

// NewRouter creates and configures the HTTP router.
func NewRouter(logger zerolog.Logger, h *handlers.Handler, hub *ws.Hub, cache *store.RedisCache) *chi.Mux {
	r := chi.NewRouter()

	// Metrics middleware (first to capture all requests)
	r.Use(middleware.Metrics)

	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.MaxBodySize(8 * 1024))
	r.Use(middleware.ValidateRequest)

	// Standard middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(chimw.Recoverer)

	// CORS - clients call from app webviews on any origin
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Member-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Metrics endpoint (for Prometheus scraping)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/health", h.Health)

	limiter := middleware.NewRateLimiter(cache.Client(), logger, 30, time.Minute)

	// Everything below carries a pre-validated member identity.
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RequireMember)

		r.Get("/rooms", h.ListRooms)
		r.Post("/trade/rooms", h.OpenTradeRoom)
		r.Post("/trade/rooms/{id}/complete", h.CompleteTrade)
		r.Post("/meetup/rooms/join", h.JoinMeetupRoom)
		r.Post("/rooms/{id}/leave", h.LeaveRoom)
		r.Post("/rooms/{id}/read", h.MarkRead)
		r.Get("/rooms/{id}/messages", h.GetHistory)

		r.Group(func(r chi.Router) {
			r.Use(limiter.Middleware)
			r.Post("/rooms/{id}/messages", h.SubmitMessage)
		})
	})

	// Live delivery
	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireMember)
		r.Get("/ws", ws.Handler(hub, logger))
	})

	return r
}
