package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"studyai-backend/internal/handlers"
	"studyai-backend/internal/logger"
	"studyai-backend/internal/middleware"
)

type Deps struct {
	Log             *logger.Logger
	JWTAuth         *middleware.JWTAuth // nil disables auth
	Content         *handlers.ContentHandler
	Study           *handlers.StudyHandler
	StudySets       *handlers.StudySetHandler // nil when no database is configured
	RateLimitPerMin int
	FrontendURL     string
	TrustProxy      bool // honour X-Forwarded-For / X-Real-IP for client IPs
}

// New builds the HTTP API. The returned stop func ends the rate limiter's
// cleanup goroutine.
func New(d Deps) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	if d.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{d.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader, "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Generation rate limiter (per IP)
	limit := d.RateLimitPerMin
	if limit <= 0 {
		limit = 20
	}
	genLimiter := middleware.NewRateLimiter(limit, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Content Routes ────
		r.Route("/content", func(r chi.Router) {
			r.Get("/supported-formats", d.Content.SupportedFormats) // Public

			r.Group(func(r chi.Router) {
				r.Use(d.JWTAuth.Middleware)
				r.Post("/extract", d.Content.Extract)
			})
		})

		// ──── Generation Routes ────
		r.Group(func(r chi.Router) {
			r.Use(d.JWTAuth.Middleware)
			r.Use(genLimiter.Middleware)
			r.Post("/study-materials", d.Study.Generate)
			r.Post("/concepts", d.Study.ExtractConcepts)
		})

		// ──── Study Set Routes ────
		if d.StudySets != nil {
			r.Route("/study-sets", func(r chi.Router) {
				r.Use(d.JWTAuth.Middleware)
				r.Get("/", d.StudySets.List)
				r.Get("/{id}", d.StudySets.Get)
				r.Delete("/{id}", d.StudySets.Delete)
			})
		}
	})

	return r, genLimiter.Stop
}
