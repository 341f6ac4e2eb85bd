package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"emitra-backend/internal/handlers"
	"emitra-backend/internal/middleware"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth      *handlers.AuthHandler
	User      *handlers.UserHandler
	Location  *handlers.LocationHandler
	Safety    *handlers.SafetyHandler
	SOS       *handlers.SOSHandler
	Chat      *handlers.ChatHandler
	WebSocket http.HandlerFunc
}

func New(jwtAuth *middleware.JWTAuth, authLimiter *middleware.RateLimiter, h Handlers, frontendURL string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", h.Auth.Register)
			r.Post("/verify", h.Auth.Verify)
			r.Post("/refresh", h.Auth.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", h.Auth.Logout)
			})
		})

		// ──── User Routes ────
		r.Route("/user", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/me", h.User.GetMe)
			r.Delete("/me", h.User.DeleteMe)
		})

		// ──── Location Routes ────
		r.Route("/location", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", h.Location.Update)
			r.Get("/", h.Location.Get)
		})

		// ──── Safety Routes ────
		r.Route("/safety", func(r chi.Router) {
			r.Get("/contacts", h.Safety.Contacts) // Public

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/suggestions", h.Safety.Suggestions)
				r.Post("/tips", h.Safety.Tips)
			})
		})

		r.With(jwtAuth.Middleware).Post("/translate", h.Safety.Translate)

		// ──── SOS Routes ────
		r.Route("/sos", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/", h.SOS.Trigger)
			r.Get("/", h.SOS.List)
			r.Get("/{id}", h.SOS.Get)
		})

		// ──── Chat Routes ────
		r.Route("/chat", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Post("/open", h.Chat.Open)
			r.Get("/", h.Chat.Get)
			r.Post("/messages", h.Chat.Send)
			r.Delete("/", h.Chat.Close)
			r.Post("/complete", h.Chat.Complete)
		})

		// ──── WebSocket ────
		r.Get("/ws", h.WebSocket)
	})

	return r
}

// DefaultAuthLimiter allows 10 auth requests per minute per IP.
func DefaultAuthLimiter() *middleware.RateLimiter {
	return middleware.NewRateLimiter(10, time.Minute)
}
