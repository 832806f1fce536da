// Package server assembles the HTTP router.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ayush/storefront/backend/internal/auth"
	"github.com/ayush/storefront/backend/internal/httpx"
	"github.com/ayush/storefront/backend/internal/middleware"
	"github.com/ayush/storefront/backend/internal/observability"
	"github.com/ayush/storefront/backend/internal/users"
)

// Deps are the constructed components the router mounts.
type Deps struct {
	Logger         *zap.Logger
	Auth           *auth.Handler
	Users          *users.Handler
	Tokens         middleware.TokenVerifier
	Accounts       middleware.AccountFinder
	Limiter        *middleware.RateLimiter
	Metrics        *observability.Metrics
	AllowedOrigins []string
	RequestTimeout time.Duration
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	// Leave it off unless a proxy in front overwrites those headers.
	TrustProxy bool
}

// NewRouter returns the API routes with the shared middleware stack.
func NewRouter(d Deps) http.Handler {
	protect := middleware.Protect(d.Tokens, d.Accounts, d.Logger)
	requireAdmin := middleware.RequireAdmin(d.Accounts, d.Logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if d.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(chimw.Recoverer)
	if d.RequestTimeout > 0 {
		r.Use(chimw.Timeout(d.RequestTimeout))
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", d.Auth.Signup)
		r.With(d.Limiter.Limit("login")).Post("/login", d.Auth.Login)
		r.With(d.Limiter.Limit("forgot_password")).Post("/forgot-password", d.Auth.ForgotPassword)
		r.Post("/reset-password/{token}", d.Auth.ResetPassword)
	})

	r.Route("/api/users", func(r chi.Router) {
		r.Get("/{id}/avatar", d.Users.Avatar)

		r.Group(func(r chi.Router) {
			r.Use(protect)
			r.Get("/me", d.Users.Me)
			r.With(requireAdmin).Get("/", d.Users.List)
			r.Put("/email/update/{id}", d.Users.UpdateEmail)
			r.Get("/{id}", d.Users.Get)
			r.Put("/{id}", d.Users.Update)
			r.Delete("/{id}", d.Users.Delete)
			r.Put("/{id}/avatar", d.Users.UploadAvatar)
		})
	})

	return r
}
