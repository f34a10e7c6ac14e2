package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/go-rental-auth/internal/transport/http/handler"
	appmiddleware "github.com/go-rental-auth/internal/transport/http/middleware"
)

// NewRouter builds and returns the application router.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()
	if deps.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(appmiddleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Only routes that check a code or a password are limited.
	limit := func(next http.Handler) http.Handler { return next }
	if deps.Limiter != nil {
		limit = deps.Limiter.Limit
	}

	healthH := handler.NewHealthHandler()
	for name, check := range deps.Readiness {
		healthH.Register(name, check)
	}
	authH := handler.NewAuthHandler(deps.Identity, deps.Licenses)
	profileH := handler.NewProfileHandler(deps.Identity, deps.Licenses)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Action)

		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authH.Signup)
			r.With(limit).Post("/verify", authH.VerifyEmail)
			r.Post("/resend-verification", authH.ResendVerification)
			r.With(limit).Post("/login", authH.Login)
			r.Post("/forgot-password", authH.ForgotPassword)
			r.With(limit).Post("/reset-password", authH.ResetPassword)
		})

		r.Group(func(r chi.Router) {
			r.Use(appmiddleware.Auth(deps.Tokens))
			r.Get("/user/me", profileH.Get)
			r.Put("/user/me", profileH.Update)
		})
	})

	return r
}
