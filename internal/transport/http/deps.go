package http

import (
	"github.com/go-rental-auth/internal/application/identity"
	"github.com/go-rental-auth/internal/transport/http/handler"
	"github.com/go-rental-auth/internal/transport/http/middleware"
)

// Deps holds everything the router needs. cmd/api builds it.
type Deps struct {
	Identity       identity.Service
	Licenses       handler.LicenseIntake
	Tokens         middleware.TokenVerifier
	Readiness      map[string]handler.Checker
	Limiter        *middleware.RateLimiter
	AllowedOrigins []string
	// TrustProxy takes the client address from forwarding headers. Enable only behind a proxy that overwrites them.
	TrustProxy bool
}
