package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-rental-auth/internal/application/license"
	"github.com/go-rental-auth/internal/domain"
)

// httpError maps a service error to a status and a message safe to show the caller.
// Anything unclassified is logged and reported as a generic 500.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, license.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, "license file must be 5MB or smaller")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, detail(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrExpiredOTP):
		writeError(w, http.StatusBadRequest, detail(err, domain.ErrExpiredOTP))
	case errors.Is(err, domain.ErrInvalidOTP):
		writeError(w, http.StatusBadRequest, "invalid otp")
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, "email already registered")
	case errors.Is(err, domain.ErrAlreadyVerified):
		writeError(w, http.StatusConflict, "email already verified")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, domain.ErrUnverified):
		writeError(w, http.StatusForbidden, "verify your email before logging in")
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrTooManyAttempts):
		writeError(w, http.StatusTooManyRequests, "too many wrong codes, try again later")
	case errors.Is(err, domain.ErrUnavailable):
		slog.Error("dependency unavailable", "err", err)
		writeError(w, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// detail strips the trailing sentinel text, leaving the message the service wrote for the caller.
func detail(err, sentinel error) string {
	return strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
}
