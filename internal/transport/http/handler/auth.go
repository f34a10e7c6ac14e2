package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/go-rental-auth/internal/application/identity"
	"github.com/go-rental-auth/internal/application/license"
	"github.com/go-rental-auth/internal/domain"
)

const (
	maxJSONBody = 1 << 20
	// maxFormBody leaves room for the text fields next to a maximum-size document.
	maxFormBody   = license.MaxSize + 1<<20
	licenseField  = "licenseFile"
	formMemoryCap = 1 << 20
)

// LicenseIntake accepts an uploaded license document and returns its storage key.
type LicenseIntake interface {
	Accept(ctx context.Context, filename string, r io.Reader, size int64) (string, error)
}

// AuthHandler serves the signup, verification, login and password reset endpoints.
type AuthHandler struct {
	svc      identity.Service
	licenses LicenseIntake
}

func NewAuthHandler(svc identity.Service, licenses LicenseIntake) *AuthHandler {
	return &AuthHandler{svc: svc, licenses: licenses}
}

// Signup accepts JSON, or multipart form data when a license document is attached.
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseMultipartForm(formMemoryCap); err != nil {
			formError(w, err)
			return
		}
		req = domain.SignupRequest{
			Name:          r.FormValue("name"),
			Email:         r.FormValue("email"),
			Password:      r.FormValue("password"),
			LicenseNumber: r.FormValue("licenseNumber"),
		}
		key, err := readLicense(r, h.licenses)
		if err != nil {
			httpError(w, err)
			return
		}
		req.LicenseFile = key
	} else if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, UserEnvelope{
		Status:  true,
		Message: "signup successful, check your email for the verification code",
		User:    u.ToPublic(),
	})
}

func (h *AuthHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req domain.VerifyEmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.VerifyEmail(r.Context(), req.Email, req.OTP); err != nil {
		httpError(w, err)
		return
	}
	writeMessage(w, "email verified")
}

func (h *AuthHandler) ResendVerification(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ResendVerification(r.Context(), req.Email); err != nil {
		httpError(w, err)
		return
	}
	writeMessage(w, "a new verification code has been sent")
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.svc.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{
		Status:    true,
		Message:   "login successful",
		User:      res.User.ToPublic(),
		Token:     res.Token,
		ExpiresAt: res.ExpiresAt,
	})
}

func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.EmailRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ForgotPassword(r.Context(), req.Email); err != nil {
		httpError(w, err)
		return
	}
	writeMessage(w, "a password reset code has been sent")
}

func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.svc.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword); err != nil {
		httpError(w, err)
		return
	}
	writeMessage(w, "password has been reset")
}

// readLicense stores the optional document of a parsed multipart request.
func readLicense(r *http.Request, intake LicenseIntake) (*string, error) {
	file, hdr, err := r.FormFile(licenseField)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	key, err := intake.Accept(r.Context(), hdr.Filename, file, hdr.Size)
	if err != nil {
		return nil, err
	}
	return &key, nil
}

func isMultipart(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "multipart/form-data"
}

// decodeJSON reads a bounded JSON body into v, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func formError(w http.ResponseWriter, err error) {
	var mbe *http.MaxBytesError
	if errors.As(err, &mbe) || strings.Contains(err.Error(), "request body too large") {
		writeError(w, http.StatusRequestEntityTooLarge, "license file must be 5MB or smaller")
		return
	}
	slog.Debug("bad multipart body", "err", err)
	writeError(w, http.StatusBadRequest, "invalid form body")
}
