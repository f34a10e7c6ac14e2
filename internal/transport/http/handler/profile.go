package handler

import (
	"net/http"

	"github.com/go-rental-auth/internal/application/identity"
	"github.com/go-rental-auth/internal/domain"
	"github.com/go-rental-auth/internal/transport/http/middleware"
)

// ProfileHandler serves the authenticated user's own record.
type ProfileHandler struct {
	svc      identity.Service
	licenses LicenseIntake
}

func NewProfileHandler(svc identity.Service, licenses LicenseIntake) *ProfileHandler {
	return &ProfileHandler{svc: svc, licenses: licenses}
}

func (h *ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	u, err := h.svc.GetProfile(r.Context(), claims.UserID)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Status: true, Message: "profile", User: u.ToPublic()})
}

// Update takes JSON, or multipart form data when a new license document is attached.
func (h *ProfileHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req domain.UpdateProfileRequest
	if isMultipart(r) {
		r.Body = http.MaxBytesReader(w, r.Body, maxFormBody)
		if err := r.ParseMultipartForm(formMemoryCap); err != nil {
			formError(w, err)
			return
		}
		req.Name = formPtr(r, "name")
		req.LicenseNumber = formPtr(r, "licenseNumber")
		key, err := readLicense(r, h.licenses)
		if err != nil {
			httpError(w, err)
			return
		}
		req.LicenseFile = key
	} else if !decodeJSON(w, r, &req) {
		return
	}

	u, err := h.svc.UpdateProfile(r.Context(), claims.UserID, req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, UserEnvelope{Status: true, Message: "profile updated", User: u.ToPublic()})
}

// formPtr distinguishes an absent field from an empty one.
func formPtr(r *http.Request, key string) *string {
	if vs, ok := r.MultipartForm.Value[key]; ok && len(vs) > 0 {
		return &vs[0]
	}
	return nil
}
