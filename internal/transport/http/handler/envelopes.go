package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-rental-auth/internal/domain"
)

// MessageEnvelope is the generic response wrapper. Every response carries status and message.
type MessageEnvelope struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
}

// UserEnvelope wraps signup and profile responses.
type UserEnvelope struct {
	Status  bool               `json:"status"`
	Message string             `json:"message"`
	User    *domain.PublicUser `json:"user"`
}

// LoginEnvelope wraps a successful login.
type LoginEnvelope struct {
	Status    bool               `json:"status"`
	Message   string             `json:"message"`
	User      *domain.PublicUser `json:"user"`
	Token     string             `json:"token"`
	ExpiresAt time.Time          `json:"expires_at"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Status: false, Message: msg})
}

func writeMessage(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusOK, MessageEnvelope{Status: true, Message: msg})
}
