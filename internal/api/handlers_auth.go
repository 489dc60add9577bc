package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/commodex/paper-engine/internal/auth"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// handleRegister handles POST /api/v1/auth/register.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	err := s.auth.Register(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
	case errors.Is(err, auth.ErrUserExists):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case errors.Is(err, auth.ErrInvalidUsername), errors.Is(err, auth.ErrWeakPassword):
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	default:
		slog.Error("register failed", "err", err)
		writeError(w, "registration failed", http.StatusInternalServerError)
		return
	}

	username := strings.ToLower(strings.TrimSpace(req.Username))
	respondJSON(w, http.StatusCreated, map[string]string{"username": username})
}

// handleLogin handles POST /api/v1/auth/login.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	token, err := s.auth.Login(r.Context(), req.Username, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		writeError(w, err.Error(), http.StatusUnauthorized)
		return
	}
	if err != nil {
		slog.Error("login failed", "err", err)
		writeError(w, "login failed", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		Username: strings.ToLower(strings.TrimSpace(req.Username)),
	})
}

// handleLogout handles POST /api/v1/auth/logout.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.auth.Logout(r.Context(), bearerToken(r)); err != nil {
		slog.Error("logout failed", "err", err)
		writeError(w, "logout failed", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
