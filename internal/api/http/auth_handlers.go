package http

import (
	"errors"
	"net/http"

	"github.com/classware/quizdesk/internal/auth"
	"github.com/classware/quizdesk/internal/quiz"
)

// POST /auth/login {"username": "...", "password": "..."}
func LoginHandler(a *auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username" validate:"required"`
			Password string `json:"password" validate:"required"`
		}
		if err := decodeValid(r, &req); err != nil {
			errJSON(w, http.StatusBadRequest, "username and password required")
			return
		}
		token, st, err := a.Login(r.Context(), req.Username, req.Password)
		if err != nil {
			if errors.Is(err, auth.ErrInvalidCredentials) {
				errJSON(w, http.StatusUnauthorized, "invalid username or password")
				return
			}
			errJSON(w, http.StatusInternalServerError, "login failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": token,
			"role":         auth.Role(st),
			"username":     st.Username,
		})
	}
}

// POST /auth/register
func RegisterHandler(a *auth.AuthService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Username string `json:"username" validate:"required,min=2,max=64"`
			Email    string `json:"email" validate:"required,email"`
			Password string `json:"password" validate:"required,min=6"`
		}
		if err := decodeValid(r, &req); err != nil {
			errJSON(w, http.StatusBadRequest, "invalid registration payload")
			return
		}
		token, st, err := a.Register(r.Context(), req.Username, req.Email, req.Password)
		if err != nil {
			errJSON(w, http.StatusConflict, "could not create account (username or email taken?)")
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"access_token": token,
			"username":     st.Username,
		})
	}
}

// POST /auth/logout: a live attempt is recorded as incomplete before the
// session token is cleared, so closing out mid-quiz cannot be undone by a
// fresh login.
func LogoutHandler(a *auth.AuthService, svc *quiz.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, ok := auth.StudentFromContext(r.Context())
		if !ok {
			errJSON(w, http.StatusUnauthorized, "not logged in")
			return
		}
		status := svc.AutoRecordAbandoned(r.Context(), st)
		if status == quiz.BeaconError {
			// Keep the session token; the attempt write must land first.
			errJSON(w, http.StatusInternalServerError, "could not record attempt, try again")
			return
		}
		if err := a.ClearSession(r.Context(), st.ID); err != nil {
			errJSON(w, http.StatusInternalServerError, "logout failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out", "attempt": string(status)})
	}
}
