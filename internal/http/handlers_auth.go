package http

import (
	"net/http"
	"time"

	"farmbook/internal/auth"
	"farmbook/internal/core"
)

type credentials struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type sessionResponse struct {
	User      core.User `json:"user"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, session, err := s.auth.SignUp(r.Context(), sanitizeInput(in.Email), sanitizeInput(in.Name), in.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setSessionCookie(w, r, session)
	writeJSON(w, http.StatusCreated, sessionResponse{User: user, Token: session.Token, ExpiresAt: session.ExpiresAt})
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := decodeJSON(w, r, &in); err != nil {
		s.writeError(w, r, err)
		return
	}
	user, session, err := s.auth.SignIn(r.Context(), sanitizeInput(in.Email), in.Password)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	setSessionCookie(w, r, session)
	writeJSON(w, http.StatusOK, sessionResponse{User: user, Token: session.Token, ExpiresAt: session.ExpiresAt})
}

// handleSignOut revokes the presented session. It succeeds without one.
func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if token := auth.TokenFromHeader(r.Header); token != "" {
		if err := s.auth.SignOut(r.Context(), token); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, id core.Identity) {
	writeJSON(w, http.StatusOK, id)
}

func setSessionCookie(w http.ResponseWriter, r *http.Request, session core.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
