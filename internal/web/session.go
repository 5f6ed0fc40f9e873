// ABOUTME: Session cookie middleware yielding a stable opaque session id
// ABOUTME: Issues a new id on first contact; the core never parses cookies

package web

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const (
	// SessionCookieName is the name of the session cookie
	SessionCookieName = "jarvis_session"

	// sessionMaxAge is how long the browser keeps the session cookie
	sessionMaxAge = 24 * 60 * 60 // one day, in seconds
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const sessionContextKey contextKey = "session_id"

// withSession ensures the request carries a stable opaque session id,
// issuing a fresh cookie when none is present, and stores the id in the
// request context. Everything downstream treats the id as opaque.
func (s *Server) withSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sessionID := ""
		if cookie, err := r.Cookie(SessionCookieName); err == nil {
			sessionID = cookie.Value
		}

		if sessionID == "" {
			sessionID = uuid.New().String()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				Path:     "/",
				MaxAge:   sessionMaxAge,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
			s.logger.Debug("issued session cookie")
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, sessionID)
		next(w, r.WithContext(ctx))
	}
}

// sessionFromContext retrieves the session id stored by withSession.
func sessionFromContext(r *http.Request) string {
	id, _ := r.Context().Value(sessionContextKey).(string)
	return id
}
