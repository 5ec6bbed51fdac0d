package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-lavault/internal/common"
)

// Middleware resolves the session from the request and gates protected routes.
type Middleware struct {
	Service       *Service
	SessionCookie string
}

// SessionFrom returns the session attached to ctx by Authenticate.
// A session without a user id is reported as absent.
func SessionFrom(ctx context.Context) (Session, bool) {
	id, ok := common.UserID(ctx)
	if !ok {
		return Session{}, false
	}
	return Session{UserID: id, Email: common.UserEmail(ctx)}, true
}

// Authenticate attaches the session to the request context when a valid token is present.
// It never rejects a request.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if sess, ok := m.resolve(r); ok {
			r = r.WithContext(common.WithIdentity(r.Context(), sess.UserID, sess.Email))
		}
		next.ServeHTTP(w, r)
	})
}

// RequireSession redirects to loginPath when the request carries no session.
// The wrapped handler does not run in that case.
func (m Middleware) RequireSession(loginPath string) func(http.Handler) http.Handler {
	if loginPath == "" {
		loginPath = "/login"
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := SessionFrom(r.Context()); ok {
				next.ServeHTTP(w, r)
				return
			}
			sess, ok := m.resolve(r)
			if !ok {
				common.SeeOther(w, r, loginPath)
				return
			}
			next.ServeHTTP(w, r.WithContext(common.WithIdentity(r.Context(), sess.UserID, sess.Email)))
		})
	}
}

func (m Middleware) resolve(r *http.Request) (Session, bool) {
	if m.Service == nil {
		return Session{}, false
	}
	token := m.extractToken(r)
	if token == "" {
		return Session{}, false
	}
	sess, err := m.Service.ParseSession(token)
	if err != nil {
		zerolog.Ctx(r.Context()).Debug().Err(err).Msg("session rejected")
		return Session{}, false
	}
	return sess, true
}

func (m Middleware) extractToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(header), "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	if m.SessionCookie != "" {
		if cookie, err := r.Cookie(m.SessionCookie); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value
			}
		}
	}
	return ""
}
