package security

import (
	"crypto/subtle"
	"net/http"
	"net/url"
	"strings"

	"github.com/noah-isme/backend-lavault/internal/common"
)

// CSRF guards cookie-authenticated form posts. A request passes when its
// Origin (or Referer) is trusted, or when it carries a double-submit token
// matching the cookie of the same name. Bearer requests and exempt paths are
// not checked.
type CSRF struct {
	Header         string
	TrustedOrigins []string
	Exempt         []string
}

// Middleware rejects unsafe requests failing the checks with 403 CSRF_FAILED.
func (c CSRF) Middleware(next http.Handler) http.Handler {
	headerName := strings.TrimSpace(c.Header)
	if headerName == "" {
		headerName = "X-CSRF-Token"
	}
	trusted := make(map[string]struct{}, len(c.TrustedOrigins))
	for _, origin := range c.TrustedOrigins {
		if o := normalizeOrigin(origin); o != "" {
			trusted[o] = struct{}{}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
			next.ServeHTTP(w, r)
			return
		}
		if isExempt(r.URL.Path, c.Exempt) {
			next.ServeHTTP(w, r)
			return
		}
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(r.Header.Get("Authorization"))), "bearer ") {
			next.ServeHTTP(w, r)
			return
		}
		if origin := requestOrigin(r); origin != "" {
			if _, ok := trusted[origin]; ok {
				next.ServeHTTP(w, r)
				return
			}
		}

		token := strings.TrimSpace(r.Header.Get(headerName))
		cookie, err := r.Cookie(headerName)
		if token == "" || err != nil || !tokensEqual(token, strings.TrimSpace(cookie.Value)) {
			common.JSONError(w, http.StatusForbidden, "CSRF_FAILED", "cross-site request rejected", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requestOrigin(r *http.Request) string {
	if origin := normalizeOrigin(r.Header.Get("Origin")); origin != "" {
		return origin
	}
	return normalizeOrigin(r.Header.Get("Referer"))
}

func normalizeOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Scheme + "://" + u.Host)
}

func tokensEqual(a, b string) bool {
	if a == "" || len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
