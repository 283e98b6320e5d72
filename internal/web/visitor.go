package web

import (
	"context"
	"net"
	"net/http"

	"github.com/librarydesk/librarian/internal/http/response"
	"github.com/librarydesk/librarian/internal/id"
)

type ctxKey string

const visitorKeyCtx ctxKey = "visitor"

// visitorCookie resolves the visitor key from the sealed cookie, issuing a
// new key when the cookie is missing, expired or forged. The cookie is
// re-sealed on every request so active visitors keep their key.
func (s *Server) visitorCookie(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if c, err := r.Cookie(s.opts.CookieName); err == nil {
			if opened, err := s.deps.Sealer.Open(c.Value); err == nil && id.HasPrefix(opened, id.PrefixVisitor) {
				key = opened
			}
		}
		if key == "" {
			generated, err := id.Generate(id.PrefixVisitor)
			if err != nil {
				s.logger.WithError(err).Error("Failed to generate visitor key")
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}
			key = generated
		}

		http.SetCookie(w, &http.Cookie{
			Name:     s.opts.CookieName,
			Value:    s.deps.Sealer.Seal(key),
			Path:     "/",
			MaxAge:   int(s.deps.Sealer.TTL().Seconds()),
			HttpOnly: true,
			Secure:   s.opts.SecureCookie,
			SameSite: http.SameSiteLaxMode,
		})

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorKeyCtx, key)))
	})
}

// visitorKey returns the key set by visitorCookie.
func visitorKey(ctx context.Context) string {
	key, _ := ctx.Value(visitorKeyCtx).(string)
	return key
}

// visitorFromRequest adapts visitorKey for the SSE handler.
func visitorFromRequest(r *http.Request) (string, bool) {
	key := visitorKey(r.Context())
	return key, key != ""
}

// rateLimitSignIn rejects sign-in and sign-up bursts from one client IP.
func (s *Server) rateLimitSignIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.deps.SignInLimiter == nil {
			next.ServeHTTP(w, r)
			return
		}
		ip := clientIP(r)
		if !s.deps.SignInLimiter.Allow(ip) {
			s.logger.Warn("Sign-in rate limit exceeded", "ip", ip, "path", r.URL.Path)
			response.TooManyRequests(w, "Too many sign-in attempts. Please try again later.", s.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the request's remote host. middleware.RealIP has
// already applied X-Forwarded-For and X-Real-IP.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
