package chi

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/asksite/internal/domain"
	logpkg "github.com/kailas-cloud/asksite/internal/logger"
)

// limiter is the slice of the rate limiter the transport consumes.
type limiter interface {
	Allow(ctx context.Context, ip string) (bool, error)
}

// originMiddleware rejects cross-origin requests to the visitor endpoints.
// Requests without an Origin header pass; these endpoints are called by
// first-party widgets and by curl during setup.
func (s *Server) originMiddleware(next http.Handler) http.Handler {
	siteHost := hostOf(s.siteBaseURL)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" || siteHost == "" || hostOf(origin) == siteHost {
			next.ServeHTTP(w, r)
			return
		}

		logpkg.FromContext(r.Context(), s.logger).Warn("blocked cross-origin request",
			zap.String("origin", origin),
			zap.String("path", r.URL.Path))
		s.handleDomainError(w, r, fmt.Errorf("origin %q: %w", origin, domain.ErrOriginBlocked))
	})
}

// rateLimitMiddleware enforces the hourly per-IP budget on the visitor
// endpoints. Limiter backend failures fail open.
func (s *Server) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)

		ok, err := s.limiter.Allow(r.Context(), ip)
		if err != nil {
			logpkg.FromContext(r.Context(), s.logger).Warn("rate limit check failed", zap.Error(err))
			next.ServeHTTP(w, r)
			return
		}
		if !ok {
			s.handleDomainError(w, r, fmt.Errorf("client %s: %w", ip, domain.ErrRateLimited))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientIP resolves the caller's address behind CDN and proxy hops.
// CF-Connecting-IP wins, then the first valid X-Forwarded-For entry, then
// the socket address.
func clientIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); ip != "" && net.ParseIP(ip) != nil {
		return ip
	}

	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		for _, part := range strings.Split(fwd, ",") {
			ip := strings.TrimSpace(part)
			if net.ParseIP(ip) != nil {
				return ip
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func hostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
