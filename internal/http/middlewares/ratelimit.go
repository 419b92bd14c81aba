package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	httpapi "github.com/dropDatabas3/checkjohn/internal/http"
	"github.com/dropDatabas3/checkjohn/internal/observability/logger"
	"github.com/dropDatabas3/checkjohn/internal/rate"
)

// WithRateLimit limita requests por IP de cliente antes de verificar nada.
// Si el limiter falla (ej. redis caído) el request pasa: preferimos perder
// el límite antes que tirar tráfico legítimo por infraestructura auxiliar.
func WithRateLimit(l rate.Limiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), clientIP(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter unavailable, allowing request",
					logger.Component("http.ratelimit"),
					logger.Err(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if !res.Allowed {
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httpapi.WriteError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP resuelve la IP del cliente. X-Forwarded-For solo tiene sentido
// detrás de un proxy propio; se toma el primer hop.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
