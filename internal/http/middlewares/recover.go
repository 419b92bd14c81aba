package middlewares

import (
	"net/http"

	httpapi "github.com/dropDatabas3/checkjohn/internal/http"
	"github.com/dropDatabas3/checkjohn/internal/observability/logger"
)

// WithRecover captura panics y devuelve un error 500 en lugar de crashear.
// Los fallos de verificación esperables son valores y nunca llegan acá;
// un panic es un bug nuestro, no un token inválido.
func WithRecover() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log := logger.From(r.Context())
					log.Error("panic recovered",
						logger.Op("recover"),
						logger.Any("panic", rec),
					)
					httpapi.WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
