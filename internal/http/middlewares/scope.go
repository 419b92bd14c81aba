package middlewares

import (
	"net/http"

	httpapi "github.com/dropDatabas3/checkjohn/internal/http"
	"github.com/dropDatabas3/checkjohn/internal/observability/logger"
	"github.com/dropDatabas3/checkjohn/internal/util"
	"github.com/dropDatabas3/checkjohn/internal/validation"
)

// RequireScopes exige que el token autenticado traiga TODOS los scopes
// dados. Corre después de RequireAuth: sin Identity en el contexto es un
// error de wiring y responde 401 igual que un token ausente.
//
// Token válido sin el scope => 403, no 401: la autenticación pasó, lo que
// falta es autorización (RFC 6750 §3.1, insufficient_scope).
func RequireScopes(scopes ...string) Middleware {
	for _, s := range scopes {
		if !validation.ValidScopeName(s) {
			// Configuración rota: fallar en el arranque, no por request
			panic("middlewares: invalid scope name in RequireScopes: " + s)
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := GetIdentity(r.Context())
			if id == nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				httpapi.WriteError(w, http.StatusUnauthorized, "invalid_token", "token rejected")
				return
			}
			for _, s := range scopes {
				if !id.HasScope(s) {
					logger.From(r.Context()).Info("scope check failed",
						logger.Component("http.scopes"),
						logger.Subject(util.MaskSubject(id.Subject)),
						logger.String("missing_scope", s),
					)
					w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="insufficient_scope"`)
					httpapi.WriteError(w, http.StatusForbidden, "insufficient_scope", "token lacks required scope")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
