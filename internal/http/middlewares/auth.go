package middlewares

import (
	"context"
	"net/http"

	httpapi "github.com/dropDatabas3/checkjohn/internal/http"
	jwtx "github.com/dropDatabas3/checkjohn/internal/jwt"
)

// =================================================================================
// AUTHENTICATION MIDDLEWARES
// =================================================================================

// Authenticator es el contrato del gate de verificación.
type Authenticator interface {
	Authenticate(ctx context.Context, h http.Header) (*jwtx.Identity, error)
}

// RequireAuth valida Authorization: Bearer <JWT> y guarda la Identity en el
// contexto. Si el token es inválido o no está presente, responde 401 con una
// descripción genérica: la causa puntual queda en logs, nunca en el body.
func RequireAuth(gate Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := gate.Authenticate(r.Context(), r.Header)
			if err != nil {
				if jwtx.CodeOf(err) == jwtx.CodeMissingCredential {
					w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_request", error_description="missing bearer token"`)
					httpapi.WriteError(w, http.StatusUnauthorized, "missing_token", "authorization required")
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				httpapi.WriteError(w, http.StatusUnauthorized, "invalid_token", "token rejected")
				return
			}

			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth intenta validar el token pero NO falla si no está presente o
// es inválido. Útil para endpoints con comportamiento distinto para usuarios
// autenticados.
func OptionalAuth(gate Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := gate.Authenticate(r.Context(), r.Header)
			if err != nil {
				// Sin token o token inválido: continuar anónimo
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithIdentity(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
