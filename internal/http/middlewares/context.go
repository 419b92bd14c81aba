package middlewares

import (
	"context"

	jwtx "github.com/dropDatabas3/checkjohn/internal/jwt"
)

// =================================================================================
// CONTEXT KEYS
// =================================================================================

type ctxKey string

const (
	// ctxIdentityKey guarda la Identity verificada
	ctxIdentityKey ctxKey = "identity"
	// ctxRequestIDKey guarda el request ID
	ctxRequestIDKey ctxKey = "request_id"
)

// =================================================================================
// CONTEXT SETTERS (Internos, usados por middlewares)
// =================================================================================

// WithIdentity inyecta la identidad verificada en el contexto
func WithIdentity(ctx context.Context, id *jwtx.Identity) context.Context {
	return context.WithValue(ctx, ctxIdentityKey, id)
}

// setRequestID inyecta el request ID en el contexto (interno)
func setRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxRequestIDKey, requestID)
}

// =================================================================================
// CONTEXT GETTERS (Públicos, usados por handlers)
// =================================================================================

// GetIdentity obtiene la identidad verificada del contexto.
// Retorna nil si no hay (token no validado o middleware no aplicado).
func GetIdentity(ctx context.Context) *jwtx.Identity {
	if v := ctx.Value(ctxIdentityKey); v != nil {
		if id, ok := v.(*jwtx.Identity); ok {
			return id
		}
	}
	return nil
}

// GetUserID obtiene el subject de la identidad del contexto; "" si no hay.
func GetUserID(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.Subject
	}
	return ""
}

// GetRequestID obtiene el request ID del contexto; "" si no hay.
func GetRequestID(ctx context.Context) string {
	if v := ctx.Value(ctxRequestIDKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
