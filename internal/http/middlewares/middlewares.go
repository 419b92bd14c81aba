// Package middlewares tiene los decoradores HTTP del servicio: request id,
// logging, recover, rate limit y el gate de autenticación/scopes.
package middlewares

import "net/http"

// Middleware es un decorador de http.Handler
type Middleware func(http.Handler) http.Handler
