// Package router define las rutas HTTP del servicio.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/checkjohn/internal/http/handlers"
	mw "github.com/dropDatabas3/checkjohn/internal/http/middlewares"
	"github.com/dropDatabas3/checkjohn/internal/oidc"
	"github.com/dropDatabas3/checkjohn/internal/rate"
)

// Deps contiene las dependencias del router. Todo inyectado: nada de
// estado global escondido.
type Deps struct {
	Gate     mw.Authenticator
	KeyCache *oidc.KeyCache

	// RateLimiter, si no es nil, limita por IP las rutas protegidas.
	RateLimiter rate.Limiter

	// RequiredScopes, si no está vacío, se exige en todas las rutas
	// protegidas además de la autenticación.
	RequiredScopes []string
}

// New arma el router completo del servicio.
func New(deps Deps) http.Handler {
	r := chi.NewRouter()

	// Plumbing para todo el árbol
	r.Use(mw.WithRequestID())
	r.Use(mw.WithLogging())
	r.Use(mw.WithRecover())

	health := handlers.NewHealth(deps.KeyCache)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Rutas protegidas: el limiter corta antes de gastar criptografía,
	// después el gate decide.
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(mw.WithRateLimit(deps.RateLimiter))
		}
		r.Use(mw.RequireAuth(deps.Gate))
		if len(deps.RequiredScopes) > 0 {
			r.Use(mw.RequireScopes(deps.RequiredScopes...))
		}
		r.Get("/v1/me", handlers.Me)
	})

	return r
}
