package jwt

import (
	"context"
	"net/http"
	"strings"

	"github.com/dropDatabas3/checkjohn/internal/metrics"
	"github.com/dropDatabas3/checkjohn/internal/observability/logger"
	"github.com/dropDatabas3/checkjohn/internal/util"
)

// TokenVerifier es lo que el Gate necesita de un verificador.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*Identity, error)
}

// Gate es el contrato request-facing: recibe los headers de un request y
// retorna una Identity autenticada o un fallo clasificado como valor.
// El HTTP layer traduce cualquier fallo a 401 sin filtrar la causa interna;
// el detalle queda en logs y métricas.
type Gate struct {
	verifier TokenVerifier
}

// NewGate construye el Gate. Se crea una vez en el arranque y se inyecta a
// cada request path; nada de singletons escondidos.
func NewGate(v TokenVerifier) *Gate {
	return &Gate{verifier: v}
}

// Authenticate extrae el bearer token y lo verifica.
func (g *Gate) Authenticate(ctx context.Context, h http.Header) (*Identity, error) {
	raw, err := BearerToken(h)
	if err != nil {
		metrics.Verifications.WithLabelValues(string(CodeMissingCredential)).Inc()
		return nil, err
	}

	id, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		code := CodeOf(err)
		if code == "" {
			code = CodeBadSignature // no debería pasar; clasificar conservador
		}
		metrics.Verifications.WithLabelValues(string(code)).Inc()
		// Única bitácora con la causa interna; la respuesta HTTP no la lleva.
		// El token va enmascarado: alcanza para correlacionar reintentos.
		logger.From(ctx).Info("token rejected",
			logger.Component("jwt.gate"),
			logger.FailureCode(string(code)),
			logger.String("token", util.MaskToken(raw)),
			logger.Err(err),
		)
		return nil, err
	}

	metrics.Verifications.WithLabelValues("ok").Inc()
	return id, nil
}

// BearerToken extrae el token del header Authorization.
// Esquema ausente o distinto de Bearer => ErrMissingCredential.
func BearerToken(h http.Header) (string, error) {
	ah := strings.TrimSpace(h.Get("Authorization"))
	if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return "", ErrMissingCredential
	}
	raw := strings.TrimSpace(ah[len("Bearer "):])
	if raw == "" {
		return "", ErrMissingCredential
	}
	return raw, nil
}
