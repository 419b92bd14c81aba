// Package jwt verifica bearer tokens emitidos por un provider OIDC externo
// contra sus claves públicas publicadas (JWKS). Solo verificación: la
// emisión de tokens es del provider, no nuestra.
package jwt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"

	"github.com/dropDatabas3/checkjohn/internal/observability/logger"
	"github.com/dropDatabas3/checkjohn/internal/oidc"
)

// DefaultAllowedAlgs son los algoritmos aceptados si no se configuran.
// Solo asimétricos: HS* contra un JWKS público no tiene sentido y habilita
// confusión de claves. "none" jamás.
var DefaultAllowedAlgs = []string{"RS256", "ES256", "EdDSA"}

// KeyResolver resuelve la clave pública para un kid.
// *oidc.KeyCache lo implementa; los tests inyectan fakes.
type KeyResolver interface {
	GetKey(ctx context.Context, kid string) (oidc.SigningKey, error)
}

// Verifier valida firma y claims de un token.
//
// Orden de chequeos (barato primero, claims nunca antes que la firma):
//  1. estructura y header (malformed)
//  2. allow-list de algoritmos (unsupported_algorithm)
//  3. resolución de clave por kid (unknown_key / jwks_fetch_failed)
//  4. firma (bad_signature)
//  5. claims: iss exacto, aud contiene, exp/nbf con tolerancia (claim_rejected)
type Verifier struct {
	keys     KeyResolver
	issuer   string
	audience string
	skew     time.Duration
	allowed  map[string]bool
	parser   *jwtv5.Parser
	now      func() time.Time
}

// VerifierOption ajusta el Verifier.
type VerifierOption func(*Verifier)

// WithClock inyecta el reloj (tests de borde de expiración).
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier construye un Verifier. algs vacío usa DefaultAllowedAlgs;
// "none" se filtra siempre, venga de donde venga.
func NewVerifier(keys KeyResolver, issuer, audience string, skew time.Duration, algs []string, opts ...VerifierOption) *Verifier {
	if len(algs) == 0 {
		algs = DefaultAllowedAlgs
	}
	allowed := make(map[string]bool, len(algs))
	var methods []string
	for _, a := range algs {
		a = strings.TrimSpace(a)
		if a == "" || strings.EqualFold(a, "none") {
			continue
		}
		if !allowed[a] {
			allowed[a] = true
			methods = append(methods, a)
		}
	}

	v := &Verifier{
		keys:     keys,
		issuer:   issuer,
		audience: audience,
		skew:     skew,
		allowed:  allowed,
		parser: jwtv5.NewParser(
			jwtv5.WithValidMethods(methods),
			jwtv5.WithoutClaimsValidation(), // las claims se validan acá, con clasificación
		),
		now: time.Now,
	}
	for _, o := range opts {
		o(v)
	}
	return v
}

// tokenHeader es lo único que decodificamos antes de verificar la firma.
type tokenHeader struct {
	Alg string `json:"alg"`
	Kid string `json:"kid"`
	Typ string `json:"typ"`
}

// decodeHeader parte el token y decodifica solo el header. El payload no se
// toca hasta que la firma esté verificada.
func decodeHeader(raw string) (*tokenHeader, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, errors.New("token must have three segments")
	}
	hb, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("bad header encoding: %w", err)
	}
	var hdr tokenHeader
	if err := json.Unmarshal(hb, &hdr); err != nil {
		return nil, fmt.Errorf("bad header json: %w", err)
	}
	return &hdr, nil
}

// Verify ejecuta la verificación completa y retorna la Identity o un
// *VerifyError clasificado. Nunca panic por un token inválido.
func (v *Verifier) Verify(ctx context.Context, raw string) (*Identity, error) {
	// 1. estructura + header
	hdr, err := decodeHeader(raw)
	if err != nil {
		return nil, malformed(err)
	}

	// 2. allow-list de algoritmos: el alg del token jamás elige comportamiento,
	// solo se compara contra la lista configurada. Cubre "none" y downgrades.
	if hdr.Alg == "" || !v.allowed[hdr.Alg] {
		return nil, unsupportedAlg(fmt.Errorf("alg %q not allowed", hdr.Alg))
	}
	if hdr.Kid == "" {
		// Un provider que rota claves siempre estampa kid; sin él ningún
		// refresh puede ayudar.
		return nil, malformed(errors.New("kid header missing"))
	}

	// 3. clave por kid (el cache decide si refrescar)
	key, err := v.keys.GetKey(ctx, hdr.Kid)
	if err != nil {
		if errors.Is(err, oidc.ErrUnknownKey) {
			return nil, &VerifyError{Code: CodeUnknownKey, cause: err}
		}
		return nil, fetchFailed(err)
	}
	// Cross-check: si el JWKS declara alg para esta clave, el token debe
	// coincidir (otra capa contra sustitución de algoritmo).
	if key.Alg != "" && key.Alg != hdr.Alg {
		return nil, unsupportedAlg(fmt.Errorf("alg %q does not match key %q (%s)", hdr.Alg, hdr.Kid, key.Alg))
	}

	// 4. firma
	tok, err := v.parser.Parse(raw, func(*jwtv5.Token) (any, error) {
		return key.Key, nil
	})
	if err != nil {
		if errors.Is(err, jwtv5.ErrTokenMalformed) {
			return nil, malformed(err)
		}
		return nil, badSignature(err)
	}

	claims, ok := tok.Claims.(jwtv5.MapClaims)
	if !ok {
		return nil, malformed(errors.New("unexpected claims type"))
	}

	// 5. claims, recién ahora que la firma está verificada
	now := v.now()

	iss, err := claims.GetIssuer()
	if err != nil || iss != v.issuer {
		return nil, claimRejected("iss")
	}

	aud, err := claims.GetAudience()
	if err != nil || !containsAudience(aud, v.audience) {
		return nil, claimRejected("aud")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, claimRejected("exp") // tokens sin expiración no se aceptan
	}
	if now.After(exp.Time.Add(v.skew)) {
		return nil, claimRejected("exp")
	}

	nbf, err := claims.GetNotBefore()
	if err != nil {
		return nil, claimRejected("nbf")
	}
	var notBefore time.Time
	if nbf != nil {
		if now.Before(nbf.Time.Add(-v.skew)) {
			return nil, claimRejected("nbf")
		}
		notBefore = nbf.Time
	}

	sub, _ := claims.GetSubject()

	out := make(map[string]any, len(claims))
	for k, val := range claims {
		out[k] = val
	}

	logger.From(ctx).Debug("token verified",
		logger.Component("jwt.verifier"),
		logger.KID(hdr.Kid),
		logger.Alg(hdr.Alg),
	)

	return &Identity{
		Subject:   sub,
		Issuer:    iss,
		Audience:  aud,
		ExpiresAt: exp.Time,
		NotBefore: notBefore,
		Claims:    out,
	}, nil
}

func containsAudience(aud []string, want string) bool {
	for _, a := range aud {
		if a == want {
			return true
		}
	}
	return false
}
