package oidc

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/google/uuid"
)

// jwk es una clave pública tal como la publica el provider (RFC 7517).
// Input no confiable: cada campo se valida antes de construir la clave.
type jwk struct {
	Kty string `json:"kty"`
	Use string `json:"use"`
	Kid string `json:"kid"`
	Alg string `json:"alg"`
	Crv string `json:"crv"`
	N   string `json:"n"` // RSA modulus, base64url
	E   string `json:"e"` // RSA exponent, base64url
	X   string `json:"x"` // EC x / OKP pubkey, base64url
	Y   string `json:"y"` // EC y, base64url
}

type jwksDocument struct {
	Keys []jwk `json:"keys"`
}

// SigningKey es una clave de firma confiable, inmutable una vez construida.
type SigningKey struct {
	KID       string
	Alg       string // alg declarado en el JWKS; puede venir vacío
	Key       crypto.PublicKey
	FetchedAt time.Time
}

// KeySet es un snapshot inmutable del JWKS: kid → SigningKey.
// El KeyCache mantiene exactamente uno "actual" y lo reemplaza atómicamente.
type KeySet struct {
	id        string
	fetchedAt time.Time
	keys      map[string]SigningKey
	raw       []byte
}

// ID retorna el identificador del snapshot (para correlación en logs).
func (s *KeySet) ID() string { return s.id }

// FetchedAt retorna cuándo se obtuvo el snapshot del provider.
func (s *KeySet) FetchedAt() time.Time { return s.fetchedAt }

// Age retorna la edad del snapshot.
func (s *KeySet) Age() time.Duration { return time.Since(s.fetchedAt) }

// Key busca una clave por kid.
func (s *KeySet) Key(kid string) (SigningKey, bool) {
	k, ok := s.keys[kid]
	return k, ok
}

// KIDs retorna los kids presentes, ordenados.
func (s *KeySet) KIDs() []string {
	out := make([]string, 0, len(s.keys))
	for kid := range s.keys {
		out = append(out, kid)
	}
	sort.Strings(out)
	return out
}

// Len retorna la cantidad de claves del snapshot.
func (s *KeySet) Len() int { return len(s.keys) }

// Raw retorna el documento JWKS original (para persistir en el cache L2).
func (s *KeySet) Raw() []byte { return s.raw }

// parseKeySet construye un snapshot a partir de un documento JWKS crudo.
// Claves con "use" distinto de firma se ignoran; claves de firma que no se
// pueden materializar invalidan el documento completo (nunca un snapshot
// a medio construir). Cero claves utilizables también es error.
func parseKeySet(raw []byte, fetchedAt time.Time) (*KeySet, error) {
	var doc jwksDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("invalid jwks document: %w", err)
	}
	if len(doc.Keys) == 0 {
		return nil, errors.New("jwks document has zero keys")
	}

	keys := make(map[string]SigningKey, len(doc.Keys))
	for _, k := range doc.Keys {
		if k.Use != "" && k.Use != "sig" {
			continue // claves de cifrado u otros usos no nos interesan
		}
		if k.Kid == "" {
			return nil, errors.New("jwks key without kid")
		}
		pub, err := k.publicKey()
		if err != nil {
			return nil, fmt.Errorf("jwks key %q: %w", k.Kid, err)
		}
		keys[k.Kid] = SigningKey{
			KID:       k.Kid,
			Alg:       k.Alg,
			Key:       pub,
			FetchedAt: fetchedAt,
		}
	}
	if len(keys) == 0 {
		return nil, errors.New("jwks document has zero signing keys")
	}

	return &KeySet{
		id:        uuid.NewString(),
		fetchedAt: fetchedAt,
		keys:      keys,
		raw:       raw,
	}, nil
}

// publicKey materializa la clave pública según su kty.
func (k jwk) publicKey() (crypto.PublicKey, error) {
	switch k.Kty {
	case "RSA":
		return k.rsaKey()
	case "EC":
		return k.ecKey()
	case "OKP":
		return k.okpKey()
	default:
		return nil, fmt.Errorf("unsupported kty %q", k.Kty)
	}
}

func (k jwk) rsaKey() (*rsa.PublicKey, error) {
	nb, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, fmt.Errorf("bad modulus: %w", err)
	}
	if len(nb) == 0 {
		return nil, errors.New("empty modulus")
	}
	eb, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, fmt.Errorf("bad exponent: %w", err)
	}
	// Exponente big-endian; vacío => 65537 (lo usan varios providers)
	e := 0
	if len(eb) == 0 {
		e = 65537
	} else {
		for _, b := range eb {
			e = (e << 8) | int(b)
		}
	}
	if e <= 1 {
		return nil, errors.New("invalid exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

func (k jwk) ecKey() (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", k.Crv)
	}
	xb, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("bad x coordinate: %w", err)
	}
	yb, err := base64.RawURLEncoding.DecodeString(k.Y)
	if err != nil {
		return nil, fmt.Errorf("bad y coordinate: %w", err)
	}
	x := new(big.Int).SetBytes(xb)
	y := new(big.Int).SetBytes(yb)
	if !curve.IsOnCurve(x, y) {
		return nil, errors.New("point not on curve")
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func (k jwk) okpKey() (ed25519.PublicKey, error) {
	if k.Crv != "Ed25519" {
		return nil, fmt.Errorf("unsupported curve %q", k.Crv)
	}
	xb, err := base64.RawURLEncoding.DecodeString(k.X)
	if err != nil {
		return nil, fmt.Errorf("bad public key: %w", err)
	}
	if len(xb) != ed25519.PublicKeySize {
		return nil, errors.New("bad public key length")
	}
	return ed25519.PublicKey(xb), nil
}
