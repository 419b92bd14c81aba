package jwt

import (
	"strings"
	"time"
)

// Identity es el resultado de una verificación exitosa: los claims que
// gatean decisiones de seguridad tipados, el resto como passthrough opaco
// para los handlers downstream.
type Identity struct {
	Subject   string
	Issuer    string
	Audience  []string
	ExpiresAt time.Time
	NotBefore time.Time // zero si el token no trae nbf

	// Claims es el mapa completo del payload, incluidos los estándar.
	// Vive solo lo que dura el request; no se cachea entre tokens.
	Claims map[string]any
}

// Claim retorna un claim arbitrario del payload.
func (id *Identity) Claim(name string) (any, bool) {
	v, ok := id.Claims[name]
	return v, ok
}

// StringClaim retorna un claim string; "" si no existe o no es string.
func (id *Identity) StringClaim(name string) string {
	if v, ok := id.Claims[name]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// Scopes retorna los scopes del token. Acepta las dos formas que usan los
// providers: "scope" como string separado por espacios (RFC 6749 §3.3) o
// como lista JSON.
func (id *Identity) Scopes() []string {
	v, ok := id.Claims["scope"]
	if !ok {
		return nil
	}
	switch s := v.(type) {
	case string:
		return strings.Fields(s)
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok && str != "" {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// HasScope reporta si el token trae el scope dado.
func (id *Identity) HasScope(scope string) bool {
	for _, s := range id.Scopes() {
		if s == scope {
			return true
		}
	}
	return false
}

// SystemClaim busca un claim bajo el namespace de sistema anclado al issuer
// (<issuer>/claims/sys/<name>), la convención con la que algunos providers
// estampan claims propios sin colisionar con los registrados.
func (id *Identity) SystemClaim(name string) (any, bool) {
	ns := strings.TrimRight(id.Issuer, "/") + "/claims/sys"
	if v, ok := id.Claims[ns+"/"+name]; ok {
		return v, true
	}
	// Variante anidada: el namespace entero como un solo claim objeto
	if m, ok := id.Claims[ns].(map[string]any); ok {
		v, ok := m[name]
		return v, ok
	}
	return nil, false
}
