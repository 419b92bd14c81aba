// Package validation valida nombres de scopes OAuth2.
package validation

import "regexp"

// Reglas de nombre de scope:
// - Solo minúsculas.
// - Empieza y termina con [a-z0-9].
// - En el medio se permite [a-z0-9:_.-].
// - Largo 1..64.
// - Sin espacios ni punto y coma (el claim "scope" separa por espacios).
//
// Válidos: profile, profile:read, api:read:v1, a, a_b-c.d:scope2
// Inválidos: ;hack, BAD, "bad space", :leader, trailer:, "", 65+ chars.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName reporta si el nombre cumple el patrón permitido.
// Se usa para rechazar configuración rota en el arranque, no tokens:
// un scope malformado en un token simplemente nunca matchea.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}
