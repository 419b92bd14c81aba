// Package util tiene helpers chicos compartidos.
package util

import "strings"

// MaskToken reduce un token a un prefijo corto apto para logs: suficiente
// para correlacionar reintentos del mismo token, inútil para reusarlo.
func MaskToken(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) <= 12 {
		return "***"
	}
	return raw[:8] + "…"
}

// MaskSubject deja visible solo el borde de un subject para logs de nivel
// debug donde el sub completo sería PII innecesaria.
func MaskSubject(sub string) string {
	sub = strings.TrimSpace(sub)
	switch {
	case sub == "":
		return ""
	case len(sub) <= 4:
		return "***"
	default:
		return sub[:2] + "…" + sub[len(sub)-2:]
	}
}
