package handlers

import (
	"net/http"

	httpapi "github.com/dropDatabas3/checkjohn/internal/http"
	mw "github.com/dropDatabas3/checkjohn/internal/http/middlewares"
)

type meResponse struct {
	Subject  string         `json:"sub"`
	Issuer   string         `json:"iss"`
	Audience []string       `json:"aud"`
	Claims   map[string]any `json:"claims"`
}

// Me devuelve la identidad autenticada del request.
// Requiere RequireAuth antes en la cadena.
func Me(w http.ResponseWriter, r *http.Request) {
	id := mw.GetIdentity(r.Context())
	if id == nil {
		// RequireAuth no aplicado: error de wiring, no del cliente
		httpapi.WriteError(w, http.StatusUnauthorized, "invalid_token", "token rejected")
		return
	}
	httpapi.WriteJSON(w, http.StatusOK, meResponse{
		Subject:  id.Subject,
		Issuer:   id.Issuer,
		Audience: id.Audience,
		Claims:   id.Claims,
	})
}
