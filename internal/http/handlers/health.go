package handlers

import (
	"net/http"

	httpapi "github.com/dropDatabas3/checkjohn/internal/http"
	"github.com/dropDatabas3/checkjohn/internal/oidc"
)

// Health expone liveness y readiness.
type Health struct {
	cache *oidc.KeyCache
}

func NewHealth(cache *oidc.KeyCache) *Health {
	return &Health{cache: cache}
}

// Healthz: liveness, siempre ok si el proceso responde.
func (h *Health) Healthz(w http.ResponseWriter, r *http.Request) {
	httpapi.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz: listo cuando hay un snapshot de claves disponible; antes de eso
// cualquier verificación depende de que el provider responda en caliente.
func (h *Health) Readyz(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil || !h.cache.Ready() {
		httpapi.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "waiting for key set"})
		return
	}
	snap := h.cache.Snapshot()
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"snapshot_id":  snap.ID(),
		"key_count":    snap.Len(),
		"snapshot_age": snap.Age().String(),
	})
}
