package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Métricas Prometheus de auth/JWKS. Viven en un paquete propio para evitar
// ciclos de import entre oidc/jwt y la capa HTTP.

var (
	Verifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkjohn_verifications_total",
		Help: "Verificaciones de bearer tokens por resultado (ok o failure code)",
	}, []string{"result"})

	JWKSFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkjohn_jwks_fetches_total",
		Help: "Fetches del JWKS del provider por outcome",
	}, []string{"outcome"})

	JWKSFetchLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkjohn_jwks_fetch_latency_ms",
		Help:    "Latencia del fetch de JWKS en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	SnapshotKeys = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "checkjohn_jwks_snapshot_keys",
		Help: "Cantidad de claves en el snapshot actual",
	})

	SnapshotRefreshedAt = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "checkjohn_jwks_snapshot_refreshed_timestamp_seconds",
		Help: "Timestamp unix del último refresh exitoso",
	})
)

// RegisterAuth registra las métricas en el registry dado (default si es nil).
// Tolera doble registro para que los tests puedan llamarla más de una vez.
func RegisterAuth(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		Verifications,
		JWKSFetches,
		JWKSFetchLatency,
		SnapshotKeys,
		SnapshotRefreshedAt,
	} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return err
			}
		}
	}
	return nil
}
