package logger

import (
	"sync"

	"go.uber.org/zap"
)

var (
	once     sync.Once
	instance *zap.Logger
)

// Init inicializa el logger del proceso. Idempotente: la primera llamada
// gana. Cada subcomando del CLI (serve, verify, jwks) la hace apenas
// carga su config.
func Init(cfg Config) {
	once.Do(func() {
		instance = build(cfg)
	})
}

// L retorna el logger del proceso. Sin Init previo arma uno de desarrollo
// para no perder logs tempranos (tests, helpers sueltos).
func L() *zap.Logger {
	if instance == nil {
		Init(Config{Env: "dev", Level: "info"})
	}
	return instance
}

// Named retorna un logger con nombre de componente (sale como "logger"
// en cada línea).
func Named(name string) *zap.Logger {
	return L().Named(name)
}

// With retorna un logger con campos adicionales.
// Útil para agregar contexto persistente (ej: issuer en el key cache).
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// Sync drena los buffers pendientes; va con defer en serve.
func Sync() error {
	if instance != nil {
		return instance.Sync()
	}
	return nil
}
