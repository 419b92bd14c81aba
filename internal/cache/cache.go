// Package cache provee un cache de bytes con backends intercambiables.
//
// Soporta:
//   - Memory (in-process, para desarrollo/testing y single-replica)
//   - Redis (distribuido, para compartir entre réplicas)
//
// En checkjohn se usa como segundo nivel del key cache: persiste el último
// JWKS bueno conocido para arranques degradados con el provider caído.
package cache

import "time"

// Cache define las operaciones mínimas que necesita el key cache.
type Cache interface {
	Get(key string) (value []byte, ok bool)
	Set(key string, value []byte, ttl time.Duration)
	Delete(key string)
}

// Config configuración para crear un cache.
type Config struct {
	Kind string // "memory" | "redis" | "off"

	Redis struct {
		Addr   string
		DB     int
		Prefix string
	}

	Memory struct {
		DefaultTTL time.Duration
	}
}
