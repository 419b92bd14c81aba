package cache

import (
	"github.com/dropDatabas3/checkjohn/internal/cache/memory"
	"github.com/dropDatabas3/checkjohn/internal/cache/redis"
)

// New construye el backend según cfg.Kind. "off" o un kind desconocido
// retornan nil: sin L2, el key cache opera solo con su snapshot en memoria.
func New(cfg Config) Cache {
	switch cfg.Kind {
	case "redis":
		return redis.New(cfg.Redis.Addr, cfg.Redis.DB, cfg.Redis.Prefix)
	case "memory":
		return memory.New(cfg.Memory.DefaultTTL)
	default:
		return nil
	}
}
