// Package rate limita requests por cliente con ventana fija.
//
// En checkjohn protege el gate de verificación: un cliente que martilla con
// tokens inválidos (fuerza bruta de firmas, kids inventados) se corta acá,
// antes de gastar criptografía o refreshes de JWKS.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result es la decisión del limiter para un request.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

// Limiter decide si un request identificado por key puede pasar.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter: ventana fija sobre redis (INCR + EXPIRE). Compartido entre
// réplicas, mismo backend que el cache L2 de JWKS.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "checkjohn:rl"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		max:    int64(max),
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	hits := incr.Val()
	if hits == 1 {
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
	}

	if hits > l.max {
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: winStart.Add(l.window).Sub(now),
		}, nil
	}
	return Result{Allowed: true, Remaining: l.max - hits}, nil
}
