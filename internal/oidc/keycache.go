package oidc

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dropDatabas3/checkjohn/internal/cache"
	"github.com/dropDatabas3/checkjohn/internal/metrics"
	"github.com/dropDatabas3/checkjohn/internal/observability/logger"
)

// KeySource produce snapshots del key set del provider.
// *Client lo implementa; los tests inyectan fakes.
type KeySource interface {
	FetchKeySet(ctx context.Context) (*KeySet, error)
}

// KeyCacheConfig parametriza el cache de claves.
type KeyCacheConfig struct {
	// MaxStaleness es la edad a partir de la cual un acceso fuerza un
	// refresh síncrono antes de confiar en el snapshot. Default: 10m.
	MaxStaleness time.Duration

	// RefreshCooldown es el intervalo mínimo entre refreshes que no
	// resolvieron nada: fetches fallidos y misses que siguieron siendo
	// misses tras refrescar. Acota cuánto puede un atacante (kids
	// inventados) o un provider caído hacernos golpear la red. Un refresh
	// exitoso que resolvió el kid nunca arma cooldown: el primer miss
	// contra cada snapshot siempre consigue su refresh (rotación).
	// Default: 30s.
	RefreshCooldown time.Duration

	// HardTTL, si es > 0, es la edad máxima absoluta servible de un
	// snapshot cuando el provider no responde. 0 = servir stale sin
	// límite (disponibilidad sobre frescura).
	HardTTL time.Duration

	// L2 es un cache opcional (memoria o redis) donde se persiste el
	// último JWKS bueno conocido, para arranques degradados.
	L2 cache.Cache

	// L2TTL es la vigencia del documento en L2. Default: 24h.
	L2TTL time.Duration
}

const l2Key = "jwks:last-known-good"

// l2Envelope acompaña el documento persistido con su timestamp de fetch,
// para que un warm start no lo haga pasar por fresco.
type l2Envelope struct {
	FetchedAt time.Time       `json:"fetched_at"`
	Doc       json.RawMessage `json:"doc"`
}

// KeyCache mantiene el snapshot actual de claves del provider.
//
// Lectura lock-free via atomic.Pointer: las verificaciones concurrentes no
// se bloquean entre sí en el happy path. El refresh es el único escritor y
// está coalesced con singleflight: N misses simultáneos => 1 fetch, todos
// los waiters reciben el resultado del mismo fetch.
type KeyCache struct {
	source   KeySource
	maxStale time.Duration
	cooldown time.Duration
	hardTTL  time.Duration

	snap        atomic.Pointer[KeySet]
	lastFailure atomic.Int64 // unix nanos del último refresh fallido
	lastMiss    atomic.Int64 // unix nanos del último refresh que dejó el kid sin resolver
	sf          singleflight.Group

	l2    cache.Cache
	l2TTL time.Duration
}

// NewKeyCache construye el cache. Si hay un JWKS persistido en L2 lo carga
// como snapshot inicial (warm start); se considera stale, así que el primer
// acceso igualmente intenta un refresh.
func NewKeyCache(source KeySource, cfg KeyCacheConfig) *KeyCache {
	c := &KeyCache{
		source:   source,
		maxStale: cfg.MaxStaleness,
		cooldown: cfg.RefreshCooldown,
		hardTTL:  cfg.HardTTL,
		l2:       cfg.L2,
		l2TTL:    cfg.L2TTL,
	}
	if c.maxStale <= 0 {
		c.maxStale = 10 * time.Minute
	}
	if c.cooldown <= 0 {
		c.cooldown = 30 * time.Second
	}
	if c.l2TTL <= 0 {
		c.l2TTL = 24 * time.Hour
	}
	c.warmStart()
	return c
}

// GetKey resuelve una clave por kid.
//
//   - Hit en snapshot fresco: retorna sin locks.
//   - Miss o snapshot stale: dispara exactamente un refresh coalesced y
//     re-chequea una sola vez. Un kid ausente tras el refresh es
//     ErrUnknownKey (nunca loops de refresh por kid atacante).
//   - Refresh fallido: sirve el snapshot existente si es servible
//     (stale-but-valid); sin snapshot utilizable, surfa el *FetchError.
func (c *KeyCache) GetKey(ctx context.Context, kid string) (SigningKey, error) {
	snap := c.snap.Load()
	fresh := snap != nil && snap.Age() <= c.maxStale

	if fresh {
		if k, ok := snap.Key(kid); ok {
			return k, nil
		}
		// Miss por kid con snapshot fresco: o el provider rotó claves o el
		// kid es inventado. La rotación merece su refresh; el kid inventado
		// repetido queda acotado porque solo el refresh que NO resuelve el
		// miss arma cooldown.
		if c.missCooldown() {
			return SigningKey{}, ErrUnknownKey
		}
	} else if snap != nil && c.failureCooldown() {
		// Stale pero con intento reciente fallido: no martillar al provider.
		if k, ok := snap.Key(kid); ok && c.servable(snap) {
			return k, nil
		}
		return SigningKey{}, ErrUnknownKey
	}

	if err := c.refresh(ctx); err != nil {
		if snap != nil && c.servable(snap) {
			if k, ok := snap.Key(kid); ok {
				logger.From(ctx).Warn("serving stale jwks snapshot, refresh failed",
					logger.Component("oidc.keycache"),
					logger.SnapshotID(snap.ID()),
					logger.SnapshotAge(snap.Age()),
					logger.KID(kid),
					logger.Err(err),
				)
				return k, nil
			}
			return SigningKey{}, ErrUnknownKey
		}
		return SigningKey{}, err
	}

	cur := c.snap.Load()
	if cur == nil {
		// Un refresh exitoso siempre publica snapshot; esto es un bug, no
		// una condición operable.
		panic("oidc: nil key set snapshot after successful refresh")
	}
	if k, ok := cur.Key(kid); ok {
		return k, nil
	}
	// Refresh exitoso y el kid sigue ausente: recién acá arranca el
	// cooldown de misses.
	c.lastMiss.Store(time.Now().UnixNano())
	return SigningKey{}, ErrUnknownKey
}

// RefreshNow fuerza un refresh (coalesced con los disparados por misses).
func (c *KeyCache) RefreshNow(ctx context.Context) error {
	return c.refresh(ctx)
}

// Ready reporta si hay un snapshot disponible (para readiness probes).
func (c *KeyCache) Ready() bool { return c.snap.Load() != nil }

// Snapshot retorna el snapshot actual (puede ser nil). Solo para
// introspección operativa; las claves dentro son inmutables.
func (c *KeyCache) Snapshot() *KeySet { return c.snap.Load() }

// AutoRefresh refresca periódicamente hasta que ctx termine. Los fallos se
// loguean y se reintentan recién en el próximo tick: el backoff es este
// intervalo, no un retry loop interno.
func (c *KeyCache) AutoRefresh(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = c.maxStale / 2
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := c.refresh(ctx); err != nil {
				logger.L().Warn("periodic jwks refresh failed",
					logger.Component("oidc.keycache"),
					logger.Err(err),
				)
			}
		}
	}
}

// refresh ejecuta el fetch coalesced y publica el nuevo snapshot.
// El fetch corre hasta completarse aunque el caller abandone: el resultado
// es infraestructura compartida, no de un request particular.
func (c *KeyCache) refresh(ctx context.Context) error {
	_, err, _ := c.sf.Do("jwks", func() (any, error) {
		start := time.Now()

		ks, err := c.source.FetchKeySet(context.WithoutCancel(ctx))

		metrics.JWKSFetchLatency.Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			c.lastFailure.Store(time.Now().UnixNano())
			metrics.JWKSFetches.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.JWKSFetches.WithLabelValues("ok").Inc()
		metrics.SnapshotKeys.Set(float64(ks.Len()))
		metrics.SnapshotRefreshedAt.SetToCurrentTime()

		prev := c.snap.Load()
		c.snap.Store(ks)
		c.persistL2(ks)

		log := logger.L().With(
			logger.Component("oidc.keycache"),
			logger.SnapshotID(ks.ID()),
			logger.KeyCount(ks.Len()),
			logger.DurationMs(time.Since(start).Milliseconds()),
		)
		if prev != nil {
			log.Info("jwks snapshot replaced", logger.String("previous_snapshot_id", prev.ID()))
		} else {
			log.Info("jwks snapshot loaded")
		}
		return ks, nil
	})
	return err
}

// missCooldown reporta si un miss reciente ya gastó su refresh, o si el
// último refresh falló hace menos del cooldown.
func (c *KeyCache) missCooldown() bool {
	return c.withinCooldown(c.lastMiss.Load()) || c.withinCooldown(c.lastFailure.Load())
}

// failureCooldown reporta si el último refresh falló hace menos del cooldown.
func (c *KeyCache) failureCooldown() bool {
	return c.withinCooldown(c.lastFailure.Load())
}

func (c *KeyCache) withinCooldown(nanos int64) bool {
	return nanos > 0 && time.Since(time.Unix(0, nanos)) < c.cooldown
}

// servable decide si un snapshot stale se puede seguir sirviendo.
func (c *KeyCache) servable(s *KeySet) bool {
	if c.hardTTL <= 0 {
		return true
	}
	return s.Age() <= c.hardTTL
}

// persistL2 guarda el documento crudo en el cache L2 (si hay).
func (c *KeyCache) persistL2(ks *KeySet) {
	if c.l2 == nil {
		return
	}
	env, err := json.Marshal(l2Envelope{FetchedAt: ks.FetchedAt(), Doc: ks.Raw()})
	if err != nil {
		return
	}
	c.l2.Set(l2Key, env, c.l2TTL)
}

// warmStart intenta cargar el último JWKS bueno conocido desde L2.
func (c *KeyCache) warmStart() {
	if c.l2 == nil {
		return
	}
	b, ok := c.l2.Get(l2Key)
	if !ok {
		return
	}
	var env l2Envelope
	if err := json.Unmarshal(b, &env); err != nil {
		c.l2.Delete(l2Key)
		return
	}
	ks, err := parseKeySet(env.Doc, env.FetchedAt)
	if err != nil {
		c.l2.Delete(l2Key)
		return
	}
	c.snap.Store(ks)
	logger.L().Info("jwks warm start from l2 cache",
		logger.Component("oidc.keycache"),
		logger.SnapshotID(ks.ID()),
		logger.KeyCount(ks.Len()),
		logger.SnapshotAge(ks.Age()),
	)
}
