package oidc

import (
	"context"
	"crypto/ed25519"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"
)

// fakeSource es un KeySource controlable desde el test: cuenta fetches,
// puede fallar y puede bloquearse hasta que el test lo libere.
type fakeSource struct {
	tb testing.TB

	mu      sync.Mutex
	calls   int
	kids    []string
	doc     []byte // si no es nil, cada fetch parsea este documento fijo
	err     error
	release chan struct{} // si no es nil, cada fetch espera el close
}

func makeFakeSource(t *testing.T, kids ...string) *fakeSource {
	return &fakeSource{tb: t, kids: kids}
}

func (f *fakeSource) FetchKeySet(ctx context.Context) (*KeySet, error) {
	f.mu.Lock()
	f.calls++
	kids := f.kids
	doc := f.doc
	err := f.err
	release := f.release
	f.mu.Unlock()

	if release != nil {
		<-release
	}
	if err != nil {
		return nil, &FetchError{Op: "jwks", Err: err}
	}
	if doc != nil {
		ks, perr := parseKeySet(doc, time.Now())
		if perr != nil {
			return nil, &FetchError{Op: "parse", Err: perr}
		}
		return ks, nil
	}
	return newTestKeySet(f.tb, time.Now(), kids...), nil
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSource) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// newTestKeySet arma un snapshot con claves Ed25519 reales y fetchedAt fijado.
func newTestKeySet(t testing.TB, fetchedAt time.Time, kids ...string) *KeySet {
	t.Helper()
	keys := make([]jwk, 0, len(kids))
	for _, kid := range kids {
		k, _ := edJWK(t, kid)
		keys = append(keys, k)
	}
	ks, err := parseKeySet(docJSON(t, keys...), fetchedAt)
	if err != nil {
		t.Fatalf("build key set: %v", err)
	}
	return ks
}

// mapCache es un cache.Cache trivial en memoria para probar el L2.
type mapCache struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMapCache() *mapCache { return &mapCache{m: map[string][]byte{}} }

func (c *mapCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.m[key]
	return b, ok
}

func (c *mapCache) Set(key string, value []byte, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[key] = value
}

func (c *mapCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.m, key)
}

// ----- tests -----

func TestKeyCache_FreshHitDoesNotFetch(t *testing.T) {
	src := makeFakeSource(t, "kid-a")
	c := NewKeyCache(src, KeyCacheConfig{})
	c.snap.Store(newTestKeySet(t, time.Now(), "kid-a"))

	k, err := c.GetKey(context.Background(), "kid-a")
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if k.KID != "kid-a" {
		t.Fatalf("kid = %q", k.KID)
	}
	if src.count() != 0 {
		t.Fatalf("fresh hit must not fetch, got %d fetches", src.count())
	}
}

func TestKeyCache_ColdStartFetchesOnce(t *testing.T) {
	src := makeFakeSource(t, "kid-a")
	c := NewKeyCache(src, KeyCacheConfig{})

	k, err := c.GetKey(context.Background(), "kid-a")
	if err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if k.KID != "kid-a" {
		t.Fatalf("kid = %q", k.KID)
	}
	if src.count() != 1 {
		t.Fatalf("want 1 fetch, got %d", src.count())
	}
	if !c.Ready() {
		t.Fatalf("cache should be ready after refresh")
	}
}

func TestKeyCache_UnknownKIDAfterRefresh(t *testing.T) {
	src := makeFakeSource(t, "kid-a")
	c := NewKeyCache(src, KeyCacheConfig{})

	_, err := c.GetKey(context.Background(), "kid-nope")
	if !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("want ErrUnknownKey, got %v", err)
	}
	if src.count() != 1 {
		t.Fatalf("unknown kid must fetch exactly once, got %d", src.count())
	}
}

func TestKeyCache_CooldownLimitsMissRefreshes(t *testing.T) {
	src := makeFakeSource(t, "kid-a")
	c := NewKeyCache(src, KeyCacheConfig{RefreshCooldown: time.Minute})

	// Primer miss: refresca y no encuentra el kid
	if _, err := c.GetKey(context.Background(), "kid-nope"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("want ErrUnknownKey, got %v", err)
	}
	// Misses siguientes dentro del cooldown: sin red
	for i := 0; i < 5; i++ {
		if _, err := c.GetKey(context.Background(), "kid-nope"); !errors.Is(err, ErrUnknownKey) {
			t.Fatalf("want ErrUnknownKey, got %v", err)
		}
	}
	if src.count() != 1 {
		t.Fatalf("cooldown must cap fetches at 1, got %d", src.count())
	}

	// El hit sobre clave conocida sigue funcionando durante el cooldown
	if _, err := c.GetKey(context.Background(), "kid-a"); err != nil {
		t.Fatalf("known kid during cooldown: %v", err)
	}
}

func TestKeyCache_ConcurrentMissesCoalesce(t *testing.T) {
	src := makeFakeSource(t, "kid-a")
	src.release = make(chan struct{})
	c := NewKeyCache(src, KeyCacheConfig{})

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.GetKey(context.Background(), "kid-a")
		}(i)
	}

	// Dejar que todos entren al vuelo coalesced antes de liberar el fetch
	time.Sleep(100 * time.Millisecond)
	close(src.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("goroutine %d: %v", i, err)
		}
	}
	if src.count() != 1 {
		t.Fatalf("concurrent misses must coalesce into 1 fetch, got %d", src.count())
	}
}

func TestKeyCache_StaleSnapshotForcesRefresh(t *testing.T) {
	src := makeFakeSource(t, "kid-a")
	c := NewKeyCache(src, KeyCacheConfig{MaxStaleness: 10 * time.Minute})
	c.snap.Store(newTestKeySet(t, time.Now().Add(-time.Hour), "kid-a"))

	if _, err := c.GetKey(context.Background(), "kid-a"); err != nil {
		t.Fatalf("GetKey: %v", err)
	}
	if src.count() != 1 {
		t.Fatalf("stale access must refresh, got %d fetches", src.count())
	}
	if c.Snapshot().Age() > time.Minute {
		t.Fatalf("snapshot should have been replaced by a fresh one")
	}
}

func TestKeyCache_ServesStaleWhenProviderDown(t *testing.T) {
	src := makeFakeSource(t)
	src.setErr(errors.New("connection refused"))
	c := NewKeyCache(src, KeyCacheConfig{MaxStaleness: 10 * time.Minute})
	c.snap.Store(newTestKeySet(t, time.Now().Add(-time.Hour), "kid-a"))

	k, err := c.GetKey(context.Background(), "kid-a")
	if err != nil {
		t.Fatalf("stale snapshot should still serve: %v", err)
	}
	if k.KID != "kid-a" {
		t.Fatalf("kid = %q", k.KID)
	}
}

func TestKeyCache_HardTTLStopsStaleServing(t *testing.T) {
	src := makeFakeSource(t)
	src.setErr(errors.New("connection refused"))
	c := NewKeyCache(src, KeyCacheConfig{
		MaxStaleness: 10 * time.Minute,
		HardTTL:      30 * time.Minute,
	})
	c.snap.Store(newTestKeySet(t, time.Now().Add(-time.Hour), "kid-a"))

	_, err := c.GetKey(context.Background(), "kid-a")
	if err == nil {
		t.Fatalf("snapshot beyond hard ttl must not be served")
	}
	if !IsFetchError(err) {
		t.Fatalf("want *FetchError, got %T: %v", err, err)
	}
}

func TestKeyCache_ColdStartSurfacesFetchError(t *testing.T) {
	src := makeFakeSource(t)
	src.setErr(errors.New("connection refused"))
	c := NewKeyCache(src, KeyCacheConfig{})

	_, err := c.GetKey(context.Background(), "kid-a")
	if !IsFetchError(err) {
		t.Fatalf("want *FetchError, got %T: %v", err, err)
	}
	if c.Ready() {
		t.Fatalf("cache must not be ready without snapshot")
	}
}

func TestKeyCache_RecoversAfterProviderComesBack(t *testing.T) {
	src := makeFakeSource(t, "kid-a")
	src.setErr(errors.New("connection refused"))
	c := NewKeyCache(src, KeyCacheConfig{RefreshCooldown: time.Millisecond})

	if _, err := c.GetKey(context.Background(), "kid-a"); err == nil {
		t.Fatalf("expected failure while provider is down")
	}

	src.setErr(nil)
	time.Sleep(5 * time.Millisecond) // pasar el cooldown
	if _, err := c.GetKey(context.Background(), "kid-a"); err != nil {
		t.Fatalf("expected recovery, got %v", err)
	}
	if src.count() != 2 {
		t.Fatalf("want 2 fetches (fail, then ok), got %d", src.count())
	}
}

func TestKeyCache_RotationPicksUpNewKID(t *testing.T) {
	src := makeFakeSource(t, "kid-old")
	c := NewKeyCache(src, KeyCacheConfig{})

	if _, err := c.GetKey(context.Background(), "kid-old"); err != nil {
		t.Fatalf("initial fetch: %v", err)
	}

	// El provider rota; el próximo fetch publica la clave nueva
	src.mu.Lock()
	src.kids = []string{"kid-old", "kid-new"}
	src.mu.Unlock()

	if _, err := c.GetKey(context.Background(), "kid-new"); err != nil {
		t.Fatalf("rotated kid should resolve after refresh: %v", err)
	}
	if src.count() != 2 {
		t.Fatalf("want 2 fetches, got %d", src.count())
	}
}

func TestKeyCache_RotationRightAfterWarmupStillRefreshes(t *testing.T) {
	src := makeFakeSource(t, "kid-old")
	c := NewKeyCache(src, KeyCacheConfig{RefreshCooldown: time.Minute})

	// Warmup exitoso, como en el arranque del server
	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}

	// El provider rota un instante después
	src.mu.Lock()
	src.kids = []string{"kid-old", "kid-new"}
	src.mu.Unlock()

	// El primer miss contra este snapshot consigue su refresh: el warmup
	// exitoso no arma cooldown
	if _, err := c.GetKey(context.Background(), "kid-new"); err != nil {
		t.Fatalf("rotated kid right after warmup: %v", err)
	}
	if src.count() != 2 {
		t.Fatalf("want 2 fetches (warmup + rotation), got %d", src.count())
	}

	// Un refresh que resolvió el kid tampoco arma cooldown: una segunda
	// rotación inmediata también entra
	src.mu.Lock()
	src.kids = []string{"kid-new", "kid-newer"}
	src.mu.Unlock()
	if _, err := c.GetKey(context.Background(), "kid-newer"); err != nil {
		t.Fatalf("second rotation: %v", err)
	}
	if src.count() != 3 {
		t.Fatalf("want 3 fetches, got %d", src.count())
	}

	// El kid inventado sigue acotado: gasta un fetch y dentro del cooldown
	// no vuelve a la red
	if _, err := c.GetKey(context.Background(), "kid-fake"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("want ErrUnknownKey, got %v", err)
	}
	if _, err := c.GetKey(context.Background(), "kid-fake"); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("want ErrUnknownKey, got %v", err)
	}
	if src.count() != 4 {
		t.Fatalf("repeated fake kid within cooldown must not fetch, got %d", src.count())
	}
}

func TestKeyCache_PersistsAndWarmStartsFromL2(t *testing.T) {
	l2 := newMapCache()

	src := makeFakeSource(t, "kid-a")
	c := NewKeyCache(src, KeyCacheConfig{L2: l2})
	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	if _, ok := l2.Get(l2Key); !ok {
		t.Fatalf("refresh must persist the document in L2")
	}

	// Proceso nuevo, provider caído: arranca con el último JWKS bueno
	down := makeFakeSource(t)
	down.setErr(errors.New("connection refused"))
	c2 := NewKeyCache(down, KeyCacheConfig{L2: l2})
	if !c2.Ready() {
		t.Fatalf("warm start should load the persisted snapshot")
	}
	if _, err := c2.GetKey(context.Background(), "kid-a"); err != nil {
		t.Fatalf("warm snapshot should serve with provider down: %v", err)
	}
}

func TestKeyCache_WarmStartDiscardsCorruptL2(t *testing.T) {
	l2 := newMapCache()
	l2.Set(l2Key, []byte("{garbage"), time.Hour)

	src := makeFakeSource(t, "kid-a")
	c := NewKeyCache(src, KeyCacheConfig{L2: l2})
	if c.Ready() {
		t.Fatalf("corrupt L2 entry must not produce a snapshot")
	}
	if _, ok := l2.Get(l2Key); ok {
		t.Fatalf("corrupt L2 entry should be deleted")
	}
}

func TestKeyCache_RefreshNowReplacesSnapshot(t *testing.T) {
	src := makeFakeSource(t, "kid-a")
	c := NewKeyCache(src, KeyCacheConfig{})

	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	first := c.Snapshot().ID()
	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	if c.Snapshot().ID() == first {
		t.Fatalf("second refresh should publish a new snapshot")
	}
	if src.count() != 2 {
		t.Fatalf("want 2 fetches, got %d", src.count())
	}
}

func TestKeyCache_RefreshNowIdempotentOnUnchangedProvider(t *testing.T) {
	src := makeFakeSource(t)
	k, _ := edJWK(t, "kid-a")
	src.doc = docJSON(t, k)
	c := NewKeyCache(src, KeyCacheConfig{})

	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	first := c.Snapshot()
	if err := c.RefreshNow(context.Background()); err != nil {
		t.Fatalf("RefreshNow: %v", err)
	}
	second := c.Snapshot()

	if !reflect.DeepEqual(first.KIDs(), second.KIDs()) {
		t.Fatalf("kids diverged: %v vs %v", first.KIDs(), second.KIDs())
	}
	ka, ok := first.Key("kid-a")
	if !ok {
		t.Fatalf("kid-a missing in first snapshot")
	}
	kb, ok := second.Key("kid-a")
	if !ok {
		t.Fatalf("kid-a missing in second snapshot")
	}
	pa, ok := ka.Key.(ed25519.PublicKey)
	if !ok {
		t.Fatalf("key type = %T", ka.Key)
	}
	pb, ok := kb.Key.(ed25519.PublicKey)
	if !ok {
		t.Fatalf("key type = %T", kb.Key)
	}
	if !pa.Equal(pb) {
		t.Fatalf("key material diverged across refreshes of an unchanged document")
	}
	if src.count() != 2 {
		t.Fatalf("want 2 fetches, got %d", src.count())
	}
}
