// Package oidc implementa el lado "resource server" de OIDC: descubrir el
// JWKS de un provider remoto, materializar sus claves públicas y mantener
// un snapshot cacheado apto para verificación concurrente de tokens.
package oidc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dropDatabas3/checkjohn/internal/observability/logger"
)

const (
	discoveryPath = "/.well-known/openid-configuration"

	// El discovery doc cambia casi nunca; 24h de vigencia alcanza.
	discoveryMaxAge = 24 * time.Hour

	// Límite de tamaño para respuestas del provider (input no confiable).
	maxResponseBytes = 1 << 20
)

type discoveryDoc struct {
	Issuer  string `json:"issuer"`
	JWKSURI string `json:"jwks_uri"`
}

// Client obtiene el key set publicado por el provider.
// No reintenta ni muta estado compartido: el retry/backoff y el snapshot
// actual son responsabilidad del KeyCache.
type Client struct {
	issuerURL string
	http      *http.Client

	mu     sync.RWMutex
	disc   *discoveryDoc
	discAt time.Time
}

// NewClient crea un cliente contra el issuer dado (base del discovery).
func NewClient(issuerURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		issuerURL: strings.TrimRight(issuerURL, "/"),
		http:      &http.Client{Timeout: timeout},
	}
}

// IssuerURL retorna la base configurada.
func (c *Client) IssuerURL() string { return c.issuerURL }

// discovery resuelve el discovery doc, cacheado con su propia vigencia.
func (c *Client) discovery(ctx context.Context) (*discoveryDoc, error) {
	c.mu.RLock()
	disc := c.disc
	stale := time.Since(c.discAt) > discoveryMaxAge
	c.mu.RUnlock()
	if disc != nil && !stale {
		return disc, nil
	}

	body, err := c.get(ctx, c.issuerURL+discoveryPath)
	if err != nil {
		return nil, err
	}
	var dd discoveryDoc
	if err := json.Unmarshal(body, &dd); err != nil {
		return nil, fmt.Errorf("invalid discovery document: %w", err)
	}
	if dd.JWKSURI == "" {
		return nil, fmt.Errorf("discovery document without jwks_uri")
	}

	c.mu.Lock()
	c.disc = &dd
	c.discAt = time.Now()
	c.mu.Unlock()
	return &dd, nil
}

// FetchKeySet obtiene el JWKS actual y lo materializa en un snapshot completo.
// Un solo intento por llamada; cualquier fallo retorna *FetchError sin
// snapshot parcial.
func (c *Client) FetchKeySet(ctx context.Context) (*KeySet, error) {
	disc, err := c.discovery(ctx)
	if err != nil {
		return nil, &FetchError{Op: "discovery", Err: err}
	}

	raw, err := c.get(ctx, disc.JWKSURI)
	if err != nil {
		return nil, &FetchError{Op: "jwks", Err: err}
	}

	ks, err := parseKeySet(raw, time.Now())
	if err != nil {
		return nil, &FetchError{Op: "parse", Err: err}
	}

	logger.L().Debug("jwks fetched",
		logger.Component("oidc.client"),
		logger.JWKSURI(disc.JWKSURI),
		logger.SnapshotID(ks.ID()),
		logger.KeyCount(ks.Len()),
	)
	return ks, nil
}

// get hace un GET con validación de status y content-type.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("http %d from %s", resp.StatusCode, url)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(strings.ToLower(ct), "json") {
		return nil, fmt.Errorf("unexpected content-type %q from %s", ct, url)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, err
	}
	return body, nil
}
