package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dropDatabas3/checkjohn/internal/validation"
)

type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda "dev".
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`

		// RateLimit limita requests por IP en las rutas protegidas.
		// Max 0 = deshabilitado.
		RateLimit struct {
			Max    int    `yaml:"max"`
			Window string `yaml:"window"`
		} `yaml:"rate_limit"`
	} `yaml:"server"`

	// Provider es el identity provider cuyos tokens verificamos.
	Provider struct {
		// IssuerURL es la base del discovery y a la vez el iss esperado.
		IssuerURL string `yaml:"issuer_url"`
		// HTTPTimeout del fetch de discovery/JWKS.
		HTTPTimeout string `yaml:"http_timeout"`
		// MaxStaleness: edad del snapshot que fuerza refresh síncrono.
		MaxStaleness string `yaml:"max_staleness"`
		// RefreshCooldown: intervalo mínimo entre refreshes por miss.
		RefreshCooldown string `yaml:"refresh_cooldown"`
		// HardTTL: tope absoluto para servir un snapshot stale; "0" = sin tope.
		HardTTL string `yaml:"hard_ttl"`
		// AutoRefreshInterval: refresco periódico en background; "0" = off.
		AutoRefreshInterval string `yaml:"auto_refresh_interval"`
	} `yaml:"provider"`

	Auth struct {
		Audience    string   `yaml:"audience"`
		ClockSkew   string   `yaml:"clock_skew"`
		AllowedAlgs []string `yaml:"allowed_algs"`

		// RequiredScopes se exigen en todas las rutas protegidas.
		RequiredScopes []string `yaml:"required_scopes"`
	} `yaml:"auth"`

	Cache struct {
		Kind  string `yaml:"kind"` // memory | redis | off
		Redis struct {
			Addr   string `yaml:"addr"`
			DB     int    `yaml:"db"`
			Prefix string `yaml:"prefix"`
		} `yaml:"redis"`
		Memory struct {
			DefaultTTL string `yaml:"default_ttl"`
		} `yaml:"memory"`
	} `yaml:"cache"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load lee el YAML, aplica defaults, overrides por env y valida duraciones.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	c.applyEnv()

	// sane defaults
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8081"
	}
	if c.Provider.HTTPTimeout == "" {
		c.Provider.HTTPTimeout = "10s"
	}
	if c.Provider.MaxStaleness == "" {
		c.Provider.MaxStaleness = "10m"
	}
	if c.Provider.RefreshCooldown == "" {
		c.Provider.RefreshCooldown = "30s"
	}
	if c.Provider.HardTTL == "" {
		c.Provider.HardTTL = "0"
	}
	if c.Provider.AutoRefreshInterval == "" {
		c.Provider.AutoRefreshInterval = "5m"
	}
	if c.Auth.ClockSkew == "" {
		c.Auth.ClockSkew = "30s"
	}
	if c.Server.RateLimit.Window == "" {
		c.Server.RateLimit.Window = "1m"
	}
	if c.Cache.Kind == "" {
		c.Cache.Kind = "memory"
	}
	if c.Cache.Memory.DefaultTTL == "" {
		c.Cache.Memory.DefaultTTL = "24h"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}

	if c.Provider.IssuerURL == "" {
		return nil, errors.New("config: provider.issuer_url is required")
	}
	if !strings.HasPrefix(c.Provider.IssuerURL, "https://") && !strings.HasPrefix(c.Provider.IssuerURL, "http://") {
		return nil, fmt.Errorf("config: provider.issuer_url %q must be an http(s) URL", c.Provider.IssuerURL)
	}
	if c.Auth.Audience == "" {
		return nil, errors.New("config: auth.audience is required")
	}
	for _, s := range c.Auth.RequiredScopes {
		if !validation.ValidScopeName(s) {
			return nil, fmt.Errorf("config: auth.required_scopes: invalid scope name %q", s)
		}
	}

	// validate string durations
	for name, s := range map[string]string{
		"provider.http_timeout":          c.Provider.HTTPTimeout,
		"provider.max_staleness":         c.Provider.MaxStaleness,
		"provider.refresh_cooldown":      c.Provider.RefreshCooldown,
		"provider.hard_ttl":              c.Provider.HardTTL,
		"provider.auto_refresh_interval": c.Provider.AutoRefreshInterval,
		"auth.clock_skew":                c.Auth.ClockSkew,
		"cache.memory.default_ttl":       c.Cache.Memory.DefaultTTL,
		"server.rate_limit.window":       c.Server.RateLimit.Window,
	} {
		if _, err := parseDur(s); err != nil {
			return nil, fmt.Errorf("config: %s: %w", name, err)
		}
	}

	return &c, nil
}

// applyEnv pisa valores con variables de entorno (para despliegues sin YAML).
func (c *Config) applyEnv() {
	if v := getenv("APP_ENV"); v != "" {
		c.App.Env = v
	}
	if v := getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("PROVIDER_ISSUER_URL"); v != "" {
		c.Provider.IssuerURL = v
	}
	if v := getenv("PROVIDER_HTTP_TIMEOUT"); v != "" {
		c.Provider.HTTPTimeout = v
	}
	if v := getenv("PROVIDER_MAX_STALENESS"); v != "" {
		c.Provider.MaxStaleness = v
	}
	if v := getenv("PROVIDER_REFRESH_COOLDOWN"); v != "" {
		c.Provider.RefreshCooldown = v
	}
	if v := getenv("PROVIDER_HARD_TTL"); v != "" {
		c.Provider.HardTTL = v
	}
	if v := getenv("AUTH_AUDIENCE"); v != "" {
		c.Auth.Audience = v
	}
	if v := getenv("AUTH_CLOCK_SKEW"); v != "" {
		c.Auth.ClockSkew = v
	}
	if v := getenv("AUTH_ALLOWED_ALGS"); v != "" {
		c.Auth.AllowedAlgs = splitCSV(v)
	}
	if v := getenv("AUTH_REQUIRED_SCOPES"); v != "" {
		c.Auth.RequiredScopes = splitCSV(v)
	}
	if v := getenv("RATE_LIMIT_MAX"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Server.RateLimit.Max = n
		}
	}
	if v := getenv("RATE_LIMIT_WINDOW"); v != "" {
		c.Server.RateLimit.Window = v
	}
	if v := getenv("CACHE_KIND"); v != "" {
		c.Cache.Kind = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Cache.Redis.Addr = v
	}
	if v := getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Cache.Redis.DB = n
		}
	}
	if v := getenv("REDIS_PREFIX"); v != "" {
		c.Cache.Redis.Prefix = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Accessors para las duraciones ya validadas en Load.

func (c *Config) HTTPTimeout() time.Duration { return mustDur(c.Provider.HTTPTimeout) }

func (c *Config) MaxStaleness() time.Duration { return mustDur(c.Provider.MaxStaleness) }

func (c *Config) RefreshCooldown() time.Duration { return mustDur(c.Provider.RefreshCooldown) }

func (c *Config) HardTTL() time.Duration { return mustDur(c.Provider.HardTTL) }

func (c *Config) ClockSkew() time.Duration { return mustDur(c.Auth.ClockSkew) }

func (c *Config) MemoryCacheTTL() time.Duration { return mustDur(c.Cache.Memory.DefaultTTL) }

func (c *Config) RateLimitWindow() time.Duration { return mustDur(c.Server.RateLimit.Window) }

func (c *Config) AutoRefreshInterval() time.Duration {
	return mustDur(c.Provider.AutoRefreshInterval)
}

// parseDur acepta "0" como cero además de duraciones Go normales.
func parseDur(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "0" || s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

func mustDur(s string) time.Duration {
	d, _ := parseDur(s)
	return d
}

func getenv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
