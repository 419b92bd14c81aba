package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dropDatabas3/checkjohn/internal/cache"
	"github.com/dropDatabas3/checkjohn/internal/config"
	"github.com/dropDatabas3/checkjohn/internal/http/router"
	jwtx "github.com/dropDatabas3/checkjohn/internal/jwt"
	"github.com/dropDatabas3/checkjohn/internal/metrics"
	"github.com/dropDatabas3/checkjohn/internal/observability/logger"
	"github.com/dropDatabas3/checkjohn/internal/oidc"
	"github.com/dropDatabas3/checkjohn/internal/rate"
)

func main() {
	var (
		envFile    string
		configPath string
	)

	root := &cobra.Command{
		Use:   "checkjohn",
		Short: "Verificador de bearer tokens contra el JWKS de un provider OIDC",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if envFile != "" {
				_ = godotenv.Load(envFile)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "ruta a .env (opcional)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "ruta a config.yaml (default: configs/config.yaml si existe)")

	root.AddCommand(serveCmd(&configPath))
	root.AddCommand(verifyCmd(&configPath))
	root.AddCommand(jwksCmd(&configPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if fileExists("configs/config.yaml") {
			path = "configs/config.yaml"
		} else if fileExists("configs/config.example.yaml") {
			path = "configs/config.example.yaml"
		}
	}
	return config.Load(path)
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

// buildL2 arma el cache L2 según config; nil = sin L2.
func buildL2(cfg *config.Config) cache.Cache {
	var cc cache.Config
	cc.Kind = cfg.Cache.Kind
	cc.Redis.Addr = cfg.Cache.Redis.Addr
	cc.Redis.DB = cfg.Cache.Redis.DB
	cc.Redis.Prefix = cfg.Cache.Redis.Prefix
	cc.Memory.DefaultTTL = cfg.MemoryCacheTTL()
	return cache.New(cc)
}

// buildLimiter arma el rate limiter de las rutas protegidas; nil = off.
// Con cache redis configurado lo comparte para que el límite valga entre
// réplicas; si no, ventana fija en memoria.
func buildLimiter(cfg *config.Config) rate.Limiter {
	max := cfg.Server.RateLimit.Max
	if max <= 0 {
		return nil
	}
	window := cfg.RateLimitWindow()
	if cfg.Cache.Kind == "redis" {
		client := rdb.NewClient(&rdb.Options{Addr: cfg.Cache.Redis.Addr, DB: cfg.Cache.Redis.DB})
		return rate.NewRedisLimiter(client, cfg.Cache.Redis.Prefix+":rl", max, window)
	}
	return rate.NewMemoryLimiter(max, window)
}

// buildVerifier hace el wiring completo: client → cache → verifier → gate.
func buildVerifier(cfg *config.Config) (*oidc.KeyCache, *jwtx.Gate) {
	client := oidc.NewClient(cfg.Provider.IssuerURL, cfg.HTTPTimeout())
	keyCache := oidc.NewKeyCache(client, oidc.KeyCacheConfig{
		MaxStaleness:    cfg.MaxStaleness(),
		RefreshCooldown: cfg.RefreshCooldown(),
		HardTTL:         cfg.HardTTL(),
		L2:              buildL2(cfg),
	})
	verifier := jwtx.NewVerifier(
		keyCache,
		cfg.Provider.IssuerURL,
		cfg.Auth.Audience,
		cfg.ClockSkew(),
		cfg.Auth.AllowedAlgs,
	)
	return keyCache, jwtx.NewGate(verifier)
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Levanta el resource server con verificación de tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			logger.Init(logger.Config{
				Env:         cfg.App.Env,
				Level:       cfg.Log.Level,
				ServiceName: "checkjohn",
			})
			defer func() { _ = logger.Sync() }()

			if err := metrics.RegisterAuth(nil); err != nil {
				return err
			}

			keyCache, gate := buildVerifier(cfg)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Warmup: un intento; si el provider no está, readiness lo refleja
			// y el primer request lo reintenta.
			if err := keyCache.RefreshNow(ctx); err != nil {
				logger.L().Warn("initial jwks fetch failed, starting degraded", logger.Err(err))
			}
			if iv := cfg.AutoRefreshInterval(); iv > 0 {
				go keyCache.AutoRefresh(ctx, iv)
			}

			handler := router.New(router.Deps{
				Gate:           gate,
				KeyCache:       keyCache,
				RateLimiter:    buildLimiter(cfg),
				RequiredScopes: cfg.Auth.RequiredScopes,
			})

			srv := &http.Server{
				Addr:         cfg.Server.Addr,
				Handler:      handler,
				ReadTimeout:  10 * time.Second,
				WriteTimeout: 30 * time.Second,
			}

			errc := make(chan error, 1)
			go func() {
				logger.L().Info("server listening",
					logger.String("addr", cfg.Server.Addr),
					logger.Issuer(cfg.Provider.IssuerURL),
					logger.Audience(cfg.Auth.Audience),
				)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
			case <-ctx.Done():
				logger.L().Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}
			return nil
		},
	}
}

func verifyCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <token>",
		Short: "Verifica un token una sola vez (debugging operativo)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: "warn"})

			_, gate := buildVerifier(cfg)

			h := http.Header{}
			h.Set("Authorization", "Bearer "+args[0])

			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout()+5*time.Second)
			defer cancel()

			id, err := gate.Authenticate(ctx, h)
			if err != nil {
				fmt.Printf("REJECTED  code=%s  (%v)\n", jwtx.CodeOf(err), err)
				os.Exit(1)
			}
			b, _ := json.MarshalIndent(id.Claims, "", "  ")
			fmt.Printf("OK  sub=%s iss=%s\n%s\n", id.Subject, id.Issuer, string(b))
			return nil
		},
	}
}

func jwksCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "jwks",
		Short: "Trae y muestra el key set actual del provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			logger.Init(logger.Config{Env: cfg.App.Env, Level: "warn"})

			client := oidc.NewClient(cfg.Provider.IssuerURL, cfg.HTTPTimeout())
			ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTPTimeout()+5*time.Second)
			defer cancel()

			ks, err := client.FetchKeySet(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("snapshot %s  keys=%d  fetched_at=%s\n", ks.ID(), ks.Len(), ks.FetchedAt().Format(time.RFC3339))
			for _, kid := range ks.KIDs() {
				k, _ := ks.Key(kid)
				alg := k.Alg
				if alg == "" {
					alg = "-"
				}
				fmt.Printf("  kid=%s alg=%s\n", kid, alg)
			}
			return nil
		},
	}
}
