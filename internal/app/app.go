// Package app assembles the service from its configuration: stores, cache,
// providers, services and the HTTP handler.
package app

import (
	"context"
	"fmt"
	stdhttp "net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/samuvale95/swift-study-box-be/internal/cache"
	memcache "github.com/samuvale95/swift-study-box-be/internal/cache/memory"
	rediscache "github.com/samuvale95/swift-study-box-be/internal/cache/redis"
	"github.com/samuvale95/swift-study-box-be/internal/config"
	"github.com/samuvale95/swift-study-box-be/internal/domain/repository"
	httpx "github.com/samuvale95/swift-study-box-be/internal/http"
	"github.com/samuvale95/swift-study-box-be/internal/http/controllers"
	"github.com/samuvale95/swift-study-box-be/internal/http/metrics"
	authsvc "github.com/samuvale95/swift-study-box-be/internal/http/services/auth"
	oauthsvc "github.com/samuvale95/swift-study-box-be/internal/http/services/oauth"
	"github.com/samuvale95/swift-study-box-be/internal/jwt"
	"github.com/samuvale95/swift-study-box-be/internal/oauth/apple"
	"github.com/samuvale95/swift-study-box-be/internal/oauth/google"
	"github.com/samuvale95/swift-study-box-be/internal/oauth/microsoft"
	"github.com/samuvale95/swift-study-box-be/internal/oauth/providers"
	"github.com/samuvale95/swift-study-box-be/internal/observability/logger"
	"github.com/samuvale95/swift-study-box-be/internal/rate"
	memstore "github.com/samuvale95/swift-study-box-be/internal/store/memory"
	"github.com/samuvale95/swift-study-box-be/internal/store/pg"
)

// Container holds the assembled service and its teardown hooks.
type Container struct {
	Handler stdhttp.Handler
	Addr    string

	closers []func() error
}

// New wires everything from the loaded config.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Addr: cfg.Server.Addr}

	store, ready, err := c.buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	kv, err := c.buildCache(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var limiter rate.Limiter
	if cfg.Rate.Enabled {
		if r, ok := kv.(*rediscache.Cache); ok {
			limiter = rate.NewRedisLimiter(r.Client(), "rl:", cfg.Rate.Limit, cfg.RateWindow())
		} else {
			limiter = rate.NewMemoryLimiter(cfg.Rate.Limit, cfg.RateWindow())
		}
	}

	registry, err := buildRegistry(cfg)
	if err != nil {
		return nil, err
	}

	issuer := jwt.NewIssuer(cfg.JWT.Secret, cfg.AccessTTL(), cfg.RefreshTTL())

	oauthService := oauthsvc.NewService(oauthsvc.Deps{
		Registry:     registry,
		States:       oauthsvc.NewStateStore(kv),
		Resolver:     oauthsvc.NewResolver(store),
		Users:        store,
		Issuer:       issuer,
		RequireState: cfg.RequireState(),
	})
	authService := authsvc.NewService(authsvc.Deps{
		Users:  store,
		Issuer: issuer,
	})

	metricsHandler, err := metrics.Register(prometheus.DefaultRegisterer)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	c.Handler = httpx.NewRouter(httpx.RouterDeps{
		Auth:           controllers.NewAuthController(authService),
		OAuth:          controllers.NewOAuthController(oauthService),
		Issuer:         issuer,
		MetricsHandler: metricsHandler,
		Ready:          ready,
		RateLimiter:    limiter,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
	})
	return c, nil
}

// Close releases the pool and cache connections.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			logger.L().Warn("close failed", logger.Err(err))
		}
	}
}

func (c *Container) buildStore(ctx context.Context, cfg *config.Config) (repository.UserRepository, func(context.Context) error, error) {
	if cfg.Storage.DSN == "" {
		logger.L().Warn("no storage dsn configured, using in-memory user store")
		return memstore.NewUserRepository(), nil, nil
	}

	pool, err := pg.Connect(ctx, cfg.Storage.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	c.closers = append(c.closers, func() error {
		pool.Close()
		return nil
	})
	return pg.NewUserRepository(pool), pool.Ping, nil
}

func (c *Container) buildCache(ctx context.Context, cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Kind {
	case "redis":
		r := rediscache.New(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err := r.Ping(ctx); err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		c.closers = append(c.closers, r.Close)
		return r, nil
	default:
		return memcache.New(cfg.MemoryCacheTTL()), nil
	}
}

func buildRegistry(cfg *config.Config) (*providers.Registry, error) {
	var ps []providers.Provider

	if g := cfg.Providers.Google; g.Enabled {
		ps = append(ps, google.New(google.Config{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			RedirectURL:  g.RedirectURL,
			Scopes:       g.Scopes,
		}))
	}
	if m := cfg.Providers.Microsoft; m.Enabled {
		ps = append(ps, microsoft.New(microsoft.Config{
			ClientID:     m.ClientID,
			ClientSecret: m.ClientSecret,
			RedirectURL:  m.RedirectURL,
			Scopes:       m.Scopes,
		}))
	}
	if a := cfg.Providers.Apple; a.Enabled {
		p, err := apple.New(apple.Config{
			ClientID:    a.ClientID,
			TeamID:      a.TeamID,
			KeyID:       a.KeyID,
			PrivateKey:  a.PrivateKey,
			RedirectURL: a.RedirectURL,
			Scopes:      a.Scopes,
		})
		if err != nil {
			return nil, fmt.Errorf("configure apple provider: %w", err)
		}
		ps = append(ps, p)
	}

	return providers.NewRegistry(ps...), nil
}
