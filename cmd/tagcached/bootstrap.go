package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/tagcache"
	"github.com/unkn0wn-root/tagcache/admin"
	"github.com/unkn0wn-root/tagcache/codec"
	"github.com/unkn0wn-root/tagcache/config"
	promhook "github.com/unkn0wn-root/tagcache/hooks/prom"
	zaplog "github.com/unkn0wn-root/tagcache/log/zap"
	"github.com/unkn0wn-root/tagcache/source"
	"github.com/unkn0wn-root/tagcache/source/cms"
	"github.com/unkn0wn-root/tagcache/store"
	"github.com/unkn0wn-root/tagcache/store/bigcache"
	"github.com/unkn0wn-root/tagcache/store/memory"
	redisstore "github.com/unkn0wn-root/tagcache/store/redis"
	"github.com/unkn0wn-root/tagcache/store/ristretto"
	"github.com/unkn0wn-root/tagcache/store/sqlstore"
)

// runtimeStack bundles the long-lived pieces behind the HTTP server.
type runtimeStack struct {
	Cache    tagcache.Handler
	Registry *prometheus.Registry
	Router   *gin.Engine
}

func bootstrap(ctx context.Context, cfg *config.Config, log *zap.Logger) (*runtimeStack, error) {
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	c, err := codec.ByName(cfg.Cache.Codec)
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	hooks, err := promhook.New(reg, "tagcache")
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	logger := zaplog.New(log)
	cache, err := tagcache.New(tagcache.Options{
		Store:          st,
		Codec:          c,
		Namespace:      cfg.Cache.Namespace,
		Logger:         logger,
		Hooks:          hooks,
		MaxStreamBytes: cfg.Cache.MaxStreamBytes,
		Disabled:       cfg.Cache.Disabled,
		StrictWrites:   cfg.Cache.StrictWrites,
	})
	if err != nil {
		_ = st.Close(ctx)
		return nil, err
	}

	stack := &runtimeStack{Cache: cache, Registry: reg}
	stack.Router, err = newRouter(cfg, cache, reg, log)
	if err != nil {
		_ = cache.Close(ctx)
		return nil, err
	}
	return stack, nil
}

func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil || s.Cache == nil {
		return
	}
	if err := s.Cache.Close(ctx); err != nil {
		log.Warn("close cache store", zap.Error(err))
	}
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Backend {
	case "memory":
		return memory.New(memory.Config{MaxEntries: cfg.Memory.MaxEntries})
	case "redis":
		rdb := goredis.NewClient(&goredis.Options{
			Addr:         cfg.Redis.Address,
			Username:     cfg.Redis.Username,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			DialTimeout:  cfg.Redis.Timeout,
			ReadTimeout:  cfg.Redis.Timeout,
			WriteTimeout: cfg.Redis.Timeout,
		})
		pingCtx, cancel := context.WithTimeout(ctx, cfg.Redis.Timeout)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Address, err)
		}
		return redisstore.New(redisstore.Config{
			Client:      rdb,
			Namespace:   cfg.Redis.Prefix,
			EntryTTL:    cfg.Redis.EntryTTL,
			CloseClient: true,
		})
	case "bigcache":
		return bigcache.NewStore(bigcache.Config{
			LifeWindow:         cfg.Bigcache.LifeWindow,
			MaxEntrySize:       cfg.Bigcache.MaxEntrySize,
			HardMaxCacheSizeMB: cfg.Bigcache.HardMaxMB,
		})
	case "ristretto":
		return ristretto.NewStore(ristretto.Config{
			NumCounters: cfg.Ristretto.NumCounters,
			MaxCost:     cfg.Ristretto.MaxCost,
			TTL:         cfg.Ristretto.TTL,
			Sync:        true,
		})
	case "sql":
		return sqlstore.Open(sqlstore.Config{Dialect: cfg.SQL.Dialect, DSN: cfg.SQL.DSN})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func newRouter(cfg *config.Config, cache tagcache.Handler, reg *prometheus.Registry, log *zap.Logger) (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "cache": cache.Enabled()})
	})
	if cfg.Server.MetricsPath != "" {
		r.GET(cfg.Server.MetricsPath, gin.WrapH(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))
	}

	admin.New(cache, admin.Config{
		Allowed: cfg.Admin.AllowedTags,
		Logger:  zaplog.New(log),
	}).Register(r)

	if cfg.CMS.URL == "" && cfg.CMS.APIKey == "" {
		log.Info("cms not configured; tagline route disabled")
		return r, nil
	}
	taglines, err := newTaglineService(cfg.CMS, cache)
	if err != nil {
		return nil, err
	}
	r.GET("/api/product/:id/tagline", taglineHandler(taglines, log))
	return r, nil
}

func newTaglineService(cfg config.CMSConfig, cache tagcache.Handler) (*source.ReadThrough[cms.Tagline], error) {
	client, err := cms.New(cms.Config{BaseURL: cfg.URL, APIKey: cfg.APIKey, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	var src source.Source[cms.Tagline] = client
	if cfg.Retries > 0 {
		src = source.Retry(src, source.RetryConfig{MaxRetries: cfg.Retries})
	}
	src = source.Breaker(src, source.BreakerConfig{Name: "cms"})

	return source.NewReadThrough(cache, src, source.ReadThroughConfig[cms.Tagline]{
		Key:  func(id string) string { return "/product/" + id + "/tagline" },
		Tags: func(string, cms.Tagline) []string { return []string{"product", "tagline"} },
		Meta: func(string, cms.Tagline) tagcache.Meta {
			if cfg.TaglineTTL <= 0 {
				return tagcache.Meta{}
			}
			return tagcache.Meta{ExpireAt: time.Now().Add(cfg.TaglineTTL).UnixMilli()}
		},
	})
}

func taglineHandler(rt *source.ReadThrough[cms.Tagline], log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		t, hit, err := rt.Get(c.Request.Context(), id)
		if err != nil {
			log.Warn("tagline fetch failed", zap.String("id", id), zap.Error(err))
			status := http.StatusBadGateway
			var ce *source.ConfigError
			if errors.As(err, &ce) {
				status = http.StatusInternalServerError
			}
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
		if hit {
			c.Header("X-Cache", "HIT")
		} else {
			c.Header("X-Cache", "MISS")
		}
		c.JSON(http.StatusOK, t)
	}
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		)
	}
}
