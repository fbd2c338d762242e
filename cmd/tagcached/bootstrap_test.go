package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/tagcache/config"
	"github.com/unkn0wn-root/tagcache/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(t.TempDir())
	require.NoError(t, err)
	return cfg
}

func storeRecord(id string) store.Record {
	return store.Record{ID: id, Data: `{"codec":"json","payload":""}`, LastModified: 1, Tags: []string{"t"}}
}

func TestOpenStoreBackends(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	cfg := testConfig(t).Store
	cfg.Redis.Address = mr.Addr()
	cfg.SQL.DSN = ":memory:"

	for _, backend := range []string{"memory", "redis", "bigcache", "ristretto", "sql"} {
		t.Run(backend, func(t *testing.T) {
			cfg.Backend = backend
			st, err := openStore(ctx, cfg)
			require.NoError(t, err)
			defer st.Close(ctx)

			require.NoError(t, st.Entries().Put(ctx, storeRecord("k")))
			_, ok, err := st.Entries().Get(ctx, "k")
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}

	cfg.Backend = "etcd"
	_, err := openStore(ctx, cfg)
	assert.Error(t, err)
}

func TestRouterServesTaglinesThroughCache(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var hits atomic.Int32
	cmsSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"id":"42","tagline":"Built to last"}`))
	}))
	defer cmsSrv.Close()

	cfg := testConfig(t)
	cfg.CMS.URL = cmsSrv.URL
	cfg.CMS.APIKey = "key"

	stack, err := bootstrap(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer stack.Shutdown(context.Background(), zap.NewNop())

	get := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		stack.Router.ServeHTTP(w, req)
		return w
	}

	w := get("/api/product/42/tagline")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"id":"42","tagline":"Built to last"}`, w.Body.String())

	w = get("/api/product/42/tagline")
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.EqualValues(t, 1, hits.Load())

	inv := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/invalidate-cache", strings.NewReader(`{"tag":"Product"}`))
	req.Header.Set("Content-Type", "application/json")
	stack.Router.ServeHTTP(inv, req)
	require.Equal(t, http.StatusOK, inv.Code)

	w = get("/api/product/42/tagline")
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	assert.EqualValues(t, 2, hits.Load())

	w = get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "tagcache_hits_total 1")
	assert.Contains(t, w.Body.String(), "tagcache_evicted_total 1")

	w = get("/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouterWithoutCMS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	stack, err := bootstrap(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)

	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/product/1/tagline", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBootstrapRejectsPartialCMSConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.CMS.URL = "http://cms"
	_, err := bootstrap(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestBootstrapRejectsUnknownCodec(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Codec = "yaml"
	_, err := bootstrap(context.Background(), cfg, zap.NewNop())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(config.ServerConfig{LogLevel: "debug", LogFormat: "console"})
	require.NoError(t, err)
	_, err = newLogger(config.ServerConfig{LogLevel: "loud"})
	assert.Error(t, err)
}
