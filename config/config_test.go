package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, ":9926", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "json", cfg.Cache.Codec)
	assert.EqualValues(t, 64<<20, cfg.Cache.MaxStreamBytes)
	assert.Equal(t, 3*time.Minute, cfg.CMS.TaglineTTL)
	assert.Equal(t, 5*time.Second, cfg.Store.Redis.Timeout)
	assert.Equal(t, []string{"product", "category", "catalog"}, cfg.Admin.AllowedTags)
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	yaml := `
store:
  backend: Redis
  redis:
    address: redis:6379
    entry_ttl: 1h
cache:
  namespace: shop
admin:
  allowed_tags: [page, feed]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o600))
	t.Setenv("TAGCACHE_CACHE_CODEC", "msgpack")
	t.Setenv("CMS_URL", "https://cms.example.com")
	t.Setenv("CMS_API_KEY", "k")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Store.Backend)
	assert.Equal(t, "redis:6379", cfg.Store.Redis.Address)
	assert.Equal(t, time.Hour, cfg.Store.Redis.EntryTTL)
	assert.Equal(t, "shop", cfg.Cache.Namespace)
	assert.Equal(t, "msgpack", cfg.Cache.Codec)
	assert.Equal(t, "https://cms.example.com", cfg.CMS.URL)
	assert.Equal(t, "k", cfg.CMS.APIKey)
	assert.Equal(t, []string{"page", "feed"}, cfg.Admin.AllowedTags)
}

func TestPrefixedEnvWinsOverFallback(t *testing.T) {
	t.Setenv("CMS_URL", "http://fallback")
	t.Setenv("TAGCACHE_CMS_URL", "http://primary")
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "http://primary", cfg.CMS.URL)
}

func TestValidate(t *testing.T) {
	t.Setenv("TAGCACHE_STORE_BACKEND", "etcd")
	_, err := Load(t.TempDir())
	require.Error(t, err)

	t.Setenv("TAGCACHE_STORE_BACKEND", "sql")
	_, err = Load(t.TempDir())
	require.ErrorContains(t, err, "dsn")
}
