package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":     "www.example:9000",
		"database_dsn":           "postgres://example/dm",
		"redis_addr":             "127.0.0.1:6379",
		"redis_password":         "pw",
		"redis_db":               2,
		"secret_key":             "my_secret_key",
		"session_token_validity": "12h",
		"cache_ttl":              "30m",
		"cache_cap":              50,
		"call_timeout":           "5s",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "postgres://example/dm", cfg.DatabaseDSN)
		assert.Equal(t, "127.0.0.1:6379", cfg.RedisAddr)
		assert.Equal(t, "pw", cfg.RedisPassword)
		assert.Equal(t, 2, cfg.RedisDB)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 12*time.Hour, cfg.SessionTokenValidity)
		assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
		assert.Equal(t, 50, cfg.CacheCap)
		assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrHTTP:     "defaults:1234",
			DatabaseDSN:          "postgres://defaults/dm",
			SecretKey:            "key",
			SessionTokenValidity: 2 * time.Hour,
			CacheTTL:             10 * time.Minute,
			CacheCap:             25,
			CallTimeout:          time.Second,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "postgres://defaults/dm", cfg.DatabaseDSN)
		assert.Equal(t, "key", cfg.SecretKey)
		assert.Equal(t, 2*time.Hour, cfg.SessionTokenValidity)
		assert.Equal(t, 10*time.Minute, cfg.CacheTTL)
		assert.Equal(t, 25, cfg.CacheCap)
		assert.Equal(t, time.Second, cfg.CallTimeout)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
