package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(nil, lookupFrom(nil))
	require.NoError(t, err)

	assert.Equal(t, ":4000", cfg.Addr)
	assert.Equal(t, "masala", cfg.MongoDatabase)
	assert.False(t, cfg.StrictStock)
	assert.True(t, cfg.DeliveryFee.IsZero())
	assert.Equal(t, 720*time.Hour, cfg.AbandonAfter)
	assert.Zero(t, cfg.CleanupInterval)
	assert.Equal(t, 5*time.Second, cfg.QueryTimeout)
	assert.Len(t, cfg.AllowedOrigins, 2)
	assert.False(t, cfg.SESConfigured())
}

func TestLoadEnvAndFlags(t *testing.T) {
	cfg, err := load([]string{"-addr", ":9000", "-strict-stock"}, lookupFrom(map[string]string{
		"ADDR":               ":8080",
		"DELIVERY_FEE":       "3.5",
		"ALLOWED_ORIGINS":    " https://a.test , ,https://b.test",
		"CLEANUP_INTERVAL":   "1h",
		"FRONTEND_URL":       "https://shop.test/",
		"AWS_SENDER_ADDRESS": "no-reply@shop.test",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Addr)
	assert.True(t, cfg.StrictStock)
	assert.Equal(t, "3.5", cfg.DeliveryFee.String())
	assert.Equal(t, []string{"https://a.test", "https://b.test"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, "https://shop.test", cfg.FrontendURL)
	assert.True(t, cfg.SESConfigured())
}

func TestLoadRejectsBadValues(t *testing.T) {
	for key, val := range map[string]string{
		"STRICT_STOCK":  "maybe",
		"DELIVERY_FEE":  "-1",
		"QUERY_TIMEOUT": "soon",
	} {
		_, err := load(nil, lookupFrom(map[string]string{key: val}))
		assert.ErrorContains(t, err, key)
	}
}

func TestLoadDotEnv(t *testing.T) {
	require.NoError(t, LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("MASALA_TEST_KEY=curry\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("MASALA_TEST_KEY") })

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "curry", os.Getenv("MASALA_TEST_KEY"))
}
