package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plankit/plankit/pkg/config"
)

type billingConfig struct {
	TrialDays int           `env:"TEST_BILLING_TRIAL_DAYS" envDefault:"7"`
	GraceDays int           `env:"TEST_BILLING_GRACE_DAYS" envDefault:"7"`
	ActiveTTL time.Duration `env:"TEST_BILLING_ACTIVE_TTL" envDefault:"5m"`
}

type cacheConfig struct {
	Capacity int `env:"TEST_CACHE_CAPACITY" envDefault:"4096"`
}

type singletonConfig struct {
	Value string `env:"TEST_SINGLETON_VALUE" envDefault:"initial"`
}

type requiredConfig struct {
	ConnURL string `env:"TEST_REQUIRED_CONN_URL,required"`
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("TEST_BILLING_TRIAL_DAYS", "14")
	t.Setenv("TEST_BILLING_ACTIVE_TTL", "30s")
	config.ResetCache()

	var cfg billingConfig
	require.NoError(t, config.Load(&cfg))

	assert.Equal(t, 14, cfg.TrialDays)
	assert.Equal(t, 7, cfg.GraceDays, "unset variables fall back to defaults")
	assert.Equal(t, 30*time.Second, cfg.ActiveTTL)
}

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("TEST_CACHE_CAPACITY")
	config.ResetCache()

	var cfg cacheConfig
	require.NoError(t, config.Load(&cfg))
	assert.Equal(t, 4096, cfg.Capacity)
}

func TestLoad_CachesPerType(t *testing.T) {
	t.Setenv("TEST_SINGLETON_VALUE", "first")
	config.ResetCache()

	var first singletonConfig
	require.NoError(t, config.Load(&first))
	assert.Equal(t, "first", first.Value)

	// Later environment changes do not affect an already-loaded type.
	t.Setenv("TEST_SINGLETON_VALUE", "second")

	var second singletonConfig
	require.NoError(t, config.Load(&second))
	assert.Equal(t, "first", second.Value)
}

func TestLoad_RequiredMissing(t *testing.T) {
	os.Unsetenv("TEST_REQUIRED_CONN_URL")
	config.ResetCache()

	var cfg requiredConfig
	err := config.Load(&cfg)
	assert.ErrorIs(t, err, config.ErrParsingConfig)
}

func TestLoad_NilPointer(t *testing.T) {
	config.ResetCache()

	err := config.Load[billingConfig](nil)
	assert.ErrorIs(t, err, config.ErrNilPointer)
}

func TestLoadEnv(t *testing.T) {
	t.Run("loads custom file", func(t *testing.T) {
		os.Unsetenv("TEST_ENVFILE_VALUE")
		path := filepath.Join(t.TempDir(), ".env.test")
		require.NoError(t, os.WriteFile(path, []byte("TEST_ENVFILE_VALUE=from_file\n"), 0o600))

		require.NoError(t, config.LoadEnv(path))
		assert.Equal(t, "from_file", os.Getenv("TEST_ENVFILE_VALUE"))
		os.Unsetenv("TEST_ENVFILE_VALUE")
	})

	t.Run("missing file", func(t *testing.T) {
		err := config.LoadEnv(filepath.Join(t.TempDir(), ".env.absent"))
		assert.ErrorIs(t, err, config.ErrFailedToLoadEnvFile)
	})

	t.Run("process environment wins", func(t *testing.T) {
		t.Setenv("TEST_ENVFILE_PRIORITY", "from_process")
		path := filepath.Join(t.TempDir(), ".env.test")
		require.NoError(t, os.WriteFile(path, []byte("TEST_ENVFILE_PRIORITY=from_file\n"), 0o600))

		require.NoError(t, config.LoadEnv(path))
		assert.Equal(t, "from_process", os.Getenv("TEST_ENVFILE_PRIORITY"))
	})
}
