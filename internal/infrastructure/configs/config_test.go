package configs

import (
	"testing"
	"time"

	"github.com/hilthontt/lobby/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Janitor.Interval)
	assert.Equal(t, 15*time.Minute, cfg.Janitor.StaleAfter)
	assert.Equal(t, 8, cfg.Janitor.Concurrency)
	assert.Equal(t, 4*time.Minute, cfg.Janitor.EffectiveRunTimeout())
	assert.True(t, cfg.Janitor.ReapOrphans)
	assert.Equal(t, uint16(8080), cfg.HTTP.Port)
	assert.Equal(t, "zap", cfg.Logger.Logger)
}

func TestLoadFileAndEnv(t *testing.T) {
	t.Setenv("APP_ID", "from-env")
	t.Setenv("JANITOR_STALE_AFTER_SECONDS", "600")

	cfg, err := Load("testdata/config.yaml")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.App.Tenant)
	assert.Equal(t, time.Minute, cfg.Janitor.Interval)
	assert.Equal(t, 10*time.Minute, cfg.Janitor.StaleAfter)
	assert.Equal(t, 2, cfg.Janitor.Concurrency)
	require.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("testdata/nope.yaml")
	assert.Error(t, err)
}

func TestValidateRequiresTenant(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	cfg.App.Tenant = ""

	assert.ErrorIs(t, cfg.Validate(), domain.ErrConfigMissing)

	cfg.App.Tenant = "app"
	cfg.Store.Driver = StoreDriverMongo
	assert.ErrorIs(t, cfg.Validate(), domain.ErrConfigMissing)

	cfg.Store.Driver = "sqlite"
	assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidInput)
}

func TestValidateStandaloneJanitorRejectsMemoryStore(t *testing.T) {
	t.Setenv("APP_ID", "prod")
	t.Setenv("STORE_DRIVER", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, StoreDriverMemory, cfg.Store.Driver)

	require.NoError(t, cfg.Validate())
	assert.ErrorIs(t, cfg.ValidateStandaloneJanitor(), domain.ErrConfigMissing)

	cfg.Store.Driver = StoreDriverMongo
	cfg.Store.Mongo.URI = "mongodb://localhost:27017"
	assert.NoError(t, cfg.ValidateStandaloneJanitor())

	cfg.App.Tenant = ""
	assert.ErrorIs(t, cfg.ValidateStandaloneJanitor(), domain.ErrConfigMissing)
}
