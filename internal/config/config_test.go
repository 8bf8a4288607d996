package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.Set("auth.jwt_secret", "test-secret")
	return v
}

func TestNewConfigFromViper_Defaults(t *testing.T) {
	cfg, err := NewConfigFromViper(newTestViper(t))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, PipelineLabelObject, cfg.Evidence.Pipeline)
	assert.Equal(t, 8*time.Second, cfg.Evidence.DetectorTimeout)
	assert.Equal(t, 2*time.Second, cfg.Evidence.HistoryTimeout)
	assert.Equal(t, "gemini-2.5-flash", cfg.Gemini.Model)
	assert.Equal(t, 720*time.Hour, cfg.Geocode.CacheTTL)
	assert.Equal(t, "complaints:events", cfg.Redis.Channel)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxUploadBytes)
}

func TestNewConfigFromViper_YAMLOverrides(t *testing.T) {
	v := newTestViper(t)
	v.SetConfigType("yaml")
	yml := []byte(`
evidence:
  pipeline: ai_verdict
  verdict_timeout: 3s
database:
  host: db.internal
  port: 6432
`)
	require.NoError(t, v.ReadConfig(bytes.NewReader(yml)))

	cfg, err := NewConfigFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, PipelineAIVerdict, cfg.Evidence.Pipeline)
	assert.Equal(t, 3*time.Second, cfg.Evidence.VerdictTimeout)
	assert.Equal(t, "host=db.internal user=user password= dbname=cleancitydb port=6432 sslmode=disable", cfg.Database.DSN())
}

func TestConfigValidation(t *testing.T) {
	t.Run("Unknown pipeline", func(t *testing.T) {
		v := newTestViper(t)
		v.Set("evidence.pipeline", "both")
		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "evidence.pipeline")
	})

	t.Run("Missing secret", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth.jwt_secret is required")
	})

	t.Run("Zero timeout", func(t *testing.T) {
		v := newTestViper(t)
		v.Set("evidence.geocode_timeout", "0s")
		_, err := NewConfigFromViper(v)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "timeouts must be positive")
	})
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("CLEANCITY_AUTH_JWT_SECRET", "from-env")
	t.Setenv("CLEANCITY_EVIDENCE_PIPELINE", PipelineAIVerdict)
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, PipelineAIVerdict, cfg.Evidence.Pipeline)
}

func TestGarbageKeywords(t *testing.T) {
	assert.Len(t, GarbageKeywords, 14)
	assert.Contains(t, GarbageKeywords, "debris")
	assert.ElementsMatch(t, []string{"plastic", "bag", "bottle", "waste", "container"}, GarbageObjectTerms)
}
