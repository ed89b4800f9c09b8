package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		JWTSecret:        "test-secret-key-0123456789",
		WarningThreshold: 0.4,
		FraudThreshold:   0.7,
		MinDeposit:       10,
		RetrainEvery:     10,
		MinTrainSamples:  10,
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-0123456789")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultFraudThreshold, cfg.FraudThreshold)
	assert.Equal(t, DefaultWarningThreshold, cfg.WarningThreshold)
	assert.Equal(t, DefaultRetrainEvery, cfg.RetrainEvery)
	assert.InDelta(t, DefaultMinDeposit, cfg.MinDeposit, 0.001)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_MissingJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate_Thresholds(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())

	cfg.FraudThreshold = 0.3 // below warning
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.WarningThreshold = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_ShortSecret(t *testing.T) {
	cfg := validConfig()
	cfg.JWTSecret = "short"
	assert.Error(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret-key-0123456789")
	t.Setenv("ENV", "production")
	t.Setenv("MIN_DEPOSIT", "25")
	t.Setenv("RETRAIN_EVERY", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.InDelta(t, 25.0, cfg.MinDeposit, 0.001)
	assert.Equal(t, 5, cfg.RetrainEvery)
}
