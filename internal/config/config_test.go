package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, 2*time.Second, cfg.Validation.StageTimeout)
	assert.Equal(t, 5*time.Second, cfg.Validation.StatusCacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Counters.ReservationTTL)
	assert.False(t, cfg.Kafka.Enabled)

	store, err := cfg.Counters.Store()
	require.NoError(t, err)
	assert.Equal(t, "Asia/Kolkata", store.Location.String())
	assert.Equal(t, 256, store.Capacity)

	det := cfg.Fraud.Detector()
	assert.Equal(t, 30*time.Minute, det.Velocity.Window)
	assert.Equal(t, 6, det.Velocity.HighCount)
	assert.True(t, det.Amount.HighMultiple.Equal(decimal.NewFromInt(10)))
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("STAGE_TIMEOUT", "750ms")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, 750*time.Millisecond, cfg.Validation.StageTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, "DEBUG", cfg.SlogLevel().String())
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(path, []byte("AUDIT_SIGNING_KEY=file-key\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("AUDIT_SIGNING_KEY") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.Audit.SigningKey)
}

func TestLoad_RejectsBadValues(t *testing.T) {
	cases := map[string]string{
		"COMPLIANCE_THRESHOLD": "lots",
		"COUNTER_TIMEZONE":     "Mars/Olympus",
		"STAGE_TIMEOUT":        "soon",
	}

	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
