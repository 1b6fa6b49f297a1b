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

func TestFromEnv(t *testing.T) {
	t.Run("defaults apply when nothing is set", func(t *testing.T) {
		cfg, err := FromEnv(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)

		assert.Equal(t, ":8080", cfg.Server.Addr)
		assert.Equal(t, DriverMemory, cfg.Database.Driver)
		assert.Equal(t, "0 0 10 * *", cfg.Scheduler.InterestAccrual)
		assert.Equal(t, time.Hour, cfg.Scheduler.LockTTL)
		assert.False(t, cfg.KafkaEnabled())

		rates, err := cfg.Accrual.Parse()
		require.NoError(t, err)
		assert.True(t, rates.MonthlyInterest.Equal(decimal.RequireFromString("0.05")))
		assert.True(t, rates.BenefitThreshold.Equal(decimal.NewFromInt(100000)))
	})

	t.Run("environment overrides defaults", func(t *testing.T) {
		t.Setenv("PENSION_ADDR", ":9999")
		t.Setenv("KAFKA_BROKERS", "k1:9092;k2:9092")
		t.Setenv("CRON_INTEREST_ACCRUAL", "*/5 * * * *")

		cfg, err := FromEnv(filepath.Join(t.TempDir(), "missing.env"))
		require.NoError(t, err)
		assert.Equal(t, ":9999", cfg.Server.Addr)
		assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
		assert.Equal(t, "*/5 * * * *", cfg.Scheduler.InterestAccrual)
		assert.True(t, cfg.KafkaEnabled())
	})

	t.Run(".env file values are loaded", func(t *testing.T) {
		envFile := filepath.Join(t.TempDir(), "test.env")
		require.NoError(t, os.WriteFile(envFile, []byte("ADMIN_API_TOKEN=from-dotenv\n"), 0o600))
		t.Cleanup(func() { _ = os.Unsetenv("ADMIN_API_TOKEN") })

		cfg, err := FromEnv(envFile)
		require.NoError(t, err)
		assert.Equal(t, "from-dotenv", cfg.Server.AdminToken)
	})

	t.Run("postgres driver requires a URL", func(t *testing.T) {
		t.Setenv("STORAGE_DRIVER", DriverPostgres)
		_, err := FromEnv(filepath.Join(t.TempDir(), "missing.env"))
		require.Error(t, err)
	})

	t.Run("invalid rate is rejected", func(t *testing.T) {
		t.Setenv("INTEREST_MONTHLY_RATE", "five percent")
		_, err := FromEnv(filepath.Join(t.TempDir(), "missing.env"))
		require.Error(t, err)
	})
}
