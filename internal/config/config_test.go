package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRESQL_HOST", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 60*time.Second, cfg.SweepInterval)
	assert.Equal(t, 200, cfg.SweepBatchSize)
	assert.Equal(t, 24*time.Hour, cfg.OrderAcceptanceWindow)
	assert.Equal(t, 72*time.Hour, cfg.OrderReviewPeriod)
	assert.True(t, cfg.OrderAutoRelease)
	assert.Equal(t, 100, cfg.OrderCancelRefundPct)
	assert.Equal(t, 2, cfg.WorkProofMaxRevisions)
	assert.Equal(t, 24*time.Hour, cfg.WorkProofRevisionTimeout)
	assert.Equal(t, 72*time.Hour, cfg.WorkProofApprovalWindow)
	assert.NotEmpty(t, cfg.JWTSecret)
	assert.Len(t, cfg.AllowedOrigins, 2)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", "file:escrow.db")
	t.Setenv("SWEEP_INTERVAL", "15s")
	t.Setenv("ORDER_AUTO_RELEASE", "false")
	t.Setenv("WORK_PROOF_MAX_REVISIONS", "5")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, "file:escrow.db", cfg.DatabaseURL)
	assert.Equal(t, 15*time.Second, cfg.SweepInterval)
	assert.False(t, cfg.OrderAutoRelease)
	assert.Equal(t, 5, cfg.WorkProofMaxRevisions)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
}

func TestFromEnv_Production(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "short")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("CORS_ALLOWED_ORIGINS", "")
	_, err = FromEnv()
	assert.Error(t, err)

	t.Setenv("CORS_ALLOWED_ORIGINS", "https://escrow.example")
	_, err = FromEnv()
	assert.NoError(t, err)
}

func TestFromEnv_Invalid(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_DRIVER", "mysql")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("DATABASE_DRIVER", "postgres")
	t.Setenv("SWEEP_INTERVAL", "soon")
	_, err = FromEnv()
	assert.Error(t, err)

	t.Setenv("SWEEP_INTERVAL", "60s")
	for _, pct := range []string{"0", "101"} {
		t.Setenv("ORDER_CANCEL_REFUND_PERCENT", pct)
		_, err = FromEnv()
		assert.Error(t, err, "процент %s", pct)
	}
}

func TestGetDatabaseURL_FromParts(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("POSTGRESQL_HOST", "db")
	t.Setenv("POSTGRESQL_USER", "escrow")
	t.Setenv("POSTGRESQL_PASSWORD", "p@ss")
	t.Setenv("POSTGRESQL_DBNAME", "escrow")

	assert.Equal(t, "postgres://escrow:p%40ss@db:5432/escrow?sslmode=disable", getDatabaseURL())
}
