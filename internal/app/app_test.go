package app

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/db"
	"github.com/ignatzorin/escrow-backend/internal/logger"
)

func TestPolicyFromConfig(t *testing.T) {
	cfg := &config.Config{
		OrderAcceptanceWindow:    2 * time.Hour,
		OrderReviewPeriod:        48 * time.Hour,
		OrderAutoRelease:         false,
		WorkProofMaxRevisions:    5,
		WorkProofRevisionTimeout: time.Hour,
		WorkProofApprovalWindow:  24 * time.Hour,
	}
	p := PolicyFromConfig(cfg)

	assert.Equal(t, 2*time.Hour, p.AcceptanceWindow)
	assert.Equal(t, 48*time.Hour, p.ReviewPeriod)
	assert.False(t, p.AutoRelease)
	assert.Equal(t, 5, p.MaxRevisions)
	assert.Equal(t, time.Hour, p.RevisionTimeout)
	assert.Equal(t, 24*time.Hour, p.ApprovalWindow)
}

func TestNew_SQLiteWithLocalLock(t *testing.T) {
	logger.Discard()
	cfg := &config.Config{
		DatabaseDriver:        db.DriverSQLite,
		DatabaseURL:           fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
		SweepInterval:         time.Minute,
		SweepBatchSize:        10,
		OrderAcceptanceWindow: time.Hour,
		OrderReviewPeriod:     time.Hour,
	}

	a, err := New(context.Background(), cfg, Options{Registerer: prometheus.NewRegistry()})
	require.NoError(t, err)
	defer a.Close()

	report, err := a.Sweeper.SweepOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, report.LockHeld)
	assert.Zero(t, report.Processed())
}
