package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/escrow-backend/internal/app"
	"github.com/ignatzorin/escrow-backend/internal/config"
	"github.com/ignatzorin/escrow-backend/internal/money"
	"github.com/ignatzorin/escrow-backend/internal/service"
)

func setupEnv(t *testing.T) {
	t.Helper()
	t.Setenv("APP_ENV", "development")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_URL", filepath.Join(t.TempDir(), "escrow.db"))
	t.Setenv("REDIS_ADDR", "")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func seedDeposit(t *testing.T, user uuid.UUID, amount string) {
	t.Helper()
	cfg, err := config.FromEnv()
	require.NoError(t, err)
	a, err := app.New(context.Background(), cfg, app.Options{})
	require.NoError(t, err)
	defer a.Close()

	_, applied, err := a.Ledger.Deposit(context.Background(), user, money.MustParse(amount), uuid.NewString())
	require.NoError(t, err)
	require.True(t, applied)
}

func TestMigrate(t *testing.T) {
	setupEnv(t)
	out, err := run(t, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "миграции применены")

	_, err = run(t, "migrate")
	assert.NoError(t, err, "повторный запуск ничего не ломает")
}

func TestBalanceAndTransactions(t *testing.T) {
	setupEnv(t)
	user := uuid.New()
	seedDeposit(t, user, "25.00")

	out, err := run(t, "balance", user.String())
	require.NoError(t, err)
	assert.Contains(t, out, "25.00")

	out, err = run(t, "transactions", user.String())
	require.NoError(t, err)
	assert.Contains(t, out, "deposit:")

	out, err = run(t, "--json", "transactions", user.String())
	require.NoError(t, err)
	var txs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &txs))
	assert.Len(t, txs, 1)

	_, err = run(t, "balance", "not-a-uuid")
	assert.Error(t, err)
}

func TestSweep(t *testing.T) {
	setupEnv(t)
	t.Setenv("SWEEP_INTERVAL", time.Minute.String())

	out, err := run(t, "sweep")
	require.NoError(t, err)
	assert.Contains(t, out, service.RuleAcceptanceTimeout)
	assert.Contains(t, out, service.RuleApprovalTimeout)

	out, err = run(t, "--json", "sweep")
	require.NoError(t, err)
	var report service.SweepReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.True(t, report.LockHeld)
}
