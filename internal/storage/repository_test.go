package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cashcast/internal/core"
	"cashcast/internal/log"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func tx(date string, kind core.TxKind, category string, cents int64, account *int64) core.Transaction {
	d, err := core.ParseDay(date)
	if err != nil {
		panic(err)
	}
	return core.Transaction{Date: d, Kind: kind, Category: category, Amount: core.Money{Cents: cents}, AccountID: account}
}

func TestRepository_Totals(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	acct := int64(7)

	for _, tr := range []core.Transaction{
		tx("2025-01-01", core.KindIncome, "", 100000, &acct),
		tx("2025-01-01", core.KindExpense, "Food", 1250, &acct),
		tx("2025-01-01", core.KindExpense, "Food", 750, nil),
		tx("2025-01-03", core.KindExpense, "Rent", 50000, &acct),
	} {
		_, err := repo.AddTransaction(ctx, tr)
		require.NoError(t, err)
	}
	late := tx("2025-01-31", core.KindExpense, "Rent", 100, nil)
	late.Competency = "2025-02"
	_, err := repo.AddTransaction(ctx, late)
	require.NoError(t, err)

	daily, err := repo.DailyTotals(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []core.ObservationRow{
		{Period: "2025-01-01", Income: 1000, Expense: 20},
		{Period: "2025-01-03", Income: 0, Expense: 500},
		{Period: "2025-01-31", Income: 0, Expense: 1},
	}, daily)

	scoped, err := repo.DailyTotals(ctx, &acct)
	require.NoError(t, err)
	require.Len(t, scoped, 2)
	assert.Equal(t, 12.5, scoped[0].Expense)

	monthly, err := repo.MonthlyTotals(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, []core.ObservationRow{
		{Period: "2025-01", Income: 1000, Expense: 520},
		{Period: "2025-02", Income: 0, Expense: 1},
	}, monthly)

	cats, err := repo.CategoryDailyExpense(ctx, nil, "2025-01-02")
	require.NoError(t, err)
	assert.Equal(t, []core.CategoryRow{
		{Date: "2025-01-03", Category: "Rent", Expense: 500},
		{Date: "2025-01-31", Category: "Rent", Expense: 1},
	}, cats)

	all, err := repo.CategoryDailyExpense(ctx, nil, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRepository_AddTransactionValidates(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.AddTransaction(context.Background(), tx("2025-01-01", core.KindExpense, "", 100, nil))
	assert.ErrorIs(t, err, core.ErrEmptyCategory)
}

func TestRepository_PayloadRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	_, err := repo.LoadPayload(ctx, "daily:all:lags=14")
	assert.True(t, errors.Is(err, ErrNotFound))

	p := core.TrainingPayload{
		RunID:       "run-1",
		Basis:       core.BasisDaily,
		Granularity: core.Daily,
		TrainedAt:   time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Lags:        14,
		History:     []core.HistoryPoint{{Period: "2025-01-01", Income: 1, Expense: 2, Net: -1}},
		Targets: map[string]core.TrainedTarget{
			core.TargetIncome: {Algo: core.AlgoLinear, ModelB64: "abc", MAEVal: 1.5, BaselineMAEVal: 2, ResidStd: 0.5},
		},
	}
	require.NoError(t, repo.SavePayload(ctx, "daily:all:lags=14", p))

	got, err := repo.LoadPayload(ctx, "daily:all:lags=14")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	p.RunID = "run-2"
	p.Lags = 10
	require.NoError(t, repo.SavePayload(ctx, "daily:all:lags=14", p))
	require.NoError(t, repo.SavePayload(ctx, "monthly:all:lags=6", core.TrainingPayload{Granularity: core.Monthly}))

	got, err = repo.LoadPayload(ctx, "daily:all:lags=14")
	require.NoError(t, err)
	assert.Equal(t, "run-2", got.RunID)
	assert.Equal(t, 10, got.Lags)

	names, err := repo.ListPayloadNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"daily:all:lags=14", "monthly:all:lags=6"}, names)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m.db")
	first, err := RunMigrations(path, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, uint(2), first)

	second, err := RunMigrations(path, log.Discard())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
