package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cashcast/internal/core"
	"cashcast/internal/log"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no payload is stored under a name.
var ErrNotFound = errors.New("payload not found")

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	if _, err := RunMigrations(dbPath, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	repo := &SQLiteRepository{
		db:      db,
		queries: New(db),
		logger:  logger,
	}

	return repo, nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// AddTransaction stores one validated transaction and returns its ID. The competency
// month defaults to the month of the transaction date.
func (r *SQLiteRepository) AddTransaction(ctx context.Context, t core.Transaction) (int64, error) {
	if err := t.Validate(); err != nil {
		return 0, fmt.Errorf("validate transaction: %w", err)
	}
	competency := t.Competency
	if competency == "" {
		competency = core.FormatPeriod(core.Monthly, t.Date)
	}

	id, err := r.queries.CreateTransaction(ctx, CreateTransactionParams{
		Date:        t.Date.String(),
		Competency:  competency,
		Kind:        string(t.Kind),
		Category:    t.Category,
		Description: t.Description,
		AmountCents: t.Amount.Cents,
		AccountID:   nullInt(t.AccountID),
	})
	if err != nil {
		return 0, fmt.Errorf("create transaction: %w", err)
	}

	r.logger.DebugContext(ctx, "Transaction saved",
		"id", id,
		"kind", string(t.Kind),
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())

	return id, nil
}

// DailyTotals aggregates income and expense per cash date.
func (r *SQLiteRepository) DailyTotals(ctx context.Context, accountID *int64) ([]core.ObservationRow, error) {
	rows, err := r.queries.DailyTotals(ctx, nullInt(accountID))
	if err != nil {
		return nil, fmt.Errorf("get daily totals: %w", err)
	}
	return toObservations(rows), nil
}

// MonthlyTotals aggregates income and expense per competency month.
func (r *SQLiteRepository) MonthlyTotals(ctx context.Context, accountID *int64) ([]core.ObservationRow, error) {
	rows, err := r.queries.MonthlyTotals(ctx, nullInt(accountID))
	if err != nil {
		return nil, fmt.Errorf("get monthly totals: %w", err)
	}
	return toObservations(rows), nil
}

// CategoryDailyExpense returns expense per day and category on or after since
// (YYYY-MM-DD); an empty since returns everything.
func (r *SQLiteRepository) CategoryDailyExpense(ctx context.Context, accountID *int64, since string) ([]core.CategoryRow, error) {
	rows, err := r.queries.CategoryDailyExpense(ctx, nullInt(accountID), since)
	if err != nil {
		return nil, fmt.Errorf("get category daily expense: %w", err)
	}
	out := make([]core.CategoryRow, len(rows))
	for i, row := range rows {
		out[i] = core.CategoryRow{
			Date:     row.Date,
			Category: row.Category,
			Expense:  core.CentsToFloat(row.ExpenseCents),
		}
	}
	return out, nil
}

// SavePayload replaces the payload stored under name in a single statement, so
// readers see either the previous payload or the new one.
func (r *SQLiteRepository) SavePayload(ctx context.Context, name string, p core.TrainingPayload) error {
	blob, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	err = r.queries.UpsertPayload(ctx, UpsertPayloadParams{
		Name:        name,
		Granularity: string(p.Granularity),
		Payload:     string(blob),
		RunID:       p.RunID,
		TrainedAt:   p.TrainedAt,
	})
	if err != nil {
		return fmt.Errorf("upsert payload %s: %w", name, err)
	}

	r.logger.InfoContext(ctx, "Payload saved",
		log.NewFields().
			WithModel(name, string(p.Granularity)).
			WithOperation(log.OpSave).
			ToSlice()...)
	return nil
}

// LoadPayload returns the payload stored under name or ErrNotFound.
func (r *SQLiteRepository) LoadPayload(ctx context.Context, name string) (core.TrainingPayload, error) {
	blob, err := r.queries.GetPayload(ctx, name)
	if errors.Is(err, sql.ErrNoRows) {
		return core.TrainingPayload{}, fmt.Errorf("load payload %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return core.TrainingPayload{}, fmt.Errorf("load payload %s: %w", name, err)
	}
	var p core.TrainingPayload
	if err := json.Unmarshal([]byte(blob), &p); err != nil {
		return core.TrainingPayload{}, fmt.Errorf("decode payload %s: %w", name, err)
	}
	return p, nil
}

func (r *SQLiteRepository) ListPayloadNames(ctx context.Context) ([]string, error) {
	names, err := r.queries.ListPayloadNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list payload names: %w", err)
	}
	return names, nil
}

func toObservations(rows []PeriodTotalsRow) []core.ObservationRow {
	out := make([]core.ObservationRow, len(rows))
	for i, row := range rows {
		out[i] = core.ObservationRow{
			Period:  row.Period,
			Income:  core.CentsToFloat(row.IncomeCents),
			Expense: core.CentsToFloat(row.ExpenseCents),
		}
	}
	return out
}

func nullInt(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}
