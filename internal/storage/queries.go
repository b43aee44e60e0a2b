package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type Queries struct {
	db DBTX
}

const createTransaction = `-- name: CreateTransaction :one
INSERT INTO transactions (date, competency, kind, category, description, amount_cents, account_id)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING id
`

type CreateTransactionParams struct {
	Date        string
	Competency  string
	Kind        string
	Category    string
	Description string
	AmountCents int64
	AccountID   sql.NullInt64
}

func (q *Queries) CreateTransaction(ctx context.Context, arg CreateTransactionParams) (int64, error) {
	row := q.db.QueryRowContext(ctx, createTransaction,
		arg.Date,
		arg.Competency,
		arg.Kind,
		arg.Category,
		arg.Description,
		arg.AmountCents,
		arg.AccountID,
	)
	var id int64
	err := row.Scan(&id)
	return id, err
}

const dailyTotals = `-- name: DailyTotals :many
SELECT date,
       CAST(COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents END), 0) AS INTEGER) AS income_cents,
       CAST(COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents END), 0) AS INTEGER) AS expense_cents
FROM transactions
WHERE (?1 IS NULL OR account_id = ?1)
GROUP BY date
ORDER BY date
`

const monthlyTotals = `-- name: MonthlyTotals :many
SELECT competency,
       CAST(COALESCE(SUM(CASE WHEN kind = 'income' THEN amount_cents END), 0) AS INTEGER) AS income_cents,
       CAST(COALESCE(SUM(CASE WHEN kind = 'expense' THEN amount_cents END), 0) AS INTEGER) AS expense_cents
FROM transactions
WHERE (?1 IS NULL OR account_id = ?1)
GROUP BY competency
ORDER BY competency
`

type PeriodTotalsRow struct {
	Period       string
	IncomeCents  int64
	ExpenseCents int64
}

func (q *Queries) DailyTotals(ctx context.Context, accountID sql.NullInt64) ([]PeriodTotalsRow, error) {
	return q.periodTotals(ctx, dailyTotals, accountID)
}

func (q *Queries) MonthlyTotals(ctx context.Context, accountID sql.NullInt64) ([]PeriodTotalsRow, error) {
	return q.periodTotals(ctx, monthlyTotals, accountID)
}

func (q *Queries) periodTotals(ctx context.Context, query string, accountID sql.NullInt64) ([]PeriodTotalsRow, error) {
	rows, err := q.db.QueryContext(ctx, query, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []PeriodTotalsRow
	for rows.Next() {
		var i PeriodTotalsRow
		if err := rows.Scan(&i.Period, &i.IncomeCents, &i.ExpenseCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const categoryDailyExpense = `-- name: CategoryDailyExpense :many
SELECT date, category, CAST(SUM(amount_cents) AS INTEGER) AS expense_cents
FROM transactions
WHERE kind = 'expense'
  AND (?1 IS NULL OR account_id = ?1)
  AND (?2 = '' OR date >= ?2)
GROUP BY date, category
ORDER BY date, category
`

type CategoryDailyExpenseRow struct {
	Date         string
	Category     string
	ExpenseCents int64
}

func (q *Queries) CategoryDailyExpense(ctx context.Context, accountID sql.NullInt64, since string) ([]CategoryDailyExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, categoryDailyExpense, accountID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []CategoryDailyExpenseRow
	for rows.Next() {
		var i CategoryDailyExpenseRow
		if err := rows.Scan(&i.Date, &i.Category, &i.ExpenseCents); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const upsertPayload = `-- name: UpsertPayload :exec
INSERT INTO model_payloads (name, granularity, payload, run_id, trained_at, updated_at)
VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
ON CONFLICT (name) DO UPDATE SET
    granularity = excluded.granularity,
    payload     = excluded.payload,
    run_id      = excluded.run_id,
    trained_at  = excluded.trained_at,
    updated_at  = CURRENT_TIMESTAMP
`

type UpsertPayloadParams struct {
	Name        string
	Granularity string
	Payload     string
	RunID       string
	TrainedAt   time.Time
}

func (q *Queries) UpsertPayload(ctx context.Context, arg UpsertPayloadParams) error {
	_, err := q.db.ExecContext(ctx, upsertPayload,
		arg.Name,
		arg.Granularity,
		arg.Payload,
		arg.RunID,
		arg.TrainedAt,
	)
	return err
}

const getPayload = `-- name: GetPayload :one
SELECT payload FROM model_payloads WHERE name = ?
`

func (q *Queries) GetPayload(ctx context.Context, name string) (string, error) {
	row := q.db.QueryRowContext(ctx, getPayload, name)
	var payload string
	err := row.Scan(&payload)
	return payload, err
}

const listPayloadNames = `-- name: ListPayloadNames :many
SELECT name FROM model_payloads ORDER BY name
`

func (q *Queries) ListPayloadNames(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listPayloadNames)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		items = append(items, name)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}
