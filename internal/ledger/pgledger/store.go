// Package pgledger stores committed transactions in PostgreSQL.
package pgledger

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/fintrack-dev/fintrack/internal/ledger"
	"github.com/fintrack-dev/fintrack/internal/model"
)

// DBTX is the subset of pgx used by Store.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	QueryRow(context.Context, string, ...any) pgx.Row
}

const createTable = `CREATE TABLE IF NOT EXISTS transactions (
	id          BIGSERIAL PRIMARY KEY,
	user_id     TEXT        NOT NULL,
	txn_date    DATE        NOT NULL,
	amount      NUMERIC     NOT NULL CHECK (amount >= 0),
	description TEXT        NOT NULL DEFAULT '',
	category    TEXT        NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const createIndex = `CREATE INDEX IF NOT EXISTS transactions_user_date_idx
	ON transactions (user_id, txn_date)`

const insertTxn = `INSERT INTO transactions (user_id, txn_date, amount, description, category)
VALUES ($1, $2::text::date, $3::text::numeric, $4, $5)
RETURNING id, created_at`

const selectRange = `SELECT id, user_id, txn_date, amount::text, description, category, created_at
FROM transactions
WHERE user_id = $1 AND txn_date BETWEEN $2::text::date AND $3::text::date
ORDER BY txn_date, id`

// Store is a Postgres-backed transaction store.
type Store struct {
	db DBTX
}

// NewStore wraps db.
func NewStore(db DBTX) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the transactions table and its lookup index.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range []string{createTable, createIndex} {
		if _, err := s.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensuring schema: %w", err)
		}
	}
	return nil
}

// Save inserts txn and returns it with its ID and creation time.
func (s *Store) Save(ctx context.Context, txn model.Transaction) (model.Transaction, error) {
	if err := ledger.Validate(txn); err != nil {
		return model.Transaction{}, err
	}

	var (
		id        int64
		createdAt time.Time
	)
	err := s.db.QueryRow(ctx, insertTxn,
		txn.UserID,
		txn.Date.String(),
		txn.Amount.String(),
		txn.Description,
		txn.Category,
	).Scan(&id, &createdAt)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("inserting transaction: %w", err)
	}

	txn.ID = strconv.FormatInt(id, 10)
	txn.CreatedAt = createdAt.UTC()
	return txn, nil
}

// FindByUserAndDateRange returns userID's transactions dated within
// [from, to], ordered by date.
func (s *Store) FindByUserAndDateRange(ctx context.Context, userID string, from, to civil.Date) ([]model.Transaction, error) {
	rows, err := s.db.Query(ctx, selectRange, userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("querying transactions: %w", err)
	}
	defer rows.Close()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating transactions: %w", err)
	}
	return txns, nil
}

func scanTransaction(rows pgx.Rows) (model.Transaction, error) {
	var (
		id        int64
		txn       model.Transaction
		txnDate   time.Time
		amount    string
		createdAt time.Time
	)
	if err := rows.Scan(&id, &txn.UserID, &txnDate, &amount, &txn.Description, &txn.Category, &createdAt); err != nil {
		return model.Transaction{}, fmt.Errorf("scanning transaction: %w", err)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("parsing amount %q: %w", amount, err)
	}

	txn.ID = strconv.FormatInt(id, 10)
	txn.Date = civil.DateOf(txnDate)
	txn.Amount = d
	txn.CreatedAt = createdAt.UTC()
	return txn, nil
}
