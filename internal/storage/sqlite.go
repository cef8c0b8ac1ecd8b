// Package storage provides a SQLite-backed transaction store.
//
// The database is opened in shared in-memory mode so the ledger keeps its
// process-lifetime semantics while going through a real SQL engine.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ledger/internal/core"
	"ledger/internal/ledger"
	"ledger/internal/log"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements ledger.Store on a SQLite database.
type SQLiteStore struct {
	db      *sql.DB
	logger  *log.Logger
	version uint
}

var _ ledger.Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens dsn, keeps one connection alive for the lifetime of
// the store and applies migrations.
func NewSQLiteStore(dsn string, logger *log.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	// A shared in-memory database is dropped when its last connection closes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger = logger.WithComponent(log.ComponentStorage)
	version, err := migrateSchema(dsn, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{
		db:      db,
		logger:  logger,
		version: version,
	}, nil
}

// SchemaVersion is the migration version applied when the store was opened.
func (s *SQLiteStore) SchemaVersion() uint {
	return s.version
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const selectColumns = `SELECT id, text, amount, kind, created_at FROM transactions`

func (s *SQLiteStore) All(ctx context.Context) ([]core.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY position`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return out, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (core.Transaction, bool, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, false, nil
	}
	if err != nil {
		return core.Transaction{}, false, err
	}
	return tx, true, nil
}

func (s *SQLiteStore) Append(ctx context.Context, tx core.Transaction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, position, text, amount, kind, created_at)
		 VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM transactions), ?, ?, ?, ?)`,
		tx.ID, tx.Text, tx.Amount.String(), string(tx.Kind), tx.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("insert transaction %d: %w", tx.ID, err)
	}

	s.logger.DebugContext(ctx, "Transaction inserted",
		log.FieldTxID, tx.ID,
		log.FieldAmount, tx.Amount.String())
	return nil
}

func (s *SQLiteStore) Replace(ctx context.Context, tx core.Transaction) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET text = ?, amount = ?, kind = ?, created_at = ? WHERE id = ?`,
		tx.Text, tx.Amount.String(), string(tx.Kind), tx.CreatedAt.UnixNano(), tx.ID)
	if err != nil {
		return false, fmt.Errorf("update transaction %d: %w", tx.ID, err)
	}
	return affected(res)
}

func (s *SQLiteStore) Remove(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete transaction %d: %w", id, err)
	}
	return affected(res)
}

func (s *SQLiteStore) MaxID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM transactions`).Scan(&id); err != nil {
		return 0, fmt.Errorf("query max id: %w", err)
	}
	return id, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (core.Transaction, error) {
	var (
		tx        core.Transaction
		amount    string
		kind      string
		createdAt int64
	)
	if err := row.Scan(&tx.ID, &tx.Text, &amount, &kind, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Transaction{}, err
		}
		return core.Transaction{}, fmt.Errorf("scan transaction: %w", err)
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("parse stored amount %q: %w", amount, err)
	}
	tx.Amount = d
	tx.Kind = core.Kind(kind)
	tx.CreatedAt = time.Unix(0, createdAt).UTC()
	return tx, nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
