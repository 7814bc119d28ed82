package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS hedge_executions (
    execution_id        TEXT PRIMARY KEY,
    pair_id             TEXT,
    status              TEXT    NOT NULL,
    success             INTEGER NOT NULL DEFAULT 0,
    amount_per_position REAL    NOT NULL DEFAULT 0,
    target_market_id    TEXT    NOT NULL,
    target_position     TEXT    NOT NULL,
    target_split_tx     TEXT,
    target_order_id     TEXT,
    target_error        TEXT,
    cover_market_id     TEXT    NOT NULL,
    cover_position      TEXT    NOT NULL,
    cover_split_tx      TEXT,
    cover_order_id      TEXT,
    cover_error         TEXT,
    total_spent         REAL    NOT NULL DEFAULT 0,
    final_pol           REAL    NOT NULL DEFAULT 0,
    final_usdce         REAL    NOT NULL DEFAULT 0,
    warnings            TEXT    NOT NULL DEFAULT '[]',
    started_at          DATETIME NOT NULL,
    finished_at         DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_hedge_exec_pair     ON hedge_executions(pair_id);
CREATE INDEX IF NOT EXISTS idx_hedge_exec_finished ON hedge_executions(finished_at DESC);
`

const insertExecutionSQLite = `
	INSERT INTO hedge_executions (
		execution_id, pair_id, status, success, amount_per_position,
		target_market_id, target_position, target_split_tx, target_order_id, target_error,
		cover_market_id, cover_position, cover_split_tx, cover_order_id, cover_error,
		total_spent, final_pol, final_usdce, warnings,
		started_at, finished_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

// SQLiteStorage implements Storage on a local SQLite file.
type SQLiteStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// SQLiteConfig holds SQLite configuration.
type SQLiteConfig struct {
	Path   string
	Logger *zap.Logger
}

// NewSQLiteStorage opens (or creates) the database at cfg.Path and applies the schema.
func NewSQLiteStorage(cfg *SQLiteConfig) (*SQLiteStorage, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", cfg.Path, err)
	}
	// single writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	_, err = db.Exec(sqliteSchema)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}

	cfg.Logger.Info("sqlite-storage-initialized", zap.String("path", cfg.Path))

	return &SQLiteStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreExecution inserts one row into hedge_executions.
func (s *SQLiteStorage) StoreExecution(ctx context.Context, record *types.ExecutionRecord) error {
	start := time.Now()
	defer func() {
		StoreDuration.WithLabelValues("sqlite").Observe(time.Since(start).Seconds())
	}()

	r, err := flatten(record)
	if err != nil {
		StoreErrorsTotal.WithLabelValues("sqlite").Inc()
		return err
	}

	args := append(r.args(), record.StartedAt.UTC(), record.FinishedAt.UTC())

	_, err = s.db.ExecContext(ctx, insertExecutionSQLite, args...)
	if err != nil {
		StoreErrorsTotal.WithLabelValues("sqlite").Inc()
		return fmt.Errorf("insert execution: %w", err)
	}

	s.logger.Debug("execution-stored",
		zap.String("execution-id", record.ExecutionID),
		zap.String("status", string(record.Result.Status)))

	return nil
}

// CountByStatus returns how many journaled executions ended in the given status.
func (s *SQLiteStorage) CountByStatus(ctx context.Context, status types.ExecutionStatus) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hedge_executions WHERE status = ?`, string(status)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count executions: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *SQLiteStorage) Close() error {
	s.logger.Info("closing-sqlite-storage")
	return s.db.Close()
}
