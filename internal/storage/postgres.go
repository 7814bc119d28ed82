package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

const insertExecutionPostgres = `
	INSERT INTO hedge_executions (
		execution_id, pair_id, status, success, amount_per_position,
		target_market_id, target_position, target_split_tx, target_order_id, target_error,
		cover_market_id, cover_position, cover_split_tx, cover_order_id, cover_error,
		total_spent, final_pol, final_usdce, warnings,
		started_at, finished_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
`

// PostgresStorage implements Storage using PostgreSQL.
type PostgresStorage struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

// NewPostgresStorage creates a new PostgreSQL storage.
func NewPostgresStorage(cfg *PostgresConfig) (*PostgresStorage, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	cfg.Logger.Info("postgres-storage-initialized",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStorage{
		db:     db,
		logger: cfg.Logger,
	}, nil
}

// StoreExecution inserts one row into hedge_executions.
func (p *PostgresStorage) StoreExecution(ctx context.Context, record *types.ExecutionRecord) error {
	start := time.Now()
	defer func() {
		StoreDuration.WithLabelValues("postgres").Observe(time.Since(start).Seconds())
	}()

	r, err := flatten(record)
	if err != nil {
		StoreErrorsTotal.WithLabelValues("postgres").Inc()
		return err
	}

	args := append(r.args(), record.StartedAt, record.FinishedAt)

	_, err = p.db.ExecContext(ctx, insertExecutionPostgres, args...)
	if err != nil {
		StoreErrorsTotal.WithLabelValues("postgres").Inc()
		return fmt.Errorf("insert execution: %w", err)
	}

	p.logger.Debug("execution-stored",
		zap.String("execution-id", record.ExecutionID),
		zap.String("status", string(record.Result.Status)))

	return nil
}

// Close closes the database connection.
func (p *PostgresStorage) Close() error {
	p.logger.Info("closing-postgres-storage")
	return p.db.Close()
}
