package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"go.uber.org/zap"
)

// Storage is the interface for journaling finished hedge executions.
type Storage interface {
	// StoreExecution persists one execution record.
	StoreExecution(ctx context.Context, record *types.ExecutionRecord) error

	// Close closes the storage connection.
	Close() error
}

// Config selects and configures a storage backend.
type Config struct {
	Mode     string // console, postgres, sqlite, kafka
	Postgres *PostgresConfig
	SQLite   *SQLiteConfig
	Kafka    *KafkaConfig
	Logger   *zap.Logger
}

// New creates the storage backend named by cfg.Mode.
func New(cfg *Config) (Storage, error) {
	switch strings.ToLower(cfg.Mode) {
	case "", "console":
		return NewConsoleStorage(cfg.Logger), nil
	case "postgres":
		if cfg.Postgres == nil {
			return nil, fmt.Errorf("postgres storage requires postgres config")
		}
		cfg.Postgres.Logger = cfg.Logger
		return NewPostgresStorage(cfg.Postgres)
	case "sqlite":
		if cfg.SQLite == nil {
			return nil, fmt.Errorf("sqlite storage requires sqlite config")
		}
		cfg.SQLite.Logger = cfg.Logger
		return NewSQLiteStorage(cfg.SQLite)
	case "kafka":
		if cfg.Kafka == nil {
			return nil, fmt.Errorf("kafka storage requires kafka config")
		}
		cfg.Kafka.Logger = cfg.Logger
		return NewKafkaStorage(cfg.Kafka)
	default:
		return nil, fmt.Errorf("unknown storage mode %q", cfg.Mode)
	}
}

// row is the flattened column set shared by the SQL backends.
type row struct {
	executionID       string
	pairID            string
	status            string
	success           bool
	amountPerPosition float64
	targetMarketID    string
	targetPosition    string
	targetSplitTx     string
	targetOrderID     string
	targetError       string
	coverMarketID     string
	coverPosition     string
	coverSplitTx      string
	coverOrderID      string
	coverError        string
	totalSpent        float64
	finalPOL          float64
	finalUSDCe        float64
	warnings          string
}

func flatten(record *types.ExecutionRecord) (row, error) {
	warnings := record.Result.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	encoded, err := json.Marshal(warnings)
	if err != nil {
		return row{}, fmt.Errorf("marshal warnings: %w", err)
	}

	r := row{
		executionID:       record.ExecutionID,
		pairID:            record.Request.PairID,
		status:            string(record.Result.Status),
		success:           record.Result.Success,
		amountPerPosition: record.Request.AmountPerPosition,
		targetMarketID:    record.Request.TargetMarketID,
		targetPosition:    string(record.Request.TargetPosition),
		targetSplitTx:     record.Result.Target.SplitTx,
		targetOrderID:     record.Result.Target.ClobOrderID,
		targetError:       record.Result.Target.Error,
		coverMarketID:     record.Request.CoverMarketID,
		coverPosition:     string(record.Request.CoverPosition),
		coverSplitTx:      record.Result.Cover.SplitTx,
		coverOrderID:      record.Result.Cover.ClobOrderID,
		coverError:        record.Result.Cover.Error,
		totalSpent:        record.Result.TotalSpent,
		finalPOL:          record.Result.FinalBalances.POL,
		finalUSDCe:        record.Result.FinalBalances.USDCe,
		warnings:          string(encoded),
	}

	return r, nil
}

func (r row) args() []interface{} {
	return []interface{}{
		r.executionID,
		r.pairID,
		r.status,
		r.success,
		r.amountPerPosition,
		r.targetMarketID,
		r.targetPosition,
		r.targetSplitTx,
		r.targetOrderID,
		r.targetError,
		r.coverMarketID,
		r.coverPosition,
		r.coverSplitTx,
		r.coverOrderID,
		r.coverError,
		r.totalSpent,
		r.finalPOL,
		r.finalUSDCe,
		r.warnings,
	}
}
