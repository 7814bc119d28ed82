package storage

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/goccy/go-json"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testRecord() *types.ExecutionRecord {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return &types.ExecutionRecord{
		ExecutionID: "exec-1",
		Request: types.ExecutionRequest{
			PairID:            "pair-1",
			TargetMarketID:    "m-target",
			TargetPosition:    types.PositionYes,
			CoverMarketID:     "m-cover",
			CoverPosition:     types.PositionNo,
			AmountPerPosition: 10,
		},
		Result: types.TradeResult{
			Success:       false,
			Target:        types.LegOutcome{SplitTx: "0xaaa", ClobOrderID: "ord-1"},
			Cover:         types.LegOutcome{Error: "insufficient liquidity"},
			TotalSpent:    10,
			FinalBalances: types.Balances{POL: 1.5, USDCe: 80},
			Warnings:      []string{"UNHEDGED: target leg holds YES on m-target"},
			ExecutionID:   "exec-1",
			Status:        types.StatusPartial,
		},
		StartedAt:  started,
		FinishedAt: started.Add(20 * time.Second),
	}
}

func TestConsoleStorage_StoreExecution(t *testing.T) {
	var buf bytes.Buffer
	c := &ConsoleStorage{out: &buf, logger: zap.NewNop()}

	err := c.StoreExecution(context.Background(), testRecord())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "exec-1")
	assert.Contains(t, out, "m-target")
	assert.Contains(t, out, "ord-1")
	assert.Contains(t, out, "insufficient liquidity")
	assert.Contains(t, out, "Status:       partial")
	assert.Contains(t, out, "Total spent:  $10.00")
	assert.Contains(t, out, "WARNING: UNHEDGED")

	require.NoError(t, c.Close())
}

func TestPostgresStorage_StoreExecution(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := &PostgresStorage{db: db, logger: zap.NewNop()}
	rec := testRecord()

	mock.ExpectExec("INSERT INTO hedge_executions").
		WithArgs(
			"exec-1", "pair-1", "partial", false, 10.0,
			"m-target", "YES", "0xaaa", "ord-1", "",
			"m-cover", "NO", "", "", "insufficient liquidity",
			10.0, 1.5, 80.0, `["UNHEDGED: target leg holds YES on m-target"]`,
			rec.StartedAt, rec.FinishedAt,
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = p.StoreExecution(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_StoreExecutionError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := &PostgresStorage{db: db, logger: zap.NewNop()}

	mock.ExpectExec("INSERT INTO hedge_executions").
		WillReturnError(errors.New("connection reset"))

	err = p.StoreExecution(context.Background(), testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert execution")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStorage_EmptyWarnings(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	p := &PostgresStorage{db: db, logger: zap.NewNop()}
	rec := testRecord()
	rec.Result.Warnings = nil

	mock.ExpectExec("INSERT INTO hedge_executions").
		WithArgs(
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "[]",
			sqlmock.AnyArg(), sqlmock.AnyArg(),
		).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, p.StoreExecution(context.Background(), rec))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStorage_StoreExecution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hedge.db")

	s, err := NewSQLiteStorage(&SQLiteConfig{Path: path, Logger: zap.NewNop()})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.StoreExecution(ctx, testRecord()))

	second := testRecord()
	second.ExecutionID = "exec-2"
	second.Result.Status = types.StatusSuccess
	require.NoError(t, s.StoreExecution(ctx, second))

	partial, err := s.CountByStatus(ctx, types.StatusPartial)
	require.NoError(t, err)
	assert.Equal(t, 1, partial)

	success, err := s.CountByStatus(ctx, types.StatusSuccess)
	require.NoError(t, err)
	assert.Equal(t, 1, success)

	// execution_id is the primary key
	err = s.StoreExecution(ctx, testRecord())
	assert.Error(t, err)
}

func TestSQLiteStorage_ReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hedge.db")
	ctx := context.Background()

	s, err := NewSQLiteStorage(&SQLiteConfig{Path: path, Logger: zap.NewNop()})
	require.NoError(t, err)
	require.NoError(t, s.StoreExecution(ctx, testRecord()))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStorage(&SQLiteConfig{Path: path, Logger: zap.NewNop()})
	require.NoError(t, err)
	defer s.Close()

	n, err := s.CountByStatus(ctx, types.StatusPartial)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNewSQLiteStorage_RequiresPath(t *testing.T) {
	_, err := NewSQLiteStorage(&SQLiteConfig{Logger: zap.NewNop()})
	assert.Error(t, err)
}

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func TestKafkaStorage_StoreExecution(t *testing.T) {
	w := &fakeWriter{}
	k := newKafkaStorage(w, "hedge-executions", zap.NewNop())

	rec := testRecord()
	require.NoError(t, k.StoreExecution(context.Background(), rec))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "exec-1", string(msg.Key))
	assert.Equal(t, rec.FinishedAt, msg.Time)

	var decoded types.ExecutionRecord
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "pair-1", decoded.Request.PairID)
	assert.Equal(t, types.StatusPartial, decoded.Result.Status)
	assert.Equal(t, "ord-1", decoded.Result.Target.ClobOrderID)

	require.NoError(t, k.Close())
	assert.True(t, w.closed)
}

func TestKafkaStorage_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("broker unavailable")}
	k := newKafkaStorage(w, "hedge-executions", zap.NewNop())

	err := k.StoreExecution(context.Background(), testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "hedge-executions")
}

func TestNewKafkaStorage_Validation(t *testing.T) {
	_, err := NewKafkaStorage(&KafkaConfig{Topic: "t", Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewKafkaStorage(&KafkaConfig{Brokers: []string{"localhost:9092"}, Logger: zap.NewNop()})
	assert.Error(t, err)

	k, err := NewKafkaStorage(&KafkaConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "hedge-executions",
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)
	assert.NoError(t, k.Close())
}

func TestNew(t *testing.T) {
	s, err := New(&Config{Mode: "console", Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.IsType(t, &ConsoleStorage{}, s)

	s, err = New(&Config{
		Mode:   "sqlite",
		SQLite: &SQLiteConfig{Path: filepath.Join(t.TempDir(), "x.db")},
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStorage{}, s)
	require.NoError(t, s.Close())

	_, err = New(&Config{Mode: "postgres", Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = New(&Config{Mode: "mongo", Logger: zap.NewNop()})
	assert.Error(t, err)
}
