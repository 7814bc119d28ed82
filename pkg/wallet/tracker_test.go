package wallet

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	logger := zap.NewNop()
	client, err := NewClient(newFakeBackend(), "", logger)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	tests := []struct {
		name    string
		cfg     *Config
		wantErr bool
	}{
		{
			name: "valid_config",
			cfg: &Config{
				Client:       client,
				Address:      testAddress,
				PollInterval: 1 * time.Minute,
				Logger:       logger,
			},
			wantErr: false,
		},
		{
			name:    "nil_config",
			cfg:     nil,
			wantErr: true,
		},
		{
			name: "nil_logger",
			cfg: &Config{
				Client:       client,
				Address:      testAddress,
				PollInterval: 1 * time.Minute,
			},
			wantErr: true,
		},
		{
			name: "nil_client",
			cfg: &Config{
				Address:      testAddress,
				PollInterval: 1 * time.Minute,
				Logger:       logger,
			},
			wantErr: true,
		},
		{
			name: "zero_poll_interval",
			cfg: &Config{
				Client:  client,
				Address: testAddress,
				Logger:  logger,
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker, err := New(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tracker.pollInterval != tt.cfg.PollInterval {
				t.Errorf("New() pollInterval = %v, want %v", tracker.pollInterval, tt.cfg.PollInterval)
			}
		})
	}
}

func newPositionsServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"size":10,"initialValue":4,"currentValue":5,"slug":"a","outcome":"No"},
			{"size":20,"initialValue":8,"currentValue":7,"slug":"b","outcome":"Yes"}
		]`))
	}))
	t.Cleanup(server.Close)

	return server
}

func TestTracker_Poll(t *testing.T) {
	server := newPositionsServer(t)

	client, err := NewClient(newFakeBackend(), server.URL, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	tracker, err := New(&Config{
		Client:       client,
		Address:      testAddress,
		PollInterval: time.Minute,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	err = tracker.poll(context.Background())
	if err != nil {
		t.Fatalf("poll() error = %v", err)
	}

	if got := testutil.ToFloat64(USDCeBalance); got != 100.25 {
		t.Errorf("USDCeBalance = %v, want 100.25", got)
	}
	if got := testutil.ToFloat64(POLBalance); got != 2.5 {
		t.Errorf("POLBalance = %v, want 2.5", got)
	}
	if got := testutil.ToFloat64(CTFAllowance); got != 50 {
		t.Errorf("CTFAllowance = %v, want 50", got)
	}
	if got := testutil.ToFloat64(ActivePositions); got != 2 {
		t.Errorf("ActivePositions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(TotalPositionValue); got != 12 {
		t.Errorf("TotalPositionValue = %v, want 12", got)
	}
	if got := testutil.ToFloat64(TotalPositionCost); got != 12 {
		t.Errorf("TotalPositionCost = %v, want 12", got)
	}
}

func TestTracker_PollBalanceError(t *testing.T) {
	backend := newFakeBackend()
	backend.balanceErr = errors.New("rpc down")

	client, err := NewClient(backend, "", zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	tracker, err := New(&Config{
		Client:       client,
		Address:      testAddress,
		PollInterval: time.Minute,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	if err := tracker.poll(context.Background()); err == nil {
		t.Error("expected poll error")
	}
}

func TestTracker_Run_ContextCancellation(t *testing.T) {
	server := newPositionsServer(t)

	client, err := NewClient(newFakeBackend(), server.URL, zap.NewNop())
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	tracker, err := New(&Config{
		Client:       client,
		Address:      testAddress,
		PollInterval: 50 * time.Millisecond,
		Logger:       zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err = tracker.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Run() error = %v, want context.DeadlineExceeded", err)
	}

	if testutil.ToFloat64(LastUpdateTimestamp) == 0 {
		t.Error("expected at least one successful poll")
	}
}
