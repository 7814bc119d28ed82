package testutil

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mselser95/polymarket-hedge/pkg/types"
)

// MockGammaAPI is a mock HTTP server that simulates the Polymarket Gamma API.
type MockGammaAPI struct {
	*httptest.Server
	Markets  []*types.Market
	Requests int
	mu       sync.RWMutex
}

// NewMockGammaAPI creates a new mock Gamma API server serving /markets/{id}.
func NewMockGammaAPI(markets []*types.Market) *MockGammaAPI {
	mock := &MockGammaAPI{
		Markets: markets,
	}

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mock.mu.Lock()
		mock.Requests++
		mock.mu.Unlock()

		mock.mu.RLock()
		defer mock.mu.RUnlock()

		id, ok := strings.CutPrefix(r.URL.Path, "/markets/")
		if !ok {
			http.NotFound(w, r)
			return
		}

		for _, m := range mock.Markets {
			if m.ID == id {
				w.Header().Set("Content-Type", "application/json")
				_ = json.NewEncoder(w).Encode(GammaPayload(m))
				return
			}
		}

		http.NotFound(w, r)
	})

	mock.Server = httptest.NewServer(handler)
	return mock
}

// RequestCount returns how many requests the server handled.
func (m *MockGammaAPI) RequestCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Requests
}

// GammaPayload renders a market the way the Gamma API encodes it.
func GammaPayload(m *types.Market) map[string]interface{} {
	return map[string]interface{}{
		"id":                    m.ID,
		"question":              m.Question,
		"slug":                  m.Slug,
		"conditionId":           m.ConditionID,
		"closed":                m.Closed,
		"active":                m.Active,
		"negRisk":               m.NegRisk,
		"orderMinSize":          m.OrderMinSize,
		"orderPriceMinTickSize": m.OrderTickSize,
		"outcomes":              m.Outcomes,
		"clobTokenIds":          m.ClobTokens,
		"outcomePrices":         m.OutcomePricesJSON,
	}
}

// MockAccount is a static signing identity.
type MockAccount struct {
	Unlocked   bool
	Addr       common.Address
	PrivateKey *ecdsa.PrivateKey
}

// Key returns PrivateKey, or ErrSessionLocked when not unlocked.
func (m *MockAccount) Key() (*ecdsa.PrivateKey, error) {
	if !m.Unlocked {
		return nil, types.ErrSessionLocked
	}
	return m.PrivateKey, nil
}

// Address returns the configured address.
func (m *MockAccount) Address() common.Address { return m.Addr }

// MockBalances returns queued balance snapshots in order, repeating the last one.
type MockBalances struct {
	Snapshots []types.Balances
	Errs      []error
	Calls     int
	mu        sync.Mutex
}

// Snapshot returns the next queued snapshot or error.
func (m *MockBalances) Snapshot(ctx context.Context, address common.Address) (types.Balances, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := m.Calls
	m.Calls++

	if i < len(m.Errs) && m.Errs[i] != nil {
		return types.Balances{}, m.Errs[i]
	}

	if len(m.Snapshots) == 0 {
		return types.Balances{}, errors.New("no snapshot configured")
	}
	if i >= len(m.Snapshots) {
		i = len(m.Snapshots) - 1
	}

	return m.Snapshots[i], nil
}

// CallCount returns the number of Snapshot calls.
func (m *MockBalances) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls
}

// MockSplitter records split calls and returns per-market results.
type MockSplitter struct {
	TxHashes map[string]string
	Errors   map[string]error
	Panics   map[string]bool
	// Block makes Split wait for context cancellation on the listed markets.
	Block map[string]bool
	Calls []string
	Keys  []*ecdsa.PrivateKey
	mu    sync.Mutex
}

// Split returns the configured tx hash or error for marketID.
func (m *MockSplitter) Split(ctx context.Context, key *ecdsa.PrivateKey, marketID string, amount float64) (string, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, marketID)
	m.Keys = append(m.Keys, key)
	m.mu.Unlock()

	if m.Panics[marketID] {
		panic("splitter exploded")
	}

	if m.Block[marketID] {
		<-ctx.Done()
		return "", ctx.Err()
	}

	if err, ok := m.Errors[marketID]; ok {
		return "", err
	}

	if tx, ok := m.TxHashes[marketID]; ok {
		return tx, nil
	}

	return "0xsplit-" + marketID, nil
}

// CallsSnapshot returns a copy of the recorded calls.
func (m *MockSplitter) CallsSnapshot() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

// KeysSnapshot returns the signing keys of the recorded calls.
func (m *MockSplitter) KeysSnapshot() []*ecdsa.PrivateKey {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*ecdsa.PrivateKey(nil), m.Keys...)
}

// SellCall is one recorded Sell invocation.
type SellCall struct {
	Key      *ecdsa.PrivateKey
	MarketID string
	Outcome  types.Position
	Amount   float64
}

// MockSeller records sell calls and returns per-market results.
type MockSeller struct {
	Orders map[string]types.SellOrder
	Errors map[string]error
	Panics map[string]bool
	Calls  []SellCall
	mu     sync.Mutex
}

// Sell returns the configured order or error for marketID.
func (m *MockSeller) Sell(
	ctx context.Context,
	key *ecdsa.PrivateKey,
	marketID string,
	outcome types.Position,
	amount float64,
) (types.SellOrder, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, SellCall{Key: key, MarketID: marketID, Outcome: outcome, Amount: amount})
	m.mu.Unlock()

	if m.Panics[marketID] {
		panic("seller exploded")
	}

	if err, ok := m.Errors[marketID]; ok {
		return types.SellOrder{}, err
	}

	if order, ok := m.Orders[marketID]; ok {
		return order, nil
	}

	return types.SellOrder{OrderID: "order-" + marketID, Price: 0.5, Status: "live"}, nil
}

// CallsSnapshot returns a copy of the recorded calls.
func (m *MockSeller) CallsSnapshot() []SellCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SellCall(nil), m.Calls...)
}

// MockPairs is an in-memory pair source.
type MockPairs struct {
	Pairs map[string]*types.HedgePair
}

// Get returns the pair or an error when unknown.
func (m *MockPairs) Get(ctx context.Context, pairID string) (*types.HedgePair, error) {
	pair, ok := m.Pairs[pairID]
	if !ok {
		return nil, errors.New("pair not found")
	}
	return pair, nil
}

// MockRecorder is an in-memory execution journal.
type MockRecorder struct {
	Records []*types.ExecutionRecord
	Err     error
	mu      sync.Mutex
}

// StoreExecution appends the record.
func (m *MockRecorder) StoreExecution(ctx context.Context, record *types.ExecutionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Records = append(m.Records, record)
	return m.Err
}

// Count returns the number of stored records.
func (m *MockRecorder) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Records)
}

// MockObserver collects published events.
type MockObserver struct {
	Events []types.ExecutionEvent
	mu     sync.Mutex
}

// Publish appends the event.
func (m *MockObserver) Publish(event types.ExecutionEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, event)
}

// Stages returns the stage names in publication order.
func (m *MockObserver) Stages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	stages := make([]string, 0, len(m.Events))
	for _, e := range m.Events {
		stages = append(stages, e.Stage)
	}
	return stages
}
