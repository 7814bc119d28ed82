package markets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mselser95/polymarket-hedge/internal/testutil"
	"github.com/mselser95/polymarket-hedge/pkg/cache"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClobServer(t *testing.T, tickSize string, minSize string) (*httptest.Server, *int32) {
	t.Helper()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/tick-size":
			_, _ = w.Write([]byte(`{"minimum_tick_size":` + tickSize + `}`))
		case "/book":
			_, _ = w.Write([]byte(`{"min_order_size":"` + minSize + `"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func newTestResolver(t *testing.T, gammaURL, clobURL string, c cache.Cache) *Resolver {
	t.Helper()

	client, err := NewClient(&ClientConfig{
		GammaURL: gammaURL,
		CLOBURL:  clobURL,
		Timeout:  5 * time.Second,
		Logger:   zap.NewNop(),
	})
	require.NoError(t, err)

	resolver, err := NewResolver(&ResolverConfig{
		Client: client,
		Cache:  c,
		TTL:    time.Hour,
		Logger: zap.NewNop(),
	})
	require.NoError(t, err)

	return resolver
}

func TestClient_FetchMarket(t *testing.T) {
	gamma := testutil.NewMockGammaAPI([]*types.Market{
		testutil.CreateTestMarket("100", "Will it rain?", 0.4),
	})
	defer gamma.Close()

	client, err := NewClient(&ClientConfig{GammaURL: gamma.URL, Logger: zap.NewNop()})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		market, err := client.FetchMarket(context.Background(), "100")
		require.NoError(t, err)

		assert.Equal(t, "Will it rain?", market.Question)
		require.Len(t, market.Tokens, 2)
		assert.Equal(t, "1001", market.Tokens[0].TokenID)
		assert.InDelta(t, 0.4, market.Tokens[0].Price, 1e-9)
		assert.InDelta(t, 0.6, market.GetTokenByOutcome(types.PositionNo).Price, 1e-9)
	})

	t.Run("not-found", func(t *testing.T) {
		_, err := client.FetchMarket(context.Background(), "999")
		assert.True(t, errors.Is(err, ErrMarketNotFound))
	})
}

func TestClient_FetchTickSize(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		status  int
		want    float64
		wantErr bool
	}{
		{name: "valid", body: `{"minimum_tick_size":0.01}`, status: http.StatusOK, want: 0.01},
		{name: "high-precision", body: `{"minimum_tick_size":0.001}`, status: http.StatusOK, want: 0.001},
		{name: "zero", body: `{"minimum_tick_size":0}`, status: http.StatusOK, wantErr: true},
		{name: "api-error", status: http.StatusNotFound, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "tok-1", r.URL.Query().Get("token_id"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(&ClientConfig{CLOBURL: server.URL, Logger: zap.NewNop()})
			require.NoError(t, err)

			got, err := client.FetchTickSize(context.Background(), "tok-1")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestClient_FetchMinOrderSize(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		want   float64
	}{
		{name: "reported", body: `{"min_order_size":"15"}`, status: http.StatusOK, want: 15},
		{name: "missing-field", body: `{}`, status: http.StatusOK, want: 5},
		{name: "malformed", body: `not json`, status: http.StatusOK, want: 5},
		{name: "book-unavailable", status: http.StatusNotFound, want: 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(&ClientConfig{CLOBURL: server.URL, Logger: zap.NewNop()})
			require.NoError(t, err)

			got, err := client.FetchMinOrderSize(context.Background(), "tok-1")
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestResolver_FillsTradingRules(t *testing.T) {
	market := testutil.CreateTestMarket("100", "Will it rain?", 0.4)
	market.OrderTickSize = 0
	market.OrderMinSize = 0

	gamma := testutil.NewMockGammaAPI([]*types.Market{market})
	defer gamma.Close()
	clob, _ := newClobServer(t, "0.001", "20")

	resolver := newTestResolver(t, gamma.URL, clob.URL, nil)

	got, err := resolver.Resolve(context.Background(), "100")
	require.NoError(t, err)

	assert.InDelta(t, 0.001, got.OrderTickSize, 1e-12)
	assert.InDelta(t, 20, got.OrderMinSize, 1e-12)
}

func TestResolver_KeepsGammaTradingRules(t *testing.T) {
	gamma := testutil.NewMockGammaAPI([]*types.Market{
		testutil.CreateTestMarket("100", "Will it rain?", 0.4),
	})
	defer gamma.Close()
	clob, clobCalls := newClobServer(t, "0.001", "20")

	resolver := newTestResolver(t, gamma.URL, clob.URL, nil)

	got, err := resolver.Resolve(context.Background(), "100")
	require.NoError(t, err)

	assert.InDelta(t, 0.01, got.OrderTickSize, 1e-12)
	assert.InDelta(t, 5, got.OrderMinSize, 1e-12)
	assert.Zero(t, atomic.LoadInt32(clobCalls))
}

func TestResolver_Caches(t *testing.T) {
	gamma := testutil.NewMockGammaAPI([]*types.Market{
		testutil.CreateTestMarket("100", "Will it rain?", 0.4),
	})
	defer gamma.Close()
	clob, _ := newClobServer(t, "0.01", "5")

	c, err := cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	defer c.Close()

	resolver := newTestResolver(t, gamma.URL, clob.URL, c)

	_, err = resolver.Resolve(context.Background(), "100")
	require.NoError(t, err)
	c.(*cache.RistrettoCache).Wait()

	_, err = resolver.Resolve(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, 1, gamma.RequestCount(), "second resolve should be served from cache")

	_, err = resolver.Refresh(context.Background(), "100")
	require.NoError(t, err)
	assert.Equal(t, 2, gamma.RequestCount(), "refresh bypasses the cache")
}

func TestResolver_RejectsMarketWithoutTokens(t *testing.T) {
	market := testutil.CreateTestMarket("100", "Will it rain?", 0.4)
	market.ClobTokens = ""

	gamma := testutil.NewMockGammaAPI([]*types.Market{market})
	defer gamma.Close()

	resolver := newTestResolver(t, gamma.URL, gamma.URL, nil)

	_, err := resolver.Resolve(context.Background(), "100")
	assert.Error(t, err)
}

func TestNewResolver(t *testing.T) {
	client, err := NewClient(&ClientConfig{Logger: zap.NewNop()})
	require.NoError(t, err)

	_, err = NewResolver(nil)
	assert.Error(t, err)

	_, err = NewResolver(&ResolverConfig{Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewResolver(&ResolverConfig{Client: client})
	assert.Error(t, err)

	r, err := NewResolver(&ResolverConfig{Client: client, Logger: zap.NewNop()})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, r.ttl)
}
