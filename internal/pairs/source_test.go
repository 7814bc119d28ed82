package pairs

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mselser95/polymarket-hedge/pkg/cache"
	"github.com/mselser95/polymarket-hedge/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const wrappedPortfolios = `{
  "portfolios": [
    {
      "pair_id": "pair-1",
      "target_market_id": "516710",
      "target_position": "YES",
      "target_question": "Will X happen by June?",
      "target_price": 0.62,
      "cover_market_id": "516711",
      "cover_position": "no",
      "cover_question": "Will Y happen by June?",
      "cover_price": 0.3
    },
    {
      "target_market_id": "600001",
      "cover_market_id": "600002",
      "cover_position": "NO"
    },
    {
      "pair_id": "broken",
      "target_market_id": "",
      "cover_market_id": "1"
    },
    {
      "pair_id": "bad-position",
      "target_market_id": "1",
      "target_position": "MAYBE",
      "cover_market_id": "2"
    }
  ]
}`

func writeFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "portfolios.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestSource(t *testing.T, path string) *Source {
	t.Helper()

	c, err := cache.NewRistrettoCache(cache.DefaultRistrettoConfig(zap.NewNop()))
	require.NoError(t, err)
	t.Cleanup(c.Close)

	src, err := NewSource(&Config{Path: path, Cache: c, Logger: zap.NewNop()})
	require.NoError(t, err)
	return src
}

func TestSource_Get(t *testing.T) {
	src := newTestSource(t, writeFile(t, t.TempDir(), wrappedPortfolios))

	assert.Equal(t, 2, src.Len(), "invalid entries are skipped")

	pair, err := src.Get(context.Background(), "pair-1")
	require.NoError(t, err)

	assert.Equal(t, "pair-1", pair.PairID)
	assert.Equal(t, "516710", pair.Target.MarketID)
	assert.Equal(t, types.PositionYes, pair.Target.Position)
	assert.Equal(t, "Will X happen by June?", pair.Target.Question)
	assert.InDelta(t, 0.62, pair.Target.Price, 1e-9)
	assert.Equal(t, "516711", pair.Cover.MarketID)
	assert.Equal(t, types.PositionNo, pair.Cover.Position)
	assert.InDelta(t, 0.3, pair.Cover.Price, 1e-9)
}

func TestSource_DerivedPairID(t *testing.T) {
	src := newTestSource(t, writeFile(t, t.TempDir(), wrappedPortfolios))

	id := DerivePairID("600001", types.PositionYes, "600002", types.PositionNo)
	assert.Len(t, id, 18)
	assert.Equal(t, id, DerivePairID("600001", types.PositionYes, "600002", types.PositionNo))
	assert.NotEqual(t, id, DerivePairID("600001", types.PositionNo, "600002", types.PositionNo))

	pair, err := src.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.PositionYes, pair.Target.Position, "missing position defaults to YES")
}

func TestSource_BareList(t *testing.T) {
	content := `[{"pair_id":"p","target_market_id":"1","target_position":"NO","cover_market_id":"2","cover_position":"YES"}]`
	src := newTestSource(t, writeFile(t, t.TempDir(), content))

	pair, err := src.Get(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, types.PositionNo, pair.Target.Position)
}

func TestSource_NotFound(t *testing.T) {
	src := newTestSource(t, writeFile(t, t.TempDir(), wrappedPortfolios))

	_, err := src.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrPairNotFound))
}

func TestSource_ReloadsOnChange(t *testing.T) {
	path := writeFile(t, t.TempDir(), wrappedPortfolios)
	src := newTestSource(t, path)

	_, err := src.Get(context.Background(), "fresh")
	require.Error(t, err)

	updated := `[{"pair_id":"fresh","target_market_id":"7","cover_market_id":"8"}]`
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	pair, err := src.Get(context.Background(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, "7", pair.Target.MarketID)
	assert.Equal(t, 1, src.Len())
}

func TestSource_MalformedFileKeepsPreviousPairs(t *testing.T) {
	path := writeFile(t, t.TempDir(), wrappedPortfolios)
	src := newTestSource(t, path)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Error(t, src.Reload())
	assert.Equal(t, 2, src.Len())
}

func TestNewSource_Validation(t *testing.T) {
	c, err := cache.NewRistrettoCache(cache.DefaultRistrettoConfig(zap.NewNop()))
	require.NoError(t, err)
	defer c.Close()

	_, err = NewSource(&Config{Cache: c, Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewSource(&Config{Path: "x.json", Logger: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewSource(&Config{Path: filepath.Join(t.TempDir(), "absent.json"), Cache: c, Logger: zap.NewNop()})
	assert.Error(t, err)
}
