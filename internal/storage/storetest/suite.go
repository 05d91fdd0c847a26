// Package storetest holds the behaviour every storage.Store implementation must share.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// Factory returns an empty store. It is called once per subtest.
type Factory func(t *testing.T) storage.Store

// Run executes the conformance tests against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("IdempotentInsert", func(t *testing.T) { testIdempotentInsert(t, newStore(t)) })
	t.Run("SyncStateMonotonic", func(t *testing.T) { testSyncState(t, newStore(t)) })
	t.Run("TraderOrdering", func(t *testing.T) { testTraderOrdering(t, newStore(t)) })
	t.Run("MarketOrdering", func(t *testing.T) { testMarketOrdering(t, newStore(t)) })
	t.Run("MarketTradesKeepLatest", func(t *testing.T) { testMarketTradesKeepLatest(t, newStore(t)) })
	t.Run("CreatorOrdering", func(t *testing.T) { testCreatorOrdering(t, newStore(t)) })
	t.Run("Lookups", func(t *testing.T) { testLookups(t, newStore(t)) })
	t.Run("ValuesPreserved", func(t *testing.T) { testValuesPreserved(t, newStore(t)) })
	t.Run("ConcurrentDuplicates", func(t *testing.T) { testConcurrentDuplicates(t, newStore(t)) })
}

var indexedAt = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

const (
	traderA  = "0x00000000000000000000000000000000000000aa"
	traderB  = "0x00000000000000000000000000000000000000bb"
	creatorA = "0x00000000000000000000000000000000000000cc"
)

// Trade builds a trade with deterministic provenance.
func Trade(marketID int64, trader string, block, logIndex uint64) model.TradeEvent {
	return model.TradeEvent{
		MarketID:    marketID,
		Trader:      trader,
		IsYes:       true,
		IsBuy:       true,
		USDCAmount:  "1000000000",
		Shares:      "1500000000000000000",
		NewYesPrice: "620000000000000000",
		Provenance: model.Provenance{
			TxHash:      fmt.Sprintf("0x%064x", block*1000+logIndex),
			LogIndex:    logIndex,
			BlockNumber: block,
			IndexedAt:   indexedAt,
		},
	}
}

// Market builds a market with deterministic provenance.
func Market(marketID int64, creator string, block uint64) model.MarketCreatedEvent {
	return model.MarketCreatedEvent{
		MarketID:    marketID,
		MarketType:  1,
		FeedID:      "0x" + fmt.Sprintf("%064x", marketID),
		Question:    fmt.Sprintf("Will market %d settle above target?", marketID),
		TargetValue: "6500000000000",
		EndTime:     1735689600,
		EndBlock:    block + 10000,
		Creator:     creator,
		Provenance: model.Provenance{
			TxHash:      fmt.Sprintf("0x%064x", block),
			BlockNumber: block,
			IndexedAt:   indexedAt,
		},
	}
}

func testIdempotentInsert(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	trade := Trade(1, traderA, 1000, 0)
	inserted, err := store.InsertTrade(ctx, trade)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.InsertTrade(ctx, trade)
	require.NoError(t, err)
	assert.False(t, inserted, "same (tx, logIndex) must be ignored")

	sibling := trade
	sibling.LogIndex = 1
	inserted, err = store.InsertTrade(ctx, sibling)
	require.NoError(t, err)
	assert.True(t, inserted, "same tx with another log index is a new trade")

	market := Market(1, creatorA, 900)
	inserted, err = store.InsertMarket(ctx, market)
	require.NoError(t, err)
	assert.True(t, inserted)
	market.Question = "changed"
	inserted, err = store.InsertMarket(ctx, market)
	require.NoError(t, err)
	assert.False(t, inserted)

	res := model.ResolutionEvent{MarketID: 1, Outcome: 1, FinalValue: "7", Provenance: model.Provenance{TxHash: "0x01", BlockNumber: 2000, IndexedAt: indexedAt}}
	inserted, err = store.InsertResolution(ctx, res)
	require.NoError(t, err)
	assert.True(t, inserted)
	inserted, err = store.InsertResolution(ctx, res)
	require.NoError(t, err)
	assert.False(t, inserted)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{Trades: 2, Markets: 1, Resolutions: 1}, counts)

	stored, ok, err := store.Market(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEqual(t, "changed", stored.Question, "first write wins")
}

func testSyncState(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	_, ok, err := store.LoadSyncState(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.SaveSyncState(ctx, 1500))
	state, ok, err := store.LoadSyncState(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint64(1500), state.LastProcessedBlock)
	assert.False(t, state.LastUpdatedAt.IsZero())

	require.NoError(t, store.SaveSyncState(ctx, 1200))
	state, _, err = store.LoadSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1500), state.LastProcessedBlock, "cursor must never move backwards")

	require.NoError(t, store.SaveSyncState(ctx, 1600))
	state, _, err = store.LoadSyncState(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1600), state.LastProcessedBlock)
}

func testTraderOrdering(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	insert := []model.TradeEvent{
		Trade(1, traderA, 100, 2),
		Trade(1, traderA, 300, 0),
		Trade(2, traderB, 200, 0),
		Trade(1, traderA, 100, 5),
		Trade(2, traderA, 200, 1),
	}
	for _, tr := range insert {
		_, err := store.InsertTrade(ctx, tr)
		require.NoError(t, err)
	}

	got, err := store.TradesByTrader(ctx, traderA, 100)
	require.NoError(t, err)
	assert.Equal(t, []string{"300/0", "200/1", "100/5", "100/2"}, tradePositions(got))

	got, err = store.TradesByTrader(ctx, "0x00000000000000000000000000000000000000AA", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"300/0", "200/1"}, tradePositions(got), "lookup is case-insensitive and bounded")

	got, err = store.TradesByTrader(ctx, "0x00000000000000000000000000000000000000dd", 100)
	require.NoError(t, err)
	assert.Empty(t, got)

	recent, err := store.RecentTrades(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"300/0", "200/1", "200/0"}, tradePositions(recent))
}

func testMarketOrdering(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	for _, tr := range []model.TradeEvent{
		Trade(7, traderA, 500, 3),
		Trade(7, traderB, 400, 0),
		Trade(8, traderB, 450, 0),
		Trade(7, traderA, 500, 1),
	} {
		_, err := store.InsertTrade(ctx, tr)
		require.NoError(t, err)
	}

	got, err := store.TradesByMarket(ctx, 7, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"400/0", "500/1", "500/3"}, tradePositions(got))

	got, err = store.TradesByMarket(ctx, 7, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"500/1", "500/3"}, tradePositions(got), "a bounded read keeps the newest trades")

	got, err = store.TradesByMarket(ctx, 99, 500)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func testMarketTradesKeepLatest(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	const total = 12
	for block := uint64(1); block <= total; block++ {
		tr := Trade(1, traderA, block, 0)
		if block == total {
			tr.NewYesPrice = "900000000000000000"
		}
		_, err := store.InsertTrade(ctx, tr)
		require.NoError(t, err)
	}

	got, err := store.TradesByMarket(ctx, 1, 5)
	require.NoError(t, err)
	require.Len(t, got, 5)
	assert.Equal(t, uint64(total-4), got[0].BlockNumber)
	last := got[len(got)-1]
	assert.Equal(t, uint64(total), last.BlockNumber)
	assert.Equal(t, "900000000000000000", last.NewYesPrice)
}

func testCreatorOrdering(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	for _, m := range []model.MarketCreatedEvent{
		Market(1, creatorA, 100),
		Market(2, creatorA, 300),
		Market(3, traderB, 200),
		Market(4, creatorA, 250),
	} {
		_, err := store.InsertMarket(ctx, m)
		require.NoError(t, err)
	}

	got, err := store.MarketsByCreator(ctx, creatorA, 50)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 1}, marketIDs(got))

	got, err = store.MarketsByCreator(ctx, creatorA, 1)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, marketIDs(got))

	recent, err := store.RecentMarkets(ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, []int64{2, 4, 3, 1}, marketIDs(recent))
}

func testLookups(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	_, ok, err := store.Market(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Resolution(ctx, 42)
	require.NoError(t, err)
	assert.False(t, ok)

	res := model.ResolutionEvent{MarketID: 42, Outcome: 2, FinalValue: "123", Provenance: model.Provenance{TxHash: "0xabc", LogIndex: 4, BlockNumber: 9000, IndexedAt: indexedAt}}
	_, err = store.InsertResolution(ctx, res)
	require.NoError(t, err)

	got, ok, err := store.Resolution(ctx, 42)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.IndexedAt.Equal(res.IndexedAt))
	got.IndexedAt, res.IndexedAt = time.Time{}, time.Time{}
	assert.Equal(t, res, got)

	counts, err := store.Counts(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Counts{Resolutions: 1}, counts)
}

func testValuesPreserved(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	const maxUint256 = "115792089237316195423570985008687907853269984665640564039457584007913129639935"
	trade := Trade(3, traderA, 10, 0)
	trade.USDCAmount = maxUint256
	trade.IsYes, trade.IsBuy = false, false
	_, err := store.InsertTrade(ctx, trade)
	require.NoError(t, err)

	market := Market(3, creatorA, 9)
	market.Question = "Will ETH close above $4,000 on 31 Dec? ✓"
	market.TargetValue = maxUint256
	_, err = store.InsertMarket(ctx, market)
	require.NoError(t, err)

	trades, err := store.TradesByMarket(ctx, 3, 10)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].IndexedAt.Equal(trade.IndexedAt))
	trades[0].IndexedAt, trade.IndexedAt = time.Time{}, time.Time{}
	assert.Equal(t, trade, trades[0])

	got, ok, err := store.Market(ctx, 3)
	require.NoError(t, err)
	require.True(t, ok)
	got.IndexedAt, market.IndexedAt = time.Time{}, time.Time{}
	assert.Equal(t, market, got)
}

func testConcurrentDuplicates(t *testing.T, store storage.Store) {
	defer store.Close()
	ctx := context.Background()

	trade := Trade(5, traderB, 77, 9)
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		inserted int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := store.InsertTrade(ctx, trade)
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				inserted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, inserted)
}

func tradePositions(trades []model.TradeEvent) []string {
	out := make([]string, 0, len(trades))
	for _, tr := range trades {
		out = append(out, fmt.Sprintf("%d/%d", tr.BlockNumber, tr.LogIndex))
	}
	return out
}

func marketIDs(markets []model.MarketCreatedEvent) []int64 {
	out := make([]int64, 0, len(markets))
	for _, m := range markets {
		out = append(out, m.MarketID)
	}
	return out
}
