package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketScope/internal/model"
	"marketScope/internal/storage/memory"
	"marketScope/internal/storage/storetest"
)

type fixedState struct {
	state model.SyncState
}

func (f fixedState) State(context.Context) (model.SyncState, error) { return f.state, nil }

const trader = "0x00000000000000000000000000000000000000aa"

func TestMergeActivityOrdering(t *testing.T) {
	trades := []model.TradeEvent{
		storetest.Trade(1, trader, 300, 2),
		storetest.Trade(1, trader, 200, 5),
	}
	markets := []model.MarketCreatedEvent{
		storetest.Market(2, trader, 300),
		storetest.Market(3, trader, 250),
	}
	markets[0].LogIndex = 2

	items := MergeActivity(trades, markets, 50)
	var got []string
	for _, it := range items {
		got = append(got, string(it.Type))
	}
	assert.Equal(t, []string{"market_created", "trade", "market_created", "trade"}, got)
	assert.Equal(t, uint64(300), items[0].BlockNumber)
	assert.NotNil(t, items[0].Market)
	assert.Nil(t, items[0].Trade)
	assert.Equal(t, uint64(200), items[3].BlockNumber)
}

func TestGlobalActivityTruncates(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	for i := uint64(0); i < 40; i++ {
		_, err := store.InsertTrade(ctx, storetest.Trade(1, trader, 1000+i, 0))
		require.NoError(t, err)
		_, err = store.InsertMarket(ctx, storetest.Market(int64(i), trader, 1000+i))
		require.NoError(t, err)
	}

	items, err := NewService(store, fixedState{}).GlobalActivity(ctx)
	require.NoError(t, err)
	require.Len(t, items, FeedLimit)
	assert.Equal(t, uint64(1039), items[0].BlockNumber)
	for i := 1; i < len(items); i++ {
		assert.LessOrEqual(t, items[i].BlockNumber, items[i-1].BlockNumber)
	}
}

func TestMarketTrades(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	prices := []string{"500000000000000000", "620000000000000000", "450000000000000000"}
	for i, p := range prices {
		tr := storetest.Trade(9, trader, uint64(500-i*10), 0)
		tr.NewYesPrice = p
		_, err := store.InsertTrade(ctx, tr)
		require.NoError(t, err)
	}

	svc := NewService(store, fixedState{})
	got, err := svc.MarketTrades(ctx, 9)
	require.NoError(t, err)
	// Chronological order is by block, not insertion.
	require.Len(t, got.PriceHistory, 3)
	assert.Equal(t, model.Cents(4500), got.PriceHistory[0].YesPrice)
	assert.Equal(t, model.Cents(5000), got.CurrentYesPrice)
	assert.Nil(t, got.Market)

	_, err = store.InsertMarket(ctx, storetest.Market(9, trader, 400))
	require.NoError(t, err)
	_, err = store.InsertResolution(ctx, model.ResolutionEvent{MarketID: 9, Outcome: 1, FinalValue: "1"})
	require.NoError(t, err)
	got, err = svc.MarketTrades(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, got.Market)
	require.NotNil(t, got.Resolution)

	empty, err := svc.MarketTrades(ctx, 404)
	require.NoError(t, err)
	assert.Empty(t, empty.Trades)
	assert.Equal(t, DefaultPrice, empty.CurrentYesPrice)
	assert.Equal(t, DefaultPrice, empty.CurrentNoPrice)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, err := store.InsertTrade(ctx, storetest.Trade(1, trader, 10, 0))
	require.NoError(t, err)

	fresh, err := NewService(store, fixedState{state: model.SyncState{LastProcessedBlock: 1000}}).Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), fresh.LastProcessedBlock)
	assert.Nil(t, fresh.LastUpdatedAt)
	assert.Equal(t, int64(1), fresh.Trades)

	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	synced, err := NewService(store, fixedState{state: model.SyncState{LastProcessedBlock: 1500, LastUpdatedAt: at}}).Stats(ctx)
	require.NoError(t, err)
	require.NotNil(t, synced.LastUpdatedAt)
	assert.True(t, synced.LastUpdatedAt.Equal(at))
}

func TestTraderLookupIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	_, err := store.InsertTrade(ctx, storetest.Trade(1, trader, 10, 0))
	require.NoError(t, err)

	got, err := NewService(store, fixedState{}).TraderTrades(ctx, "0x00000000000000000000000000000000000000AA")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestMarketTradesReportsLatestPriceBeyondLimit(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	total := uint64(MarketTradesLimit + 1)
	for block := uint64(1); block <= total; block++ {
		tr := storetest.Trade(1, trader, block, 0)
		tr.NewYesPrice = "500000000000000000"
		if block == total {
			tr.NewYesPrice = "900000000000000000"
		}
		_, err := store.InsertTrade(ctx, tr)
		require.NoError(t, err)
	}

	got, err := NewService(store, fixedState{}).MarketTrades(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got.Trades, MarketTradesLimit)
	assert.Equal(t, uint64(2), got.Trades[0].BlockNumber)
	assert.Equal(t, total, got.Trades[len(got.Trades)-1].BlockNumber)
	assert.Equal(t, model.CentsFromWhole(90), got.CurrentYesPrice)
	assert.Equal(t, model.CentsFromWhole(10), got.CurrentNoPrice)
}
