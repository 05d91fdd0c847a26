package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// Result bounds.
const (
	TraderTradesLimit   = 100
	CreatorMarketsLimit = 50
	MarketTradesLimit   = 500
	FeedLimit           = 50
)

// StateReader reports the sync cursor.
type StateReader interface {
	State(ctx context.Context) (model.SyncState, error)
}

// MarketTrades is everything known about one market's trading.
type MarketTrades struct {
	MarketID        int64                     `json:"marketId"`
	Market          *model.MarketCreatedEvent `json:"market,omitempty"`
	Resolution      *model.ResolutionEvent    `json:"resolution,omitempty"`
	Trades          []model.TradeEvent        `json:"trades"`
	PriceHistory    []model.PricePoint        `json:"priceHistory"`
	CurrentYesPrice model.Cents               `json:"currentYesPrice"`
	CurrentNoPrice  model.Cents               `json:"currentNoPrice"`
}

// Service builds read views over the store. It never writes.
type Service struct {
	store  storage.Store
	cursor StateReader
}

func NewService(store storage.Store, cursor StateReader) *Service {
	return &Service{store: store, cursor: cursor}
}

func (s *Service) TraderTrades(ctx context.Context, trader string) ([]model.TradeEvent, error) {
	return s.store.TradesByTrader(ctx, strings.ToLower(trader), TraderTradesLimit)
}

func (s *Service) CreatorMarkets(ctx context.Context, creator string) ([]model.MarketCreatedEvent, error) {
	return s.store.MarketsByCreator(ctx, strings.ToLower(creator), CreatorMarketsLimit)
}

func (s *Service) MarketTrades(ctx context.Context, marketID int64) (MarketTrades, error) {
	trades, err := s.store.TradesByMarket(ctx, marketID, MarketTradesLimit)
	if err != nil {
		return MarketTrades{}, err
	}
	history, yes, no, err := PriceHistory(trades)
	if err != nil {
		return MarketTrades{}, err
	}
	out := MarketTrades{
		MarketID:        marketID,
		Trades:          trades,
		PriceHistory:    history,
		CurrentYesPrice: yes,
		CurrentNoPrice:  no,
	}

	if m, ok, err := s.store.Market(ctx, marketID); err != nil {
		return MarketTrades{}, err
	} else if ok {
		out.Market = &m
	}
	if r, ok, err := s.store.Resolution(ctx, marketID); err != nil {
		return MarketTrades{}, err
	} else if ok {
		out.Resolution = &r
	}
	return out, nil
}

// GlobalActivity merges the newest trades and market creations, newest first.
// Equal blocks are ordered by log index descending, then by kind.
func (s *Service) GlobalActivity(ctx context.Context) ([]model.ActivityItem, error) {
	trades, err := s.store.RecentTrades(ctx, FeedLimit)
	if err != nil {
		return nil, err
	}
	markets, err := s.store.RecentMarkets(ctx, FeedLimit)
	if err != nil {
		return nil, err
	}
	return MergeActivity(trades, markets, FeedLimit), nil
}

// MergeActivity is the pure part of GlobalActivity.
func MergeActivity(trades []model.TradeEvent, markets []model.MarketCreatedEvent, limit int) []model.ActivityItem {
	items := make([]model.ActivityItem, 0, len(trades)+len(markets))
	for i := range trades {
		t := trades[i]
		items = append(items, model.ActivityItem{Type: model.KindTrade, BlockNumber: t.BlockNumber, LogIndex: t.LogIndex, Trade: &t})
	}
	for i := range markets {
		m := markets[i]
		items = append(items, model.ActivityItem{Type: model.KindMarketCreated, BlockNumber: m.BlockNumber, LogIndex: m.LogIndex, Market: &m})
	}

	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber > b.BlockNumber
		}
		if a.LogIndex != b.LogIndex {
			return a.LogIndex > b.LogIndex
		}
		return a.Type < b.Type
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}

func (s *Service) Stats(ctx context.Context) (model.Stats, error) {
	counts, err := s.store.Counts(ctx)
	if err != nil {
		return model.Stats{}, err
	}
	state, err := s.cursor.State(ctx)
	if err != nil {
		return model.Stats{}, fmt.Errorf("stats: %w", err)
	}
	stats := model.Stats{Counts: counts, LastProcessedBlock: state.LastProcessedBlock}
	if !state.LastUpdatedAt.IsZero() {
		updated := state.LastUpdatedAt
		stats.LastUpdatedAt = &updated
	}
	return stats, nil
}
