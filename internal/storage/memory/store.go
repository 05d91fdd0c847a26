package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"marketScope/internal/model"
	"marketScope/internal/storage"
)

type tradeKey struct {
	txHash   string
	logIndex uint64
}

// Store keeps everything in process memory. Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	trades      []model.TradeEvent
	tradeKeys   map[tradeKey]struct{}
	markets     map[int64]model.MarketCreatedEvent
	resolutions map[int64]model.ResolutionEvent
	state       model.SyncState
	hasState    bool
	now         func() time.Time
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		tradeKeys:   make(map[tradeKey]struct{}),
		markets:     make(map[int64]model.MarketCreatedEvent),
		resolutions: make(map[int64]model.ResolutionEvent),
		now:         time.Now,
	}
}

func (s *Store) InsertTrade(_ context.Context, trade model.TradeEvent) (bool, error) {
	key := tradeKey{txHash: strings.ToLower(trade.TxHash), logIndex: trade.LogIndex}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tradeKeys[key]; ok {
		return false, nil
	}
	s.tradeKeys[key] = struct{}{}
	s.trades = append(s.trades, trade)
	return true, nil
}

func (s *Store) InsertMarket(_ context.Context, market model.MarketCreatedEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.markets[market.MarketID]; ok {
		return false, nil
	}
	s.markets[market.MarketID] = market
	return true, nil
}

func (s *Store) InsertResolution(_ context.Context, res model.ResolutionEvent) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.resolutions[res.MarketID]; ok {
		return false, nil
	}
	s.resolutions[res.MarketID] = res
	return true, nil
}

func (s *Store) LoadSyncState(_ context.Context) (model.SyncState, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, s.hasState, nil
}

func (s *Store) SaveSyncState(_ context.Context, block uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasState || block > s.state.LastProcessedBlock {
		s.state.LastProcessedBlock = block
	}
	s.state.LastUpdatedAt = s.now().UTC()
	s.hasState = true
	return nil
}

func (s *Store) TradesByTrader(_ context.Context, trader string, limit int) ([]model.TradeEvent, error) {
	trader = strings.ToLower(trader)
	s.mu.RLock()
	out := filterTrades(s.trades, func(t model.TradeEvent) bool { return t.Trader == trader })
	s.mu.RUnlock()
	sortTradesDesc(out)
	return truncate(out, limit), nil
}

func (s *Store) MarketsByCreator(_ context.Context, creator string, limit int) ([]model.MarketCreatedEvent, error) {
	creator = strings.ToLower(creator)
	s.mu.RLock()
	out := make([]model.MarketCreatedEvent, 0)
	for _, m := range s.markets {
		if m.Creator == creator {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()
	sortMarketsDesc(out)
	return truncate(out, limit), nil
}

func (s *Store) TradesByMarket(_ context.Context, marketID int64, limit int) ([]model.TradeEvent, error) {
	s.mu.RLock()
	out := filterTrades(s.trades, func(t model.TradeEvent) bool { return t.MarketID == marketID })
	s.mu.RUnlock()
	sortTradesDesc(out)
	out = truncate(out, limit)
	slices.Reverse(out)
	return out, nil
}

func (s *Store) RecentTrades(_ context.Context, limit int) ([]model.TradeEvent, error) {
	s.mu.RLock()
	out := append([]model.TradeEvent(nil), s.trades...)
	s.mu.RUnlock()
	sortTradesDesc(out)
	return truncate(out, limit), nil
}

func (s *Store) RecentMarkets(_ context.Context, limit int) ([]model.MarketCreatedEvent, error) {
	s.mu.RLock()
	out := make([]model.MarketCreatedEvent, 0, len(s.markets))
	for _, m := range s.markets {
		out = append(out, m)
	}
	s.mu.RUnlock()
	sortMarketsDesc(out)
	return truncate(out, limit), nil
}

func (s *Store) Market(_ context.Context, marketID int64) (model.MarketCreatedEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.markets[marketID]
	return m, ok, nil
}

func (s *Store) Resolution(_ context.Context, marketID int64) (model.ResolutionEvent, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.resolutions[marketID]
	return r, ok, nil
}

func (s *Store) Counts(_ context.Context) (model.Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return model.Counts{
		Trades:      int64(len(s.trades)),
		Markets:     int64(len(s.markets)),
		Resolutions: int64(len(s.resolutions)),
	}, nil
}

func (s *Store) Close() error { return nil }

func filterTrades(trades []model.TradeEvent, keep func(model.TradeEvent) bool) []model.TradeEvent {
	out := make([]model.TradeEvent, 0)
	for _, t := range trades {
		if keep(t) {
			out = append(out, t)
		}
	}
	return out
}

func sortTradesDesc(trades []model.TradeEvent) {
	sort.SliceStable(trades, func(i, j int) bool {
		if trades[i].BlockNumber != trades[j].BlockNumber {
			return trades[i].BlockNumber > trades[j].BlockNumber
		}
		return trades[i].LogIndex > trades[j].LogIndex
	})
}

func sortMarketsDesc(markets []model.MarketCreatedEvent) {
	sort.SliceStable(markets, func(i, j int) bool {
		if markets[i].BlockNumber != markets[j].BlockNumber {
			return markets[i].BlockNumber > markets[j].BlockNumber
		}
		return markets[i].LogIndex > markets[j].LogIndex
	})
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
