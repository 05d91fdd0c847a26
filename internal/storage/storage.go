package storage

import (
	"context"
	"fmt"

	"marketScope/internal/model"
)

// LogSink receives raw log batches, e.g. for offline export.
type LogSink interface {
	PutLogBatch(logs []model.RawLog) error
}

// Store persists decoded events and the sync cursor.
//
// Insert methods are idempotent: a row whose unique key already exists is
// reported as inserted=false with a nil error. Only the indexer writes.
type Store interface {
	InsertTrade(ctx context.Context, trade model.TradeEvent) (bool, error)
	InsertMarket(ctx context.Context, market model.MarketCreatedEvent) (bool, error)
	InsertResolution(ctx context.Context, res model.ResolutionEvent) (bool, error)

	// LoadSyncState returns ok=false when no pass has committed yet.
	LoadSyncState(ctx context.Context) (model.SyncState, bool, error)
	// SaveSyncState records block as processed. The stored value never decreases.
	SaveSyncState(ctx context.Context, block uint64) error

	// TradesByTrader returns newest first.
	TradesByTrader(ctx context.Context, trader string, limit int) ([]model.TradeEvent, error)
	// MarketsByCreator returns newest first.
	MarketsByCreator(ctx context.Context, creator string, limit int) ([]model.MarketCreatedEvent, error)
	// TradesByMarket returns the newest limit trades of a market, oldest first.
	TradesByMarket(ctx context.Context, marketID int64, limit int) ([]model.TradeEvent, error)
	RecentTrades(ctx context.Context, limit int) ([]model.TradeEvent, error)
	RecentMarkets(ctx context.Context, limit int) ([]model.MarketCreatedEvent, error)
	Market(ctx context.Context, marketID int64) (model.MarketCreatedEvent, bool, error)
	Resolution(ctx context.Context, marketID int64) (model.ResolutionEvent, bool, error)
	Counts(ctx context.Context) (model.Counts, error)

	Close() error
}

// StoreError is any storage failure other than a duplicate key.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// Wrap returns nil for a nil err, otherwise a *StoreError.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, Err: err}
}
