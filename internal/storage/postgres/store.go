package postgres

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// Store provides Postgres persistence for decoded market events.
type Store struct {
	pool *pgxpool.Pool
}

var _ storage.Store = (*Store)(nil)

func NewStore(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	pool, err := openPool(ctx, dsn, maxConns)
	if err != nil {
		return nil, storage.Wrap("open", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// Reset truncates every table. Intended for tests.
func (s *Store) Reset(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `TRUNCATE trades, markets, resolutions, sync_state`)
	return storage.Wrap("reset", err)
}

func (s *Store) InsertTrade(ctx context.Context, t model.TradeEvent) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO trades (
			market_id, trader, is_yes, is_buy, usdc_amount, shares, new_yes_price,
			tx_hash, log_index, block_number, indexed_at
		) VALUES ($1, $2, $3, $4, $5::text::numeric, $6::text::numeric, $7::text::numeric, $8, $9, $10, $11)
		ON CONFLICT (tx_hash, log_index) DO NOTHING
	`,
		t.MarketID,
		strings.ToLower(t.Trader),
		t.IsYes,
		t.IsBuy,
		t.USDCAmount,
		t.Shares,
		t.NewYesPrice,
		strings.ToLower(t.TxHash),
		int64(t.LogIndex),
		int64(t.BlockNumber),
		t.IndexedAt,
	)
	if err != nil {
		return false, storage.Wrap("insert trade", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) InsertMarket(ctx context.Context, m model.MarketCreatedEvent) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO markets (
			market_id, market_type, feed_id, question, target_value, end_time, end_block,
			creator, tx_hash, log_index, block_number, indexed_at
		) VALUES ($1, $2, $3, $4, $5::text::numeric, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (market_id) DO NOTHING
	`,
		m.MarketID,
		int16(m.MarketType),
		m.FeedID,
		m.Question,
		m.TargetValue,
		m.EndTime,
		int64(m.EndBlock),
		strings.ToLower(m.Creator),
		strings.ToLower(m.TxHash),
		int64(m.LogIndex),
		int64(m.BlockNumber),
		m.IndexedAt,
	)
	if err != nil {
		return false, storage.Wrap("insert market", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) InsertResolution(ctx context.Context, r model.ResolutionEvent) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO resolutions (
			market_id, outcome, final_value, tx_hash, log_index, block_number, indexed_at
		) VALUES ($1, $2, $3::text::numeric, $4, $5, $6, $7)
		ON CONFLICT (market_id) DO NOTHING
	`,
		r.MarketID,
		int16(r.Outcome),
		r.FinalValue,
		strings.ToLower(r.TxHash),
		int64(r.LogIndex),
		int64(r.BlockNumber),
		r.IndexedAt,
	)
	if err != nil {
		return false, storage.Wrap("insert resolution", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *Store) LoadSyncState(ctx context.Context) (model.SyncState, bool, error) {
	var (
		block   int64
		updated time.Time
	)
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block, last_updated_at FROM sync_state WHERE id = 1`)
	if err := row.Scan(&block, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.SyncState{}, false, nil
		}
		return model.SyncState{}, false, storage.Wrap("load sync state", err)
	}
	return model.SyncState{LastProcessedBlock: uint64(block), LastUpdatedAt: updated.UTC()}, true, nil
}

func (s *Store) SaveSyncState(ctx context.Context, block uint64) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO sync_state (id, last_processed_block, last_updated_at)
		VALUES (1, $1, now())
		ON CONFLICT (id) DO UPDATE
		SET last_processed_block = GREATEST(sync_state.last_processed_block, EXCLUDED.last_processed_block),
			last_updated_at = now()
	`, int64(block))
	return storage.Wrap("save sync state", err)
}

const tradeColumns = `market_id, trader, is_yes, is_buy, usdc_amount::text, shares::text, new_yes_price::text,
	tx_hash, log_index, block_number, indexed_at`

const marketColumns = `market_id, market_type, feed_id, question, target_value::text, end_time, end_block,
	creator, tx_hash, log_index, block_number, indexed_at`

func (s *Store) TradesByTrader(ctx context.Context, trader string, limit int) ([]model.TradeEvent, error) {
	return s.queryTrades(ctx, "trades by trader", `SELECT `+tradeColumns+` FROM trades
		WHERE trader = $1 ORDER BY block_number DESC, log_index DESC LIMIT $2`,
		strings.ToLower(trader), limit)
}

func (s *Store) TradesByMarket(ctx context.Context, marketID int64, limit int) ([]model.TradeEvent, error) {
	trades, err := s.queryTrades(ctx, "trades by market", `SELECT `+tradeColumns+` FROM trades
		WHERE market_id = $1 ORDER BY block_number DESC, log_index DESC LIMIT $2`,
		marketID, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(trades)
	return trades, nil
}

func (s *Store) RecentTrades(ctx context.Context, limit int) ([]model.TradeEvent, error) {
	return s.queryTrades(ctx, "recent trades", `SELECT `+tradeColumns+` FROM trades
		ORDER BY block_number DESC, log_index DESC LIMIT $1`, limit)
}

func (s *Store) MarketsByCreator(ctx context.Context, creator string, limit int) ([]model.MarketCreatedEvent, error) {
	return s.queryMarkets(ctx, "markets by creator", `SELECT `+marketColumns+` FROM markets
		WHERE creator = $1 ORDER BY block_number DESC, log_index DESC LIMIT $2`,
		strings.ToLower(creator), limit)
}

func (s *Store) RecentMarkets(ctx context.Context, limit int) ([]model.MarketCreatedEvent, error) {
	return s.queryMarkets(ctx, "recent markets", `SELECT `+marketColumns+` FROM markets
		ORDER BY block_number DESC, log_index DESC LIMIT $1`, limit)
}

func (s *Store) Market(ctx context.Context, marketID int64) (model.MarketCreatedEvent, bool, error) {
	markets, err := s.queryMarkets(ctx, "market", `SELECT `+marketColumns+` FROM markets WHERE market_id = $1`, marketID)
	if err != nil || len(markets) == 0 {
		return model.MarketCreatedEvent{}, false, err
	}
	return markets[0], true, nil
}

func (s *Store) Resolution(ctx context.Context, marketID int64) (model.ResolutionEvent, bool, error) {
	var (
		r               model.ResolutionEvent
		outcome         int16
		logIndex, block int64
	)
	row := s.pool.QueryRow(ctx, `
		SELECT market_id, outcome, final_value::text, tx_hash, log_index, block_number, indexed_at
		FROM resolutions WHERE market_id = $1
	`, marketID)
	if err := row.Scan(&r.MarketID, &outcome, &r.FinalValue, &r.TxHash, &logIndex, &block, &r.IndexedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ResolutionEvent{}, false, nil
		}
		return model.ResolutionEvent{}, false, storage.Wrap("resolution", err)
	}
	r.Outcome = uint8(outcome)
	r.LogIndex = uint64(logIndex)
	r.BlockNumber = uint64(block)
	r.IndexedAt = r.IndexedAt.UTC()
	return r, true, nil
}

func (s *Store) Counts(ctx context.Context) (model.Counts, error) {
	var c model.Counts
	row := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM trades),
			(SELECT count(*) FROM markets),
			(SELECT count(*) FROM resolutions)
	`)
	if err := row.Scan(&c.Trades, &c.Markets, &c.Resolutions); err != nil {
		return model.Counts{}, storage.Wrap("counts", err)
	}
	return c, nil
}

func (s *Store) queryTrades(ctx context.Context, op, query string, args ...any) ([]model.TradeEvent, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer rows.Close()

	out := make([]model.TradeEvent, 0)
	for rows.Next() {
		var (
			t               model.TradeEvent
			logIndex, block int64
		)
		if err := rows.Scan(&t.MarketID, &t.Trader, &t.IsYes, &t.IsBuy, &t.USDCAmount, &t.Shares, &t.NewYesPrice,
			&t.TxHash, &logIndex, &block, &t.IndexedAt); err != nil {
			return nil, storage.Wrap(op, err)
		}
		t.LogIndex = uint64(logIndex)
		t.BlockNumber = uint64(block)
		t.IndexedAt = t.IndexedAt.UTC()
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, err)
	}
	return out, nil
}

func (s *Store) queryMarkets(ctx context.Context, op, query string, args ...any) ([]model.MarketCreatedEvent, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer rows.Close()

	out := make([]model.MarketCreatedEvent, 0)
	for rows.Next() {
		var (
			m                         model.MarketCreatedEvent
			marketType                int16
			endBlock, logIndex, block int64
		)
		if err := rows.Scan(&m.MarketID, &marketType, &m.FeedID, &m.Question, &m.TargetValue, &m.EndTime, &endBlock,
			&m.Creator, &m.TxHash, &logIndex, &block, &m.IndexedAt); err != nil {
			return nil, storage.Wrap(op, err)
		}
		m.MarketType = uint8(marketType)
		m.EndBlock = uint64(endBlock)
		m.LogIndex = uint64(logIndex)
		m.BlockNumber = uint64(block)
		m.IndexedAt = m.IndexedAt.UTC()
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, err)
	}
	return out, nil
}
