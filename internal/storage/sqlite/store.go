package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// Store persists market events in a single SQLite file.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path. ":memory:" gives a
// private in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := "file::memory:?cache=private"
	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, storage.Wrap("open", fmt.Errorf("create directory: %w", err))
			}
		}
		dsn = fmt.Sprintf("file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, storage.Wrap("open", err)
	}
	// One writer; also keeps a :memory: database on a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, storage.Wrap("ping", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Migrate creates the schema. Safe to call repeatedly.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return storage.Wrap("migrate", err)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) InsertTrade(ctx context.Context, t model.TradeEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO trades (
			market_id, trader, is_yes, is_buy, usdc_amount, shares, new_yes_price,
			tx_hash, log_index, block_number, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.MarketID, strings.ToLower(t.Trader), t.IsYes, t.IsBuy,
		t.USDCAmount, t.Shares, t.NewYesPrice,
		strings.ToLower(t.TxHash), int64(t.LogIndex), int64(t.BlockNumber), formatTime(t.IndexedAt),
	)
	return inserted("insert trade", res, err)
}

func (s *Store) InsertMarket(ctx context.Context, m model.MarketCreatedEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO markets (
			market_id, market_type, feed_id, question, target_value, end_time, end_block,
			creator, tx_hash, log_index, block_number, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.MarketID, int64(m.MarketType), m.FeedID, m.Question, m.TargetValue, m.EndTime, int64(m.EndBlock),
		strings.ToLower(m.Creator), strings.ToLower(m.TxHash), int64(m.LogIndex), int64(m.BlockNumber),
		formatTime(m.IndexedAt),
	)
	return inserted("insert market", res, err)
}

func (s *Store) InsertResolution(ctx context.Context, r model.ResolutionEvent) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO resolutions (
			market_id, outcome, final_value, tx_hash, log_index, block_number, indexed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.MarketID, int64(r.Outcome), r.FinalValue, strings.ToLower(r.TxHash),
		int64(r.LogIndex), int64(r.BlockNumber), formatTime(r.IndexedAt),
	)
	return inserted("insert resolution", res, err)
}

func inserted(op string, res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, storage.Wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, storage.Wrap(op, err)
	}
	return n == 1, nil
}

func (s *Store) LoadSyncState(ctx context.Context) (model.SyncState, bool, error) {
	var (
		block   int64
		updated string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT last_processed_block, last_updated_at FROM sync_state WHERE id = 1`,
	).Scan(&block, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return model.SyncState{}, false, nil
	}
	if err != nil {
		return model.SyncState{}, false, storage.Wrap("load sync state", err)
	}
	at, err := parseTime(updated)
	if err != nil {
		return model.SyncState{}, false, storage.Wrap("load sync state", err)
	}
	return model.SyncState{LastProcessedBlock: uint64(block), LastUpdatedAt: at}, true, nil
}

func (s *Store) SaveSyncState(ctx context.Context, block uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_state (id, last_processed_block, last_updated_at)
		VALUES (1, ?, ?)
		ON CONFLICT (id) DO UPDATE
		SET last_processed_block = MAX(sync_state.last_processed_block, excluded.last_processed_block),
			last_updated_at = excluded.last_updated_at
	`, int64(block), formatTime(s.now()))
	return storage.Wrap("save sync state", err)
}

const tradeColumns = `market_id, trader, is_yes, is_buy, usdc_amount, shares, new_yes_price,
	tx_hash, log_index, block_number, indexed_at`

const marketColumns = `market_id, market_type, feed_id, question, target_value, end_time, end_block,
	creator, tx_hash, log_index, block_number, indexed_at`

func (s *Store) TradesByTrader(ctx context.Context, trader string, limit int) ([]model.TradeEvent, error) {
	return s.queryTrades(ctx, "trades by trader", `SELECT `+tradeColumns+` FROM trades
		WHERE trader = ? ORDER BY block_number DESC, log_index DESC LIMIT ?`,
		strings.ToLower(trader), limit)
}

func (s *Store) TradesByMarket(ctx context.Context, marketID int64, limit int) ([]model.TradeEvent, error) {
	trades, err := s.queryTrades(ctx, "trades by market", `SELECT `+tradeColumns+` FROM trades
		WHERE market_id = ? ORDER BY block_number DESC, log_index DESC LIMIT ?`,
		marketID, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(trades)
	return trades, nil
}

func (s *Store) RecentTrades(ctx context.Context, limit int) ([]model.TradeEvent, error) {
	return s.queryTrades(ctx, "recent trades", `SELECT `+tradeColumns+` FROM trades
		ORDER BY block_number DESC, log_index DESC LIMIT ?`, limit)
}

func (s *Store) MarketsByCreator(ctx context.Context, creator string, limit int) ([]model.MarketCreatedEvent, error) {
	return s.queryMarkets(ctx, "markets by creator", `SELECT `+marketColumns+` FROM markets
		WHERE creator = ? ORDER BY block_number DESC, log_index DESC LIMIT ?`,
		strings.ToLower(creator), limit)
}

func (s *Store) RecentMarkets(ctx context.Context, limit int) ([]model.MarketCreatedEvent, error) {
	return s.queryMarkets(ctx, "recent markets", `SELECT `+marketColumns+` FROM markets
		ORDER BY block_number DESC, log_index DESC LIMIT ?`, limit)
}

func (s *Store) Market(ctx context.Context, marketID int64) (model.MarketCreatedEvent, bool, error) {
	markets, err := s.queryMarkets(ctx, "market", `SELECT `+marketColumns+` FROM markets WHERE market_id = ?`, marketID)
	if err != nil || len(markets) == 0 {
		return model.MarketCreatedEvent{}, false, err
	}
	return markets[0], true, nil
}

func (s *Store) Resolution(ctx context.Context, marketID int64) (model.ResolutionEvent, bool, error) {
	var (
		r                        model.ResolutionEvent
		outcome, logIndex, block int64
		indexedAt                string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT market_id, outcome, final_value, tx_hash, log_index, block_number, indexed_at
		FROM resolutions WHERE market_id = ?
	`, marketID).Scan(&r.MarketID, &outcome, &r.FinalValue, &r.TxHash, &logIndex, &block, &indexedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ResolutionEvent{}, false, nil
	}
	if err != nil {
		return model.ResolutionEvent{}, false, storage.Wrap("resolution", err)
	}
	if r.IndexedAt, err = parseTime(indexedAt); err != nil {
		return model.ResolutionEvent{}, false, storage.Wrap("resolution", err)
	}
	r.Outcome = uint8(outcome)
	r.LogIndex = uint64(logIndex)
	r.BlockNumber = uint64(block)
	return r, true, nil
}

func (s *Store) Counts(ctx context.Context) (model.Counts, error) {
	var c model.Counts
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT count(*) FROM trades),
			(SELECT count(*) FROM markets),
			(SELECT count(*) FROM resolutions)
	`).Scan(&c.Trades, &c.Markets, &c.Resolutions)
	if err != nil {
		return model.Counts{}, storage.Wrap("counts", err)
	}
	return c, nil
}

func (s *Store) queryTrades(ctx context.Context, op, query string, args ...any) ([]model.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer rows.Close()

	out := make([]model.TradeEvent, 0)
	for rows.Next() {
		var (
			t               model.TradeEvent
			logIndex, block int64
			indexedAt       string
		)
		if err := rows.Scan(&t.MarketID, &t.Trader, &t.IsYes, &t.IsBuy, &t.USDCAmount, &t.Shares, &t.NewYesPrice,
			&t.TxHash, &logIndex, &block, &indexedAt); err != nil {
			return nil, storage.Wrap(op, err)
		}
		if t.IndexedAt, err = parseTime(indexedAt); err != nil {
			return nil, storage.Wrap(op, err)
		}
		t.LogIndex = uint64(logIndex)
		t.BlockNumber = uint64(block)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, err)
	}
	return out, nil
}

func (s *Store) queryMarkets(ctx context.Context, op, query string, args ...any) ([]model.MarketCreatedEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer rows.Close()

	out := make([]model.MarketCreatedEvent, 0)
	for rows.Next() {
		var (
			m                                     model.MarketCreatedEvent
			marketType, endBlock, logIndex, block int64
			indexedAt                             string
		)
		if err := rows.Scan(&m.MarketID, &marketType, &m.FeedID, &m.Question, &m.TargetValue, &m.EndTime, &endBlock,
			&m.Creator, &m.TxHash, &logIndex, &block, &indexedAt); err != nil {
			return nil, storage.Wrap(op, err)
		}
		if m.IndexedAt, err = parseTime(indexedAt); err != nil {
			return nil, storage.Wrap(op, err)
		}
		m.MarketType = uint8(marketType)
		m.EndBlock = uint64(endBlock)
		m.LogIndex = uint64(logIndex)
		m.BlockNumber = uint64(block)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, err)
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
