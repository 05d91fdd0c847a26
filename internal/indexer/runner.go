package indexer

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"marketScope/internal/chain"
	"marketScope/internal/lease"
	"marketScope/internal/market"
	"marketScope/internal/metrics"
	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// LogSource is the part of the chain client a pass needs.
type LogSource interface {
	BlockNumber(ctx context.Context) (uint64, error)
	FetchLogs(ctx context.Context, q chain.LogQuery) ([]model.RawLog, error)
}

// RunConfig holds runtime settings for the indexer.
type RunConfig struct {
	Contract        common.Address
	DeploymentBlock uint64
	BatchSize       uint64
	MaxRetries      int
	RetryBackoff    time.Duration
	LeaseKey        string
	LeaseTTL        time.Duration
}

const defaultLeaseKey = "market-indexer-pass"

// Runner executes indexing passes: fetch a block window, decode, store, advance the cursor.
type Runner struct {
	cfg     RunConfig
	source  LogSource
	store   storage.Store
	decoder *market.Decoder
	cursor  *Cursor
	locker  lease.Locker
	logger  *zap.Logger
	now     func() time.Time

	phaseMu sync.Mutex
	phase   Phase
}

// NewRunner builds a Runner with its dependencies. A nil locker means an in-process lease.
func NewRunner(cfg RunConfig, source LogSource, store storage.Store, decoder *market.Decoder, locker lease.Locker, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if locker == nil {
		locker = lease.NewLocal()
	}
	if cfg.LeaseKey == "" {
		cfg.LeaseKey = defaultLeaseKey
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = 5 * time.Minute
	}
	return &Runner{
		cfg:     cfg,
		source:  source,
		store:   store,
		decoder: decoder,
		cursor:  NewCursor(store, cfg.DeploymentBlock),
		locker:  locker,
		logger:  logger,
		now:     time.Now,
		phase:   PhaseIdle,
	}
}

// Cursor exposes the runner's sync-state tracker.
func (r *Runner) Cursor() *Cursor {
	return r.cursor
}

// RunPass performs one indexing pass. A pass that loses the lease returns status
// busy without touching the store. On error the cursor is left where it was, so
// the next pass repeats the same window.
func (r *Runner) RunPass(ctx context.Context) (model.PassSummary, error) {
	if r.source == nil {
		return model.PassSummary{}, fmt.Errorf("chain client is nil")
	}
	if r.store == nil {
		return model.PassSummary{}, fmt.Errorf("store is nil")
	}
	if r.decoder == nil {
		return model.PassSummary{}, fmt.Errorf("decoder is nil")
	}
	if r.cfg.BatchSize == 0 {
		return model.PassSummary{}, fmt.Errorf("batch size must be greater than zero")
	}

	start := r.now()
	summary := model.PassSummary{Kinds: make(map[model.EventKind]model.KindCounts)}

	release, err := r.locker.Acquire(ctx, r.cfg.LeaseKey, r.cfg.LeaseTTL)
	if errors.Is(err, lease.ErrLeaseHeld) {
		summary.Status = model.PassBusy
		r.finish(&summary, start)
		r.logger.Info("pass skipped, another pass holds the lease")
		return summary, nil
	}
	if err != nil {
		metrics.PassesTotal.WithLabelValues("error").Inc()
		return summary, fmt.Errorf("acquire lease: %w", err)
	}
	defer release()
	defer r.setPhase(PhaseIdle)

	summary, err = r.runLocked(ctx, summary)
	if err != nil {
		summary.Status = model.PassFailed
		summary.ElapsedMs = r.now().Sub(start).Milliseconds()
		metrics.PassesTotal.WithLabelValues("error").Inc()
		r.logger.Error("pass failed", zap.Error(err), zap.Uint64("from", summary.FromBlock), zap.Uint64("to", summary.ToBlock))
		return summary, err
	}
	r.finish(&summary, start)
	return summary, nil
}

func (r *Runner) runLocked(ctx context.Context, summary model.PassSummary) (model.PassSummary, error) {
	from, err := r.cursor.Get(ctx)
	if err != nil {
		return summary, err
	}

	head, err := r.headWithRetry(ctx)
	if err != nil {
		return summary, fmt.Errorf("get chain head: %w", err)
	}
	metrics.ChainHead.Set(float64(head))
	summary.Head = head

	window, ok := NextRange(from, head, r.cfg.BatchSize)
	if !ok {
		summary.Status = model.PassUpToDate
		summary.FromBlock, summary.ToBlock = from, from
		return summary, nil
	}
	summary.FromBlock, summary.ToBlock = window.From, window.To

	r.setPhase(PhaseFetching)
	r.logger.Info("fetch logs", zap.Uint64("from", window.From), zap.Uint64("to", window.To), zap.Uint64("head", head))
	logs, err := r.fetchWindow(ctx, window)
	if err != nil {
		return summary, fmt.Errorf("fetch logs: %w", err)
	}

	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Before(logs[j]) })

	r.setPhase(PhaseCommitting)
	r.logger.Debug("commit logs", zap.Int("logs", len(logs)), zap.Uint64("to", window.To))

	indexedAt := r.now().UTC()
	for _, log := range logs {
		if err := r.apply(ctx, log, indexedAt, &summary); err != nil {
			return summary, err
		}
	}

	if err := r.cursor.Advance(ctx, window.To); err != nil {
		return summary, err
	}
	summary.Status = model.PassIndexed
	return summary, nil
}

// apply decodes and stores one log. Only store failures are returned.
func (r *Runner) apply(ctx context.Context, log model.RawLog, indexedAt time.Time, summary *model.PassSummary) error {
	event, err := r.decoder.Decode(log)
	if errors.Is(err, market.ErrUnknownEvent) {
		summary.Skipped++
		return nil
	}
	var decodeErr *market.DecodeError
	if errors.As(err, &decodeErr) {
		counts := summary.Kinds[decodeErr.Kind]
		counts.Found++
		counts.Failed++
		summary.Kinds[decodeErr.Kind] = counts
		metrics.EventsTotal.WithLabelValues(string(decodeErr.Kind), "failed").Inc()
		r.logger.Warn("decode failed",
			zap.Error(err),
			zap.Uint64("block_number", log.BlockNumber),
			zap.String("tx_hash", log.TxHash),
			zap.Uint64("log_index", log.LogIndex),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("decode log %s:%d: %w", log.TxHash, log.LogIndex, err)
	}

	kind := event.Kind()
	counts := summary.Kinds[kind]
	counts.Found++

	inserted, err := r.insert(ctx, event, indexedAt)
	if err != nil {
		summary.Kinds[kind] = counts
		return fmt.Errorf("store %s %s:%d: %w", kind, log.TxHash, log.LogIndex, err)
	}
	if inserted {
		counts.Inserted++
		metrics.EventsTotal.WithLabelValues(string(kind), "inserted").Inc()
	} else {
		counts.Duplicates++
		metrics.EventsTotal.WithLabelValues(string(kind), "duplicate").Inc()
	}
	summary.Kinds[kind] = counts
	return nil
}

func (r *Runner) insert(ctx context.Context, event model.Event, indexedAt time.Time) (inserted bool, err error) {
	start := time.Now()
	defer func() { metrics.ObserveStore("insert_"+string(event.Kind()), start, err) }()

	switch e := event.(type) {
	case model.TradeEvent:
		e.IndexedAt = indexedAt
		return r.store.InsertTrade(ctx, e)
	case model.MarketCreatedEvent:
		e.IndexedAt = indexedAt
		return r.store.InsertMarket(ctx, e)
	case model.ResolutionEvent:
		e.IndexedAt = indexedAt
		return r.store.InsertResolution(ctx, e)
	default:
		return false, fmt.Errorf("unsupported event type %T", event)
	}
}

// fetchWindow issues one eth_getLogs per event kind concurrently. Any failure
// aborts the whole window.
func (r *Runner) fetchWindow(ctx context.Context, window BlockRange) ([]model.RawLog, error) {
	byKind := r.decoder.TopicsByKind()
	kinds := make([]model.EventKind, 0, len(byKind))
	for kind := range byKind {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })

	results := make([][]model.RawLog, len(kinds))
	g, gctx := errgroup.WithContext(ctx)
	for i, kind := range kinds {
		i, kind := i, kind
		g.Go(func() error {
			q := chain.LogQuery{
				Address:   r.cfg.Contract,
				FromBlock: window.From,
				ToBlock:   window.To,
				Topic0:    byKind[kind],
			}
			return withRetry(gctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
				logs, err := r.source.FetchLogs(ctx, q)
				if err != nil {
					r.logger.Warn("fetch logs failed", zap.Error(err), zap.String("kind", string(kind)),
						zap.Uint64("from", window.From), zap.Uint64("to", window.To))
					return err
				}
				results[i] = logs
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := 0
	for _, logs := range results {
		total += len(logs)
	}
	out := make([]model.RawLog, 0, total)
	for _, logs := range results {
		out = append(out, logs...)
	}
	return out, nil
}

func (r *Runner) headWithRetry(ctx context.Context) (uint64, error) {
	var head uint64
	err := withRetry(ctx, r.cfg.MaxRetries, r.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		head, err = r.source.BlockNumber(ctx)
		if err != nil {
			r.logger.Warn("block number fetch failed", zap.Error(err))
		}
		return err
	})
	return head, err
}

func (r *Runner) finish(summary *model.PassSummary, start time.Time) {
	elapsed := r.now().Sub(start)
	summary.ElapsedMs = elapsed.Milliseconds()
	metrics.PassesTotal.WithLabelValues(summary.Status).Inc()
	if summary.Status == model.PassIndexed {
		metrics.PassDuration.Observe(elapsed.Seconds())
	}
	r.logger.Info("pass complete",
		zap.String("status", summary.Status),
		zap.Uint64("from", summary.FromBlock),
		zap.Uint64("to", summary.ToBlock),
		zap.Uint64("head", summary.Head),
		zap.Int("inserted", summary.Inserted()),
		zap.Int("skipped", summary.Skipped),
		zap.Int64("elapsed_ms", summary.ElapsedMs),
	)
}
