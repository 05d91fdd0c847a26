package indexer

import (
	"context"
	"fmt"
	"time"

	"marketScope/internal/metrics"
	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// Cursor reads and advances the persisted sync state.
type Cursor struct {
	store           storage.Store
	deploymentBlock uint64
}

func NewCursor(store storage.Store, deploymentBlock uint64) *Cursor {
	return &Cursor{store: store, deploymentBlock: deploymentBlock}
}

// Get returns the last processed block, or the deployment block on a fresh store.
func (c *Cursor) Get(ctx context.Context) (uint64, error) {
	start := time.Now()
	state, ok, err := c.store.LoadSyncState(ctx)
	metrics.ObserveStore("load_sync_state", start, err)
	if err != nil {
		return 0, fmt.Errorf("load cursor: %w", err)
	}
	if !ok {
		return c.deploymentBlock, nil
	}
	return state.LastProcessedBlock, nil
}

// State returns the stored sync state. A fresh store reports the deployment block
// and a zero LastUpdatedAt.
func (c *Cursor) State(ctx context.Context) (model.SyncState, error) {
	state, ok, err := c.store.LoadSyncState(ctx)
	if err != nil {
		return model.SyncState{}, fmt.Errorf("load cursor: %w", err)
	}
	if !ok {
		return model.SyncState{LastProcessedBlock: c.deploymentBlock}, nil
	}
	return state, nil
}

// Advance records block as processed. The store never lets the value decrease.
func (c *Cursor) Advance(ctx context.Context, block uint64) error {
	start := time.Now()
	err := c.store.SaveSyncState(ctx, block)
	metrics.ObserveStore("save_sync_state", start, err)
	if err != nil {
		return fmt.Errorf("advance cursor to %d: %w", block, err)
	}
	metrics.CursorBlock.Set(float64(block))
	return nil
}
