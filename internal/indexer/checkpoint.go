package indexer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Checkpoint tracks how far an export has progressed for one contract.
type Checkpoint struct {
	Contract          string `json:"contract"`
	LastExportedBlock uint64 `json:"last_exported_block"`
	UpdatedAt         string `json:"updated_at"`
}

// CheckpointStore persists export checkpoints to disk. An empty path disables it.
type CheckpointStore struct {
	path string
}

func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Load returns ok=false when there is no checkpoint or it belongs to another contract.
func (c *CheckpointStore) Load(contract string) (Checkpoint, bool, error) {
	if c.path == "" {
		return Checkpoint{}, false, nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Checkpoint{}, false, nil
		}
		return Checkpoint{}, false, fmt.Errorf("read checkpoint: %w", err)
	}

	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, false, fmt.Errorf("parse checkpoint: %w", err)
	}
	if !strings.EqualFold(cp.Contract, contract) {
		return Checkpoint{}, false, nil
	}
	return cp, true, nil
}

// Save writes the checkpoint atomically via a temp file and rename.
func (c *CheckpointStore) Save(contract string, lastExported uint64) error {
	if c.path == "" {
		return nil
	}

	if dir := filepath.Dir(c.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create checkpoint dir: %w", err)
		}
	}

	data, err := json.Marshal(Checkpoint{
		Contract:          strings.ToLower(contract),
		LastExportedBlock: lastExported,
		UpdatedAt:         time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	tmpPath := c.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint tmp: %w", err)
	}
	if err := os.Rename(tmpPath, c.path); err != nil {
		return fmt.Errorf("rename checkpoint: %w", err)
	}
	return nil
}
