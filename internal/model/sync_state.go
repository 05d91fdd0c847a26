package model

import "time"

// SyncState is the indexer cursor: the last block whose logs are fully stored.
type SyncState struct {
	LastProcessedBlock uint64    `json:"lastProcessedBlock"`
	LastUpdatedAt      time.Time `json:"lastUpdatedAt"`
}
