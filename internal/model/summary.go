package model

// Pass outcomes reported in PassSummary.Status.
const (
	PassIndexed  = "indexed"
	PassUpToDate = "up_to_date"
	PassBusy     = "busy"
	PassFailed   = "failed"
)

// KindCounts tallies one event kind within a pass.
type KindCounts struct {
	Found      int `json:"found"`
	Inserted   int `json:"inserted"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
}

// PassSummary is the result of one indexing pass.
type PassSummary struct {
	Status    string                   `json:"status"`
	FromBlock uint64                   `json:"fromBlock"`
	ToBlock   uint64                   `json:"toBlock"`
	Head      uint64                   `json:"head"`
	Kinds     map[EventKind]KindCounts `json:"events"`
	Skipped   int                      `json:"skipped"`
	ElapsedMs int64                    `json:"elapsedMs"`
}

// Inserted returns the total rows written across kinds.
func (s PassSummary) Inserted() int {
	total := 0
	for _, c := range s.Kinds {
		total += c.Inserted
	}
	return total
}
