package indexer

import "fmt"

// BlockRange represents an inclusive block range.
type BlockRange struct {
	From uint64
	To   uint64
}

// NextRange returns the window one pass fetches when the cursor is at cursor
// and the chain head is head: [cursor, min(cursor+batchSize, head)].
// The cursor block itself is fetched again; duplicates are absorbed by the store.
// ok is false when there is nothing new.
func NextRange(cursor, head, batchSize uint64) (BlockRange, bool) {
	if cursor >= head {
		return BlockRange{}, false
	}
	if batchSize == 0 {
		batchSize = 1
	}
	to := head
	if head-cursor > batchSize {
		to = cursor + batchSize
	}
	return BlockRange{From: cursor, To: to}, true
}

// SplitRange splits a block range into batches of size batchSize.
func SplitRange(from, to, batchSize uint64) ([]BlockRange, error) {
	if batchSize == 0 {
		return nil, fmt.Errorf("batch size must be greater than zero")
	}
	if to < from {
		return nil, fmt.Errorf("to block must be >= from block")
	}

	ranges := make([]BlockRange, 0)
	start := from
	for start <= to {
		remaining := to - start + 1
		var end uint64
		if remaining <= batchSize {
			end = to
		} else {
			end = start + batchSize - 1
		}
		ranges = append(ranges, BlockRange{From: start, To: end})
		if end == to {
			break
		}
		start = end + 1
	}

	return ranges, nil
}
