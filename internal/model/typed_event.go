package model

// TypedEvent is the JSONL form of a decoded log written by the decode command.
type TypedEvent struct {
	BlockNumber uint64     `json:"block_number"`
	TxHash      string     `json:"tx_hash"`
	LogIndex    uint64     `json:"log_index"`
	Address     string     `json:"address"`
	EventName   EventKind  `json:"event_name"`
	Decoded     Event      `json:"decoded"`
	Raw         *RawLogRef `json:"raw,omitempty"`
}

// RawLogRef keeps a minimal raw reference for traceability.
type RawLogRef struct {
	Topic0 string `json:"topic0"`
	Data   string `json:"data"`
}

// NewTypedEvent wraps a decoded event with its source log.
func NewTypedEvent(log RawLog, event Event) TypedEvent {
	return TypedEvent{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		EventName:   event.Kind(),
		Decoded:     event,
		Raw:         &RawLogRef{Topic0: log.Topic0(), Data: log.Data},
	}
}
