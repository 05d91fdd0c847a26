package model

import "time"

// Counts holds table totals.
type Counts struct {
	Trades      int64 `json:"totalTrades"`
	Markets     int64 `json:"totalMarkets"`
	Resolutions int64 `json:"totalResolutions"`
}

// Stats is the /stats payload.
type Stats struct {
	Counts
	LastProcessedBlock uint64     `json:"lastProcessedBlock"`
	LastUpdatedAt      *time.Time `json:"lastUpdatedAt"`
}

// PricePoint is one sample of the YES/NO price after a trade.
type PricePoint struct {
	BlockNumber uint64 `json:"blockNumber"`
	TxHash      string `json:"transactionHash"`
	YesPrice    Cents  `json:"yesPrice"`
	NoPrice     Cents  `json:"noPrice"`
}

// ActivityItem is one entry of the global feed. Exactly one of Trade/Market is set.
type ActivityItem struct {
	Type        EventKind           `json:"type"`
	BlockNumber uint64              `json:"blockNumber"`
	LogIndex    uint64              `json:"logIndex"`
	Trade       *TradeEvent         `json:"trade,omitempty"`
	Market      *MarketCreatedEvent `json:"market,omitempty"`
}
