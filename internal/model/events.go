package model

import "time"

// EventKind names one of the indexed contract events.
type EventKind string

const (
	KindTrade         EventKind = "trade"
	KindMarketCreated EventKind = "market_created"
	KindResolution    EventKind = "resolution"
)

// Event is implemented by every decoded contract event.
type Event interface {
	Kind() EventKind
	Source() Provenance
}

// Provenance locates an event on chain and records when it was stored.
type Provenance struct {
	TxHash      string    `json:"transactionHash"`
	LogIndex    uint64    `json:"logIndex"`
	BlockNumber uint64    `json:"blockNumber"`
	IndexedAt   time.Time `json:"indexedAt"`
}

// TradeEvent is one TradeExecuted log. Amounts are base-10 strings of uint256 values.
type TradeEvent struct {
	MarketID    int64  `json:"marketId"`
	Trader      string `json:"trader"`
	IsYes       bool   `json:"isYes"`
	IsBuy       bool   `json:"isBuy"`
	USDCAmount  string `json:"usdcAmount"`
	Shares      string `json:"shares"`
	NewYesPrice string `json:"newYesPrice"`
	Provenance
}

func (TradeEvent) Kind() EventKind { return KindTrade }
func (e TradeEvent) Source() Provenance { return e.Provenance }

// MarketCreatedEvent is one MarketCreated log.
type MarketCreatedEvent struct {
	MarketID    int64  `json:"marketId"`
	MarketType  uint8  `json:"marketType"`
	FeedID      string `json:"feedId"`
	Question    string `json:"question"`
	TargetValue string `json:"targetValue"`
	EndTime     int64  `json:"endTime"`
	EndBlock    uint64 `json:"endBlock"`
	Creator     string `json:"creator"`
	Provenance
}

func (MarketCreatedEvent) Kind() EventKind { return KindMarketCreated }
func (e MarketCreatedEvent) Source() Provenance { return e.Provenance }

// ResolutionEvent is one MarketResolved log.
type ResolutionEvent struct {
	MarketID   int64  `json:"marketId"`
	Outcome    uint8  `json:"outcome"`
	FinalValue string `json:"finalValue"`
	Provenance
}

func (ResolutionEvent) Kind() EventKind { return KindResolution }
func (e ResolutionEvent) Source() Provenance { return e.Provenance }
