package market

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"

	"marketScope/internal/model"
)

// FieldType is the ABI type of an event parameter.
type FieldType int

const (
	Uint256 FieldType = iota
	Uint8
	Address
	Bool
	Bytes32
	String
)

func (t FieldType) String() string {
	switch t {
	case Uint256:
		return "uint256"
	case Uint8:
		return "uint8"
	case Address:
		return "address"
	case Bool:
		return "bool"
	case Bytes32:
		return "bytes32"
	case String:
		return "string"
	default:
		return fmt.Sprintf("FieldType(%d)", int(t))
	}
}

// Field is one event parameter in declaration order.
type Field struct {
	Name    string
	Type    FieldType
	Indexed bool
}

// Value holds a decoded parameter. Which member is set depends on the field type.
type Value struct {
	Num  *uint256.Int
	Text string
	Flag bool
}

// Values maps field names to decoded values.
type Values map[string]Value

// Shape describes the layout of one contract event and how to build its record.
type Shape struct {
	Kind   model.EventKind
	Name   string
	Topic0 common.Hash
	Fields []Field
	build  func(Values, model.Provenance) (model.Event, error)
}

// Signature renders the canonical event signature used for topic0.
func (s Shape) Signature() string {
	sig := s.Name + "("
	for i, f := range s.Fields {
		if i > 0 {
			sig += ","
		}
		sig += f.Type.String()
	}
	return sig + ")"
}

func newShape(kind model.EventKind, name string, fields []Field, build func(Values, model.Provenance) (model.Event, error)) Shape {
	s := Shape{Kind: kind, Name: name, Fields: fields, build: build}
	for _, f := range fields {
		if f.Indexed && f.Type == String {
			panic(fmt.Sprintf("%s.%s: indexed dynamic fields are stored as hashes and are not supported", name, f.Name))
		}
	}
	s.Topic0 = crypto.Keccak256Hash([]byte(s.Signature()))
	return s
}

var (
	// TradeShape is TradeExecuted(uint256 indexed marketId, address indexed trader,
	// bool isYes, bool isBuy, uint256 usdcAmount, uint256 shares, uint256 newYesPrice).
	TradeShape = newShape(model.KindTrade, "TradeExecuted", []Field{
		{Name: "marketId", Type: Uint256, Indexed: true},
		{Name: "trader", Type: Address, Indexed: true},
		{Name: "isYes", Type: Bool},
		{Name: "isBuy", Type: Bool},
		{Name: "usdcAmount", Type: Uint256},
		{Name: "shares", Type: Uint256},
		{Name: "newYesPrice", Type: Uint256},
	}, buildTrade)

	// MarketCreatedShape is MarketCreated(uint256 indexed marketId, uint8 marketType,
	// bytes32 feedId, string question, uint256 targetValue, uint256 endTime,
	// uint256 endBlock, address indexed creator).
	MarketCreatedShape = newShape(model.KindMarketCreated, "MarketCreated", []Field{
		{Name: "marketId", Type: Uint256, Indexed: true},
		{Name: "marketType", Type: Uint8},
		{Name: "feedId", Type: Bytes32},
		{Name: "question", Type: String},
		{Name: "targetValue", Type: Uint256},
		{Name: "endTime", Type: Uint256},
		{Name: "endBlock", Type: Uint256},
		{Name: "creator", Type: Address, Indexed: true},
	}, buildMarketCreated)

	// ResolutionShape is MarketResolved(uint256 indexed marketId, uint8 outcome, uint256 finalValue).
	ResolutionShape = newShape(model.KindResolution, "MarketResolved", []Field{
		{Name: "marketId", Type: Uint256, Indexed: true},
		{Name: "outcome", Type: Uint8},
		{Name: "finalValue", Type: Uint256},
	}, buildResolution)
)

// Shapes returns every known event shape.
func Shapes() []Shape {
	return []Shape{MarketCreatedShape, TradeShape, ResolutionShape}
}

func buildTrade(v Values, prov model.Provenance) (model.Event, error) {
	marketID, err := toInt64(v["marketId"].Num)
	if err != nil {
		return nil, &DecodeError{Kind: model.KindTrade, Field: "marketId", Err: err}
	}
	return model.TradeEvent{
		MarketID:    marketID,
		Trader:      v["trader"].Text,
		IsYes:       v["isYes"].Flag,
		IsBuy:       v["isBuy"].Flag,
		USDCAmount:  v["usdcAmount"].Num.Dec(),
		Shares:      v["shares"].Num.Dec(),
		NewYesPrice: v["newYesPrice"].Num.Dec(),
		Provenance:  prov,
	}, nil
}

func buildMarketCreated(v Values, prov model.Provenance) (model.Event, error) {
	marketID, err := toInt64(v["marketId"].Num)
	if err != nil {
		return nil, &DecodeError{Kind: model.KindMarketCreated, Field: "marketId", Err: err}
	}
	marketType, err := toUint8(v["marketType"].Num)
	if err != nil {
		return nil, &DecodeError{Kind: model.KindMarketCreated, Field: "marketType", Err: err}
	}
	endTime, err := toInt64(v["endTime"].Num)
	if err != nil {
		return nil, &DecodeError{Kind: model.KindMarketCreated, Field: "endTime", Err: err}
	}
	endBlock, err := toUint64(v["endBlock"].Num)
	if err != nil {
		return nil, &DecodeError{Kind: model.KindMarketCreated, Field: "endBlock", Err: err}
	}
	return model.MarketCreatedEvent{
		MarketID:    marketID,
		MarketType:  marketType,
		FeedID:      v["feedId"].Text,
		Question:    v["question"].Text,
		TargetValue: v["targetValue"].Num.Dec(),
		EndTime:     endTime,
		EndBlock:    endBlock,
		Creator:     v["creator"].Text,
		Provenance:  prov,
	}, nil
}

func buildResolution(v Values, prov model.Provenance) (model.Event, error) {
	marketID, err := toInt64(v["marketId"].Num)
	if err != nil {
		return nil, &DecodeError{Kind: model.KindResolution, Field: "marketId", Err: err}
	}
	outcome, err := toUint8(v["outcome"].Num)
	if err != nil {
		return nil, &DecodeError{Kind: model.KindResolution, Field: "outcome", Err: err}
	}
	return model.ResolutionEvent{
		MarketID:   marketID,
		Outcome:    outcome,
		FinalValue: v["finalValue"].Num.Dec(),
		Provenance: prov,
	}, nil
}
