package market

import (
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"marketScope/internal/model"
)

const marketABIJSON = `[
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "marketId", "type": "uint256"},
      {"indexed": true, "name": "trader", "type": "address"},
      {"indexed": false, "name": "isYes", "type": "bool"},
      {"indexed": false, "name": "isBuy", "type": "bool"},
      {"indexed": false, "name": "usdcAmount", "type": "uint256"},
      {"indexed": false, "name": "shares", "type": "uint256"},
      {"indexed": false, "name": "newYesPrice", "type": "uint256"}
    ],
    "name": "TradeExecuted",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "marketId", "type": "uint256"},
      {"indexed": false, "name": "marketType", "type": "uint8"},
      {"indexed": false, "name": "feedId", "type": "bytes32"},
      {"indexed": false, "name": "question", "type": "string"},
      {"indexed": false, "name": "targetValue", "type": "uint256"},
      {"indexed": false, "name": "endTime", "type": "uint256"},
      {"indexed": false, "name": "endBlock", "type": "uint256"},
      {"indexed": true, "name": "creator", "type": "address"}
    ],
    "name": "MarketCreated",
    "type": "event"
  },
  {
    "anonymous": false,
    "inputs": [
      {"indexed": true, "name": "marketId", "type": "uint256"},
      {"indexed": false, "name": "outcome", "type": "uint8"},
      {"indexed": false, "name": "finalValue", "type": "uint256"}
    ],
    "name": "MarketResolved",
    "type": "event"
  }
]`

func testABI(t *testing.T) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(marketABIJSON))
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	return parsed
}

func TestShapeTopicsMatchABI(t *testing.T) {
	parsed := testABI(t)
	cases := map[string]Shape{
		"TradeExecuted":  TradeShape,
		"MarketCreated":  MarketCreatedShape,
		"MarketResolved": ResolutionShape,
	}
	for name, shape := range cases {
		if parsed.Events[name].ID != shape.Topic0 {
			t.Fatalf("%s topic0 mismatch: %s != %s", name, shape.Topic0.Hex(), parsed.Events[name].ID.Hex())
		}
	}
}

func TestDecodeTrade(t *testing.T) {
	parsed := testABI(t)
	decoder := newTestDecoder(t)

	trader := common.HexToAddress("0xAbCdEf0123456789aBCdef0123456789ABCDEF01")
	price, _ := new(big.Int).SetString("620000000000000000", 10)
	data, err := parsed.Events["TradeExecuted"].Inputs.NonIndexed().Pack(
		true,
		false,
		big.NewInt(1000000000),
		big.NewInt(1612903225),
		price,
	)
	if err != nil {
		t.Fatalf("pack trade: %v", err)
	}

	raw := buildRawLog(TradeShape.Topic0, data, common.BigToHash(big.NewInt(42)), topicFromAddress(trader))
	event, err := decoder.Decode(raw)
	if err != nil {
		t.Fatalf("decode trade: %v", err)
	}

	trade, ok := event.(model.TradeEvent)
	if !ok {
		t.Fatalf("decoded type mismatch: %T", event)
	}
	if trade.MarketID != 42 {
		t.Fatalf("market id mismatch: %d", trade.MarketID)
	}
	if trade.Trader != strings.ToLower(trader.Hex()) {
		t.Fatalf("trader should be lowercase: %s", trade.Trader)
	}
	if !trade.IsYes || trade.IsBuy {
		t.Fatalf("side flags mismatch: %+v", trade)
	}
	if trade.USDCAmount != "1000000000" || trade.Shares != "1612903225" || trade.NewYesPrice != "620000000000000000" {
		t.Fatalf("amounts mismatch: %+v", trade)
	}
	if trade.BlockNumber != 12345 || trade.LogIndex != 1 || trade.TxHash != "0xdef0" {
		t.Fatalf("provenance mismatch: %+v", trade.Provenance)
	}
	if !trade.IndexedAt.IsZero() {
		t.Fatalf("decoder must not stamp indexedAt")
	}
}

func TestDecodeTradeFull256BitAmount(t *testing.T) {
	parsed := testABI(t)
	decoder := newTestDecoder(t)

	maxUint := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	data, err := parsed.Events["TradeExecuted"].Inputs.NonIndexed().Pack(false, true, maxUint, maxUint, big.NewInt(0))
	if err != nil {
		t.Fatalf("pack trade: %v", err)
	}

	raw := buildRawLog(TradeShape.Topic0, data, common.BigToHash(big.NewInt(1)), topicFromAddress(common.Address{}))
	event, err := decoder.Decode(raw)
	if err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	trade := event.(model.TradeEvent)
	if trade.USDCAmount != maxUint.String() || trade.Shares != maxUint.String() {
		t.Fatalf("precision lost: %s", trade.USDCAmount)
	}
}

func TestDecodeMarketCreatedQuestionLengths(t *testing.T) {
	cases := []struct {
		name     string
		question string
	}{
		{"empty", ""},
		{"short", "Will ETH close above $4k?"},
		{"one word exactly", strings.Repeat("q", 32)},
		{"two words exactly", strings.Repeat("a", 64)},
		{"longer than a word", "Will the BTC/USD feed print above 100000 by Friday?!?"},
		{"multibyte", "Будет ли курс выше 3000? 📈"},
	}

	parsed := testABI(t)
	decoder := newTestDecoder(t)
	creator := common.HexToAddress("0x9999999999999999999999999999999999999999")
	var feedID [32]byte
	copy(feedID[:], common.FromHex("0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace"))

	if len(cases[4].question) != 53 {
		t.Fatalf("fixture should be 53 bytes, got %d", len(cases[4].question))
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := parsed.Events["MarketCreated"].Inputs.NonIndexed().Pack(
				uint8(1),
				feedID,
				tc.question,
				big.NewInt(350000000000),
				big.NewInt(1735689600),
				big.NewInt(1500000),
			)
			if err != nil {
				t.Fatalf("pack market: %v", err)
			}

			raw := buildRawLog(MarketCreatedShape.Topic0, data, common.BigToHash(big.NewInt(3)), topicFromAddress(creator))
			event, err := decoder.Decode(raw)
			if err != nil {
				t.Fatalf("decode market: %v", err)
			}

			market, ok := event.(model.MarketCreatedEvent)
			if !ok {
				t.Fatalf("decoded type mismatch: %T", event)
			}
			if market.Question != tc.question {
				t.Fatalf("question mismatch: %q != %q", market.Question, tc.question)
			}
			if market.MarketID != 3 || market.MarketType != 1 {
				t.Fatalf("header mismatch: %+v", market)
			}
			if market.FeedID != hexutil.Encode(feedID[:]) {
				t.Fatalf("feed id mismatch: %s", market.FeedID)
			}
			if market.TargetValue != "350000000000" || market.EndTime != 1735689600 || market.EndBlock != 1500000 {
				t.Fatalf("values mismatch: %+v", market)
			}
			if market.Creator != strings.ToLower(creator.Hex()) {
				t.Fatalf("creator mismatch: %s", market.Creator)
			}
		})
	}
}

func TestDecodeMarketCreatedMalformedTail(t *testing.T) {
	parsed := testABI(t)
	decoder := newTestDecoder(t)

	data, err := parsed.Events["MarketCreated"].Inputs.NonIndexed().Pack(
		uint8(0), [32]byte{}, "Will it rain tomorrow in Lisbon?", big.NewInt(1), big.NewInt(2), big.NewInt(3),
	)
	if err != nil {
		t.Fatalf("pack market: %v", err)
	}

	corrupt := func(mutate func([]byte) []byte) model.RawLog {
		buf := append([]byte(nil), data...)
		return buildRawLog(MarketCreatedShape.Topic0, mutate(buf), common.BigToHash(big.NewInt(1)), topicFromAddress(common.Address{}))
	}

	cases := map[string]model.RawLog{
		"offset past end": corrupt(func(b []byte) []byte {
			copy(b[2*32:3*32], common.BigToHash(big.NewInt(int64(len(b)+32))).Bytes())
			return b
		}),
		"offset overflows uint64": corrupt(func(b []byte) []byte {
			for i := 2 * 32; i < 3*32; i++ {
				b[i] = 0xff
			}
			return b
		}),
		"length past end": corrupt(func(b []byte) []byte {
			copy(b[6*32:7*32], common.BigToHash(big.NewInt(1000)).Bytes())
			return b
		}),
		"truncated payload": corrupt(func(b []byte) []byte {
			return b[:len(b)-40]
		}),
		"truncated head": corrupt(func(b []byte) []byte {
			return b[:3*32]
		}),
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decoder.Decode(raw)
			if err == nil {
				t.Fatalf("expected decode error")
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Fatalf("expected DecodeError, got %T: %v", err, err)
			}
			if decodeErr.Kind != model.KindMarketCreated {
				t.Fatalf("kind mismatch: %s", decodeErr.Kind)
			}
		})
	}
}

func TestDecodeResolution(t *testing.T) {
	parsed := testABI(t)
	decoder := newTestDecoder(t)

	data, err := parsed.Events["MarketResolved"].Inputs.NonIndexed().Pack(uint8(2), big.NewInt(420000))
	if err != nil {
		t.Fatalf("pack resolution: %v", err)
	}

	event, err := decoder.Decode(buildRawLog(ResolutionShape.Topic0, data, common.BigToHash(big.NewInt(9))))
	if err != nil {
		t.Fatalf("decode resolution: %v", err)
	}
	res := event.(model.ResolutionEvent)
	if res.MarketID != 9 || res.Outcome != 2 || res.FinalValue != "420000" {
		t.Fatalf("resolution mismatch: %+v", res)
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	decoder := newTestDecoder(t)
	raw := buildRawLog(common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"), nil)

	if decoder.CanDecode(raw.Topic0()) {
		t.Fatalf("transfer topic should not be decodable")
	}
	_, err := decoder.Decode(raw)
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestDecodeTopicCountMismatch(t *testing.T) {
	decoder := newTestDecoder(t)
	raw := buildRawLog(TradeShape.Topic0, make([]byte, 5*32), common.BigToHash(big.NewInt(1)))

	_, err := decoder.Decode(raw)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestDecodeBoolRequiresOne(t *testing.T) {
	decoder := newTestDecoder(t)
	data := make([]byte, 5*32)
	data[31] = 2
	data[63] = 1

	event, err := decoder.Decode(buildRawLog(TradeShape.Topic0, data, common.BigToHash(big.NewInt(1)), topicFromAddress(common.Address{})))
	if err != nil {
		t.Fatalf("decode trade: %v", err)
	}
	trade := event.(model.TradeEvent)
	if trade.IsYes || !trade.IsBuy {
		t.Fatalf("bool decode mismatch: %+v", trade)
	}
}

func TestDecoderTopic0Map(t *testing.T) {
	alias := common.HexToHash("0x1234000000000000000000000000000000000000000000000000000000005678")
	decoder, err := NewDecoder(DecoderConfig{Topic0Map: map[string]string{alias.Hex(): "MarketResolved"}})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	data := make([]byte, 2*32)
	data[31] = 1

	event, err := decoder.Decode(buildRawLog(alias, data, common.BigToHash(big.NewInt(5))))
	if err != nil {
		t.Fatalf("decode aliased resolution: %v", err)
	}
	if event.Kind() != model.KindResolution {
		t.Fatalf("kind mismatch: %s", event.Kind())
	}
	if len(decoder.TopicsByKind()[model.KindResolution]) != 2 {
		t.Fatalf("expected original and alias topics")
	}

	if _, err := NewDecoder(DecoderConfig{Topic0Map: map[string]string{alias.Hex(): "Swap"}}); err == nil {
		t.Fatalf("expected error for unknown event name")
	}
}

func TestDecodeIsDeterministic(t *testing.T) {
	decoder := newTestDecoder(t)
	raw := buildRawLog(ResolutionShape.Topic0, make([]byte, 2*32), common.BigToHash(big.NewInt(1)))

	first, err1 := decoder.Decode(raw)
	second, err2 := decoder.Decode(raw)
	if err1 != nil || err2 != nil {
		t.Fatalf("decode failed: %v %v", err1, err2)
	}
	if first != second {
		t.Fatalf("decode not deterministic: %+v != %+v", first, second)
	}
}

func newTestDecoder(t *testing.T) *Decoder {
	t.Helper()
	decoder, err := NewDecoder(DecoderConfig{})
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}
	return decoder
}

func buildRawLog(topic0 common.Hash, data []byte, indexed ...common.Hash) model.RawLog {
	topics := make([]string, 0, len(indexed)+1)
	topics = append(topics, topic0.Hex())
	for _, topic := range indexed {
		topics = append(topics, topic.Hex())
	}

	return model.RawLog{
		BlockNumber: 12345,
		BlockHash:   "0xabc",
		TxHash:      "0xDEF0",
		LogIndex:    1,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics:      topics,
		Data:        hexutil.Encode(data),
	}
}

func topicFromAddress(addr common.Address) common.Hash {
	return common.BytesToHash(addr.Bytes())
}
