package market

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"marketScope/internal/model"
)

// ErrUnknownEvent is returned for logs whose topic0 is not in the table.
// Callers skip such logs.
var ErrUnknownEvent = errors.New("unknown event signature")

// DecodeError reports malformed data for a recognized event.
type DecodeError struct {
	Kind  model.EventKind
	Field string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode %s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("decode %s.%s: %v", e.Kind, e.Field, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Decode extracts the shape's fields from a raw log. It performs no I/O.
func (s Shape) Decode(log model.RawLog) (model.Event, error) {
	if !strings.EqualFold(log.Topic0(), s.Topic0.Hex()) {
		return nil, &DecodeError{Kind: s.Kind, Err: fmt.Errorf("topic0 %s does not match %s", log.Topic0(), s.Name)}
	}

	indexedCount := 0
	for _, f := range s.Fields {
		if f.Indexed {
			indexedCount++
		}
	}
	if len(log.Topics) != indexedCount+1 {
		return nil, &DecodeError{Kind: s.Kind, Err: fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(log.Topics))}
	}

	data, err := parsePayload(log.Data)
	if err != nil {
		return nil, &DecodeError{Kind: s.Kind, Err: err}
	}

	values := make(Values, len(s.Fields))
	topicIdx, headIdx := 1, 0
	for _, f := range s.Fields {
		var value Value
		if f.Indexed {
			word, err := parseTopic(log.Topics[topicIdx])
			topicIdx++
			if err != nil {
				return nil, &DecodeError{Kind: s.Kind, Field: f.Name, Err: err}
			}
			value, err = decodeWord(f, word)
			if err != nil {
				return nil, &DecodeError{Kind: s.Kind, Field: f.Name, Err: err}
			}
		} else {
			value, err = decodeHead(f, data, headIdx)
			headIdx++
			if err != nil {
				return nil, &DecodeError{Kind: s.Kind, Field: f.Name, Err: err}
			}
		}
		values[f.Name] = value
	}

	prov := model.Provenance{
		TxHash:      strings.ToLower(log.TxHash),
		LogIndex:    log.LogIndex,
		BlockNumber: log.BlockNumber,
	}
	return s.build(values, prov)
}

func decodeHead(f Field, data payload, i int) (Value, error) {
	if f.Type == String {
		text, err := data.dynamicString(i)
		if err != nil {
			return Value{}, err
		}
		return Value{Text: text}, nil
	}
	word, err := data.slot(i)
	if err != nil {
		return Value{}, err
	}
	return decodeWord(f, word)
}

func decodeWord(f Field, word []byte) (Value, error) {
	switch f.Type {
	case Uint256:
		return Value{Num: wordUint(word)}, nil
	case Uint8:
		num := wordUint(word)
		if _, err := toUint8(num); err != nil {
			return Value{}, err
		}
		return Value{Num: num}, nil
	case Address:
		return Value{Text: wordAddress(word)}, nil
	case Bool:
		return Value{Flag: wordBool(word)}, nil
	case Bytes32:
		return Value{Text: wordBytes32(word)}, nil
	default:
		return Value{}, fmt.Errorf("unsupported static type %s", f.Type)
	}
}

// DecoderConfig configures decoder behavior.
type DecoderConfig struct {
	// Topic0Map adds topic0 aliases for known kinds, e.g. for a redeployed
	// contract whose events were renamed but kept their layout.
	Topic0Map map[string]string
}

// Decoder routes logs to their shape by topic0.
type Decoder struct {
	byTopic map[string]Shape
}

// NewDecoder builds a decoder over the static shape table plus configured aliases.
func NewDecoder(cfg DecoderConfig) (*Decoder, error) {
	byTopic := make(map[string]Shape)
	byKind := make(map[model.EventKind]Shape)
	for _, s := range Shapes() {
		byTopic[strings.ToLower(s.Topic0.Hex())] = s
		byKind[s.Kind] = s
	}

	for topic0, name := range cfg.Topic0Map {
		kind := normalizeKind(name)
		shape, ok := byKind[kind]
		if !ok {
			return nil, fmt.Errorf("unsupported event name in topic0 map: %s", name)
		}
		if topic0 == "" {
			continue
		}
		word, err := parseTopic(topic0)
		if err != nil {
			return nil, fmt.Errorf("topic0 map: %w", err)
		}
		shape.Topic0 = common.BytesToHash(word)
		byTopic[strings.ToLower(shape.Topic0.Hex())] = shape
	}

	return &Decoder{byTopic: byTopic}, nil
}

// CanDecode checks if the topic0 is supported.
func (d *Decoder) CanDecode(topic0 string) bool {
	_, ok := d.byTopic[strings.ToLower(topic0)]
	return ok
}

// Decode converts a raw log into its typed event.
func (d *Decoder) Decode(log model.RawLog) (model.Event, error) {
	shape, ok := d.byTopic[log.Topic0()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, log.Topic0())
	}
	return shape.Decode(log)
}

// TopicsByKind groups the recognized topic0 hashes per event kind, for eth_getLogs filters.
func (d *Decoder) TopicsByKind() map[model.EventKind][]common.Hash {
	out := make(map[model.EventKind][]common.Hash)
	for _, s := range d.byTopic {
		out[s.Kind] = append(out[s.Kind], s.Topic0)
	}
	return out
}

func normalizeKind(name string) model.EventKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "trade", "tradeexecuted":
		return model.KindTrade
	case "market_created", "marketcreated":
		return model.KindMarketCreated
	case "resolution", "marketresolved":
		return model.KindResolution
	default:
		return ""
	}
}
