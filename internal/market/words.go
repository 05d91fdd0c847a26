package market

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"
)

const wordSize = 32

var (
	errShortData     = errors.New("data too short")
	errBadOffset     = errors.New("dynamic offset out of range")
	errBadLength     = errors.New("dynamic length out of range")
	errInvalidUTF8   = errors.New("string is not valid utf-8")
	errValueOverflow = errors.New("value overflows target type")
)

// payload is the non-indexed portion of a log: a head of 32-byte slots
// followed by the tail holding dynamic values.
type payload []byte

func parsePayload(dataHex string) (payload, error) {
	if dataHex == "" || dataHex == "0x" {
		return payload{}, nil
	}
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	return payload(data), nil
}

// wordAt returns the 32 bytes starting at byte offset off.
func (p payload) wordAt(off uint64) ([]byte, error) {
	if off > uint64(len(p)) || uint64(len(p))-off < wordSize {
		return nil, fmt.Errorf("%w: need %d bytes at offset %d, have %d", errShortData, wordSize, off, len(p))
	}
	return p[off : off+wordSize], nil
}

// slot returns head slot i.
func (p payload) slot(i int) ([]byte, error) {
	return p.wordAt(uint64(i) * wordSize)
}

// dynamicBytes follows the offset stored in head slot i to a length-prefixed tail value.
func (p payload) dynamicBytes(i int) ([]byte, error) {
	head, err := p.slot(i)
	if err != nil {
		return nil, err
	}
	offset := new(uint256.Int).SetBytes(head)
	if !offset.IsUint64() || offset.Uint64() > uint64(len(p)) {
		return nil, fmt.Errorf("%w: %s", errBadOffset, offset.Dec())
	}
	cursor := offset.Uint64()

	lengthWord, err := p.wordAt(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: length slot: %v", errBadOffset, err)
	}
	length := new(uint256.Int).SetBytes(lengthWord)
	start := cursor + wordSize
	if !length.IsUint64() || length.Uint64() > uint64(len(p))-start {
		return nil, fmt.Errorf("%w: %s bytes at offset %d, have %d", errBadLength, length.Dec(), start, uint64(len(p))-start)
	}

	out := make([]byte, length.Uint64())
	copy(out, p[start:start+length.Uint64()])
	return out, nil
}

func (p payload) dynamicString(i int) (string, error) {
	raw, err := p.dynamicBytes(i)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", errInvalidUTF8
	}
	return string(raw), nil
}

func parseTopic(topic string) ([]byte, error) {
	data, err := hexutil.Decode(topic)
	if err != nil {
		return nil, fmt.Errorf("invalid topic %q: %w", topic, err)
	}
	if len(data) != wordSize {
		return nil, fmt.Errorf("invalid topic length %d", len(data))
	}
	return data, nil
}

func wordUint(word []byte) *uint256.Int {
	return new(uint256.Int).SetBytes(word)
}

func wordAddress(word []byte) string {
	return strings.ToLower(common.BytesToAddress(word[wordSize-common.AddressLength:]).Hex())
}

func wordBool(word []byte) bool {
	return wordUint(word).Eq(uint256.NewInt(1))
}

func wordBytes32(word []byte) string {
	return hexutil.Encode(word)
}

func toInt64(v *uint256.Int) (int64, error) {
	if !v.IsUint64() || v.Uint64() > 1<<63-1 {
		return 0, fmt.Errorf("%w: %s does not fit int64", errValueOverflow, v.Dec())
	}
	return int64(v.Uint64()), nil
}

func toUint64(v *uint256.Int) (uint64, error) {
	if !v.IsUint64() {
		return 0, fmt.Errorf("%w: %s does not fit uint64", errValueOverflow, v.Dec())
	}
	return v.Uint64(), nil
}

func toUint8(v *uint256.Int) (uint8, error) {
	if !v.IsUint64() || v.Uint64() > 0xff {
		return 0, fmt.Errorf("%w: %s does not fit uint8", errValueOverflow, v.Dec())
	}
	return uint8(v.Uint64()), nil
}
