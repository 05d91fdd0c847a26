package indexer

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ParseAddress converts a hex string into common.Address.
func ParseAddress(input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("invalid address: %q", input)
	}
	return common.HexToAddress(input), nil
}

// ParseTopic0 converts string topic0 hashes into common.Hash.
func ParseTopic0(inputs []string) ([]common.Hash, error) {
	topics := make([]common.Hash, 0, len(inputs))
	for _, input := range inputs {
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		data, err := hexutil.Decode(input)
		if err != nil {
			return nil, fmt.Errorf("invalid topic0: %s", input)
		}
		if len(data) != 32 {
			return nil, fmt.Errorf("invalid topic0 length: %s", input)
		}
		topics = append(topics, common.BytesToHash(data))
	}
	return topics, nil
}
