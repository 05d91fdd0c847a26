package model

import "strings"

// RawLog is a contract log as returned by eth_getLogs, kept in hex form.
type RawLog struct {
	BlockNumber uint64   `json:"block_number"`
	BlockHash   string   `json:"block_hash"`
	TxHash      string   `json:"tx_hash"`
	TxIndex     uint64   `json:"tx_index"`
	LogIndex    uint64   `json:"log_index"`
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	Removed     bool     `json:"removed"`
}

// Topic0 returns the lowercase event signature hash, or "" for anonymous logs.
func (l RawLog) Topic0() string {
	if len(l.Topics) == 0 {
		return ""
	}
	return strings.ToLower(l.Topics[0])
}

// Before orders logs by chain position.
func (l RawLog) Before(other RawLog) bool {
	if l.BlockNumber != other.BlockNumber {
		return l.BlockNumber < other.BlockNumber
	}
	return l.LogIndex < other.LogIndex
}
