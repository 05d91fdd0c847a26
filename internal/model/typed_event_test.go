package model

import (
	"encoding/json"
	"testing"
)

func TestTradeEventJSONStringAmounts(t *testing.T) {
	payload := TradeEvent{
		MarketID:    7,
		Trader:      "0x1111111111111111111111111111111111111111",
		IsYes:       true,
		IsBuy:       true,
		USDCAmount:  "1000000000",
		Shares:      "115792089237316195423570985008687907853269984665640564039457584007913129639935",
		NewYesPrice: "620000000000000000",
		Provenance:  Provenance{TxHash: "0xabc", LogIndex: 2, BlockNumber: 1200},
	}

	data, err := json.Marshal(NewTypedEvent(RawLog{Topics: []string{"0xAA"}, Data: "0x"}, payload))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded struct {
		EventName string                 `json:"event_name"`
		Decoded   map[string]interface{} `json:"decoded"`
		Raw       RawLogRef              `json:"raw"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if decoded.EventName != string(KindTrade) {
		t.Fatalf("event name mismatch: %s", decoded.EventName)
	}
	for _, key := range []string{"usdcAmount", "shares", "newYesPrice"} {
		if _, ok := decoded.Decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
	if decoded.Decoded["transactionHash"] != "0xabc" {
		t.Fatalf("provenance should be inlined: %s", data)
	}
	if decoded.Raw.Topic0 != "0xaa" {
		t.Fatalf("raw topic0 mismatch: %s", decoded.Raw.Topic0)
	}
}
