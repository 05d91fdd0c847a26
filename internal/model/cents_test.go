package model

import (
	"encoding/json"
	"testing"
)

func TestCentsJSON(t *testing.T) {
	point := PricePoint{BlockNumber: 7, TxHash: "0x01", YesPrice: 1234, NoPrice: CentsFromWhole(50)}
	raw, err := json.Marshal(point)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"blockNumber":7,"transactionHash":"0x01","yesPrice":12.34,"noPrice":50.00}`
	if string(raw) != want {
		t.Fatalf("unexpected json: %s", raw)
	}

	var back PricePoint
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != point {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestCentsUnmarshalRejectsExtraPrecision(t *testing.T) {
	var c Cents
	if err := json.Unmarshal([]byte("12.345"), &c); err == nil {
		t.Fatalf("expected error for three decimals")
	}
	if err := json.Unmarshal([]byte("45"), &c); err != nil || c != 4500 {
		t.Fatalf("whole number: got %v, %v", c, err)
	}
}
