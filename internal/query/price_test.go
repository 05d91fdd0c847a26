package query

import (
	"reflect"
	"testing"

	"marketScope/internal/model"
)

func tradesWithPrices(prices ...string) []model.TradeEvent {
	out := make([]model.TradeEvent, 0, len(prices))
	for i, p := range prices {
		out = append(out, model.TradeEvent{NewYesPrice: p, Provenance: model.Provenance{BlockNumber: uint64(100 + i), TxHash: "0x01", LogIndex: uint64(i)}})
	}
	return out
}

func TestPriceHistoryFold(t *testing.T) {
	points, yes, no, err := PriceHistory(tradesWithPrices("500000000000000000", "620000000000000000", "450000000000000000"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var gotYes []model.Cents
	for _, p := range points {
		gotYes = append(gotYes, p.YesPrice)
	}
	if !reflect.DeepEqual(gotYes, []model.Cents{5000, 6200, 4500}) {
		t.Fatalf("series mismatch: %v", gotYes)
	}
	if yes != 4500 || no != 5500 {
		t.Fatalf("current price: yes=%v no=%v", yes, no)
	}
	if points[1].NoPrice != 3800 || points[1].BlockNumber != 101 {
		t.Fatalf("unexpected point: %+v", points[1])
	}
}

func TestPriceHistoryEmpty(t *testing.T) {
	points, yes, no, err := PriceHistory(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 0 || yes != 5000 || no != 5000 {
		t.Fatalf("expected 50/50 with no points, got %v %v %v", points, yes, no)
	}
}

func TestPriceHistoryPrecision(t *testing.T) {
	cases := map[string]model.Cents{
		"123456789012345678":  1234,
		"999999999999999999":  9999,
		"1000000000000000000": 10000,
		"5000000000000000000": 10000,
		"0":                   0,
		"115792089237316195423570985008687907853269984665640564039457584007913129639935": 10000,
	}
	for price, want := range cases {
		_, yes, _, err := PriceHistory(tradesWithPrices(price))
		if err != nil {
			t.Fatalf("%s: %v", price, err)
		}
		if yes != want {
			t.Fatalf("%s: got %v want %v", price, yes, want)
		}
	}
}

func TestPriceHistoryRejectsGarbage(t *testing.T) {
	if _, _, _, err := PriceHistory(tradesWithPrices("0.62")); err == nil {
		t.Fatalf("expected parse error")
	}
}
