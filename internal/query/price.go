package query

import (
	"fmt"

	"github.com/holiman/uint256"

	"marketScope/internal/model"
)

// DefaultPrice is the YES and NO price of a market with no trades: 50.00 cents.
const DefaultPrice model.Cents = 5000

// basisPointsDivisor turns an 18-decimal fraction into hundredths of a cent:
// v / 1e18 * 100 * 100 == v / 1e14.
var basisPointsDivisor = uint256.NewInt(100_000_000_000_000)

const fullPrice model.Cents = 10_000 // 100.00 cents

// yesBasisPoints converts a 1e18 fixed-point price to hundredths of a cent,
// truncating and clamping to [0, 100.00].
func yesBasisPoints(newYesPrice string) (model.Cents, error) {
	v, err := uint256.FromDecimal(newYesPrice)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", newYesPrice, err)
	}
	bp := new(uint256.Int).Div(v, basisPointsDivisor)
	if !bp.IsUint64() || bp.Uint64() > uint64(fullPrice) {
		return fullPrice, nil
	}
	return model.Cents(bp.Uint64()), nil
}

// PriceHistory folds trades, oldest first, into a YES/NO price series in cents.
// Each trade carries the authoritative post-trade price, so the current price is
// simply the last point. No trades means 50/50.
func PriceHistory(trades []model.TradeEvent) ([]model.PricePoint, model.Cents, model.Cents, error) {
	points := make([]model.PricePoint, 0, len(trades))
	yes, no := DefaultPrice, DefaultPrice
	for _, t := range trades {
		bp, err := yesBasisPoints(t.NewYesPrice)
		if err != nil {
			return nil, 0, 0, fmt.Errorf("trade %s:%d: %w", t.TxHash, t.LogIndex, err)
		}
		yes, no = bp, fullPrice-bp
		points = append(points, model.PricePoint{
			BlockNumber: t.BlockNumber,
			TxHash:      t.TxHash,
			YesPrice:    yes,
			NoPrice:     no,
		})
	}
	return points, yes, no, nil
}
