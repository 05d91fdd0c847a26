package model

import (
	"fmt"
	"strconv"
)

// Cents is a price in hundredths of a cent. 6200 is 62.00 cents.
type Cents uint64

// CentsFromWhole builds a Cents value from whole cents.
func CentsFromWhole(whole uint64) Cents { return Cents(whole * 100) }

func (c Cents) String() string {
	return fmt.Sprintf("%d.%02d", uint64(c)/100, uint64(c)%100)
}

// MarshalJSON writes a JSON number with exactly two decimals.
func (c Cents) MarshalJSON() ([]byte, error) {
	return []byte(c.String()), nil
}

// UnmarshalJSON accepts a number with at most two decimals.
func (c *Cents) UnmarshalJSON(data []byte) error {
	s := string(data)
	whole, frac := s, ""
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			whole, frac = s[:i], s[i+1:]
			break
		}
	}
	if len(frac) > 2 {
		return fmt.Errorf("cents %s: more than two decimals", s)
	}
	for len(frac) < 2 {
		frac += "0"
	}
	w, err := strconv.ParseUint(whole, 10, 64)
	if err != nil {
		return fmt.Errorf("cents %s: %w", s, err)
	}
	f, err := strconv.ParseUint(frac, 10, 64)
	if err != nil {
		return fmt.Errorf("cents %s: %w", s, err)
	}
	*c = Cents(w*100 + f)
	return nil
}
