package importer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrUnparseableAmount is returned when an amount cell is not a number.
var ErrUnparseableAmount = errors.New("unparseable amount")

// amountNoise strips thousands separators and the currency symbols banks
// commonly prefix to amounts.
var amountNoise = strings.NewReplacer(",", "", "$", "", "\u20ac", "", "\u00a3", "")

// ParseAmount parses a signed decimal. Blank cells are zero. Accounting
// notation "(12.50)" is negative.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(s)

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	s = strings.TrimSpace(amountNoise.Replace(s))
	if s == "" {
		return decimal.Zero, nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrUnparseableAmount, raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// amountOrZero reads an optional amount column, treating unset, absent,
// blank and malformed cells as zero.
func amountOrZero(rec Record, column string) decimal.Decimal {
	if strings.TrimSpace(column) == "" {
		return decimal.Zero
	}
	v, ok := rec.Lookup(column)
	if !ok {
		return decimal.Zero
	}
	d, err := ParseAmount(v)
	if err != nil {
		return decimal.Zero
	}
	return d
}
