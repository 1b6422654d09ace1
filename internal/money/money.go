// Package money holds the amount helpers shared by the ledgers: cell
// parsing and rendering on top of decimal, and human-readable display
// through go-money's currency formatter.
package money

import (
	"errors"
	"fmt"
	"strings"

	gomoney "github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is the store currency.
const DefaultCurrency = "VND"

// ErrInvalidAmount is returned for cells that are not decimal numbers.
var ErrInvalidAmount = errors.New("invalid amount")

// Parse reads an amount cell. Blank cells are an error.
func Parse(cell string) (decimal.Decimal, error) {
	s := strings.TrimSpace(cell)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: empty cell", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, cell)
	}
	return d, nil
}

// Cell renders an amount for storage.
func Cell(d decimal.Decimal) string {
	return d.String()
}

// Format renders an amount for people, e.g. "2.000 ₫" for VND.
func Format(d decimal.Decimal, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	cur := gomoney.New(0, currency).Currency()
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return gomoney.New(minor, currency).Display()
}
