package sales

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"pos_ledger/internal/money"
)

// ErrInvalidDetails is returned for details strings that do not parse.
var ErrInvalidDetails = errors.New("invalid sale details")

const fragmentSep = ", "

// Item is one parsed fragment of a sale's details.
type Item struct {
	Name string `json:"name"`
	// Price is set only when the line was sold at an overridden price.
	Price    *decimal.Decimal `json:"price,omitempty"`
	Quantity int              `json:"quantity"`
}

// RenderDetails renders cart lines as "<name>[ @<price>] x<qty>" fragments
// joined by ", ". The price suffix appears only for overridden prices.
func RenderDetails(lines []CartLine) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		var b strings.Builder
		b.WriteString(l.Name)
		if l.Overridden() {
			b.WriteString(" @")
			b.WriteString(money.Cell(l.Price))
		}
		b.WriteString(" x")
		b.WriteString(strconv.Itoa(l.Quantity))
		parts[i] = b.String()
	}
	return strings.Join(parts, fragmentSep)
}

var fragmentPattern = regexp.MustCompile(`^(.+?)(?: @(\d+(?:\.\d+)?))? ?x(\d+)$`)

// ParseDetails is the inverse of RenderDetails. Product names that contain
// ", " are reassembled as long as the joined text forms a valid fragment.
func ParseDetails(details string) ([]Item, error) {
	details = strings.TrimSpace(details)
	if details == "" {
		return nil, nil
	}

	var (
		items   []Item
		pending string
	)
	for _, part := range strings.Split(details, fragmentSep) {
		if pending != "" {
			part = pending + fragmentSep + part
		}
		m := fragmentPattern.FindStringSubmatch(strings.TrimSpace(part))
		if m == nil {
			pending = part
			continue
		}
		pending = ""

		qty, err := strconv.Atoi(m[3])
		if err != nil || qty < 1 {
			return nil, fmt.Errorf("%w: quantity in %q", ErrInvalidDetails, part)
		}
		item := Item{Name: strings.TrimSpace(m[1]), Quantity: qty}
		if m[2] != "" {
			p, err := decimal.NewFromString(m[2])
			if err != nil {
				return nil, fmt.Errorf("%w: price in %q", ErrInvalidDetails, part)
			}
			item.Price = &p
		}
		items = append(items, item)
	}
	if pending != "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDetails, pending)
	}
	return items, nil
}

// Quantity sums the quantities of items.
func Quantity(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Quantity
	}
	return n
}
