package sales

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"pos_ledger/internal/catalog"
)

var (
	// ErrInsufficientStock is returned when a line would exceed available stock.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrLineNotFound is returned for cart operations on a product not in the cart.
	ErrLineNotFound = errors.New("product is not in the cart")

	// ErrInvalidPrice is returned for negative price overrides.
	ErrInvalidPrice = errors.New("price must not be negative")

	// ErrEmptyCart is returned when checking out an empty cart.
	ErrEmptyCart = errors.New("cart is empty")
)

// CartLine is one product in the cart.
type CartLine struct {
	Code          string          `json:"code"`
	Name          string          `json:"name"`
	Cost          decimal.Decimal `json:"cost"`
	Price         decimal.Decimal `json:"price"`
	OriginalPrice decimal.Decimal `json:"original_price"`
	Quantity      int             `json:"quantity"`
	// MaxStock is the product's stock when the line was last added to.
	MaxStock int `json:"max_stock"`
}

// Overridden reports whether the line is sold at other than its list price.
func (l CartLine) Overridden() bool {
	return !l.Price.Equal(l.OriginalPrice)
}

// Subtotal is price × quantity.
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Profit is (price − cost) × quantity.
func (l CartLine) Profit() decimal.Decimal {
	return l.Price.Sub(l.Cost).Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Cart is the in-progress sale. It is not safe for concurrent use.
type Cart struct {
	lines []CartLine
}

// NewCart returns an empty cart.
func NewCart() *Cart {
	return &Cart{}
}

// Add puts one unit of p in the cart, at list price for a new line. The
// line's stock ceiling is refreshed from p.Stock.
func (c *Cart) Add(p catalog.Product) error {
	if p.Stock <= 0 {
		return fmt.Errorf("%w: %s is out of stock", ErrInsufficientStock, p.Code)
	}
	if i := c.index(p.Code); i >= 0 {
		l := &c.lines[i]
		if l.Quantity >= p.Stock {
			return fmt.Errorf("%w: only %d of %s available", ErrInsufficientStock, p.Stock, p.Code)
		}
		l.Quantity++
		l.MaxStock = p.Stock
		return nil
	}
	c.lines = append(c.lines, CartLine{
		Code:          p.Code,
		Name:          p.Name,
		Cost:          p.Cost,
		Price:         p.Price,
		OriginalPrice: p.Price,
		Quantity:      1,
		MaxStock:      p.Stock,
	})
	return nil
}

// SetQuantity changes a line's quantity by delta. A line that drops to zero
// or below is removed.
func (c *Cart) SetQuantity(code string, delta int) error {
	i := c.index(code)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, code)
	}
	next := c.lines[i].Quantity + delta
	if next <= 0 {
		c.lines = append(c.lines[:i], c.lines[i+1:]...)
		return nil
	}
	if next > c.lines[i].MaxStock {
		return fmt.Errorf("%w: only %d of %s available", ErrInsufficientStock, c.lines[i].MaxStock, code)
	}
	c.lines[i].Quantity = next
	return nil
}

// SetPrice overrides the unit price of a line.
func (c *Cart) SetPrice(code string, price decimal.Decimal) error {
	if price.IsNegative() {
		return ErrInvalidPrice
	}
	i := c.index(code)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrLineNotFound, code)
	}
	c.lines[i].Price = price
	return nil
}

// Remove drops a line. It reports whether the line was present.
func (c *Cart) Remove(code string) bool {
	i := c.index(code)
	if i < 0 {
		return false
	}
	c.lines = append(c.lines[:i], c.lines[i+1:]...)
	return true
}

// Clear empties the cart. Callers confirm with the user first.
func (c *Cart) Clear() {
	c.lines = nil
}

// Lines returns a copy of the cart lines in insertion order.
func (c *Cart) Lines() []CartLine {
	out := make([]CartLine, len(c.lines))
	copy(out, c.lines)
	return out
}

// Len is the number of lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// Totals returns Σ price×qty and Σ (price−cost)×qty over the current lines.
func (c *Cart) Totals() (total, profit decimal.Decimal) {
	return totals(c.lines)
}

func totals(lines []CartLine) (total, profit decimal.Decimal) {
	total, profit = decimal.Zero, decimal.Zero
	for _, l := range lines {
		total = total.Add(l.Subtotal())
		profit = profit.Add(l.Profit())
	}
	return total, profit
}

func (c *Cart) index(code string) int {
	for i, l := range c.lines {
		if l.Code == code {
			return i
		}
	}
	return -1
}
