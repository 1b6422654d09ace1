// Package report computes the monthly statistics shown next to the ledgers.
package report

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos_ledger/internal/cashflow"
	"pos_ledger/internal/money"
	"pos_ledger/internal/sales"
)

// DefaultTop is the length of the top products list.
const DefaultTop = 5

// ProductSold is a product name with the units sold.
type ProductSold struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Summary aggregates one month of sales and transactions.
type Summary struct {
	Month       string          `json:"month"`
	Revenue     decimal.Decimal `json:"revenue"`
	Profit      decimal.Decimal `json:"profit"`
	Orders      int             `json:"orders"`
	ItemsSold   int             `json:"items_sold"`
	Income      decimal.Decimal `json:"income"`
	Expense     decimal.Decimal `json:"expense"`
	Balance     decimal.Decimal `json:"balance"`
	TopProducts []ProductSold   `json:"top_products"`
	// UnreadableDetails counts sales whose details did not parse.
	UnreadableDetails int `json:"unreadable_details,omitempty"`

	Display map[string]string `json:"display,omitempty"`
}

// Summarize computes a Summary. top limits the product list; zero or less
// means DefaultTop.
func Summarize(ss []sales.Sale, txs []cashflow.Transaction, top int) Summary {
	if top <= 0 {
		top = DefaultTop
	}
	s := Summary{
		Revenue:     decimal.Zero,
		Profit:      decimal.Zero,
		Income:      decimal.Zero,
		Expense:     decimal.Zero,
		TopProducts: []ProductSold{},
	}

	sold := map[string]int{}
	for _, sale := range ss {
		s.Orders++
		s.Revenue = s.Revenue.Add(sale.Total)
		s.Profit = s.Profit.Add(sale.Profit)

		items, err := sale.Items()
		if err != nil {
			s.UnreadableDetails++
			continue
		}
		for _, it := range items {
			s.ItemsSold += it.Quantity
			sold[it.Name] += it.Quantity
		}
	}

	for _, t := range txs {
		switch t.Direction {
		case cashflow.Income:
			s.Income = s.Income.Add(t.Amount)
		case cashflow.Expense:
			s.Expense = s.Expense.Add(t.Amount)
		}
	}
	s.Balance = s.Income.Sub(s.Expense)

	for name, qty := range sold {
		s.TopProducts = append(s.TopProducts, ProductSold{Name: name, Quantity: qty})
	}
	sort.Slice(s.TopProducts, func(i, j int) bool {
		a, b := s.TopProducts[i], s.TopProducts[j]
		if a.Quantity != b.Quantity {
			return a.Quantity > b.Quantity
		}
		return a.Name < b.Name
	})
	if len(s.TopProducts) > top {
		s.TopProducts = s.TopProducts[:top]
	}
	return s
}

// WithDisplay fills Display with the amounts formatted in currency.
func (s Summary) WithDisplay(currency string) Summary {
	s.Display = map[string]string{
		"revenue": money.Format(s.Revenue, currency),
		"profit":  money.Format(s.Profit, currency),
		"income":  money.Format(s.Income, currency),
		"expense": money.Format(s.Expense, currency),
		"balance": money.Format(s.Balance, currency),
	}
	return s
}

// Builder loads a month from both ledgers and summarizes it.
type Builder struct {
	sales    *sales.Ledger
	txs      *cashflow.Ledger
	currency string
	logger   *zap.Logger
}

// NewBuilder creates a Builder.
func NewBuilder(s *sales.Ledger, txs *cashflow.Ledger, currency string, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{sales: s, txs: txs, currency: currency, logger: logger}
}

// Month summarizes the partitions of month.
func (b *Builder) Month(ctx context.Context, month time.Time) (Summary, error) {
	sp, err := b.sales.Load(ctx, month)
	if err != nil {
		return Summary{}, err
	}
	tp, err := b.txs.Load(ctx, month)
	if err != nil {
		return Summary{}, err
	}

	s := Summarize(sp.Records(), tp.Records(), DefaultTop).WithDisplay(b.currency)
	s.Month = month.Format("2006-01")
	if s.UnreadableDetails > 0 {
		b.logger.Warn("sales with unreadable details", zap.String("month", s.Month), zap.Int("count", s.UnreadableDetails))
	}
	return s, nil
}
