package report

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pos_ledger/internal/cashflow"
	"pos_ledger/internal/sales"
	"pos_ledger/internal/sheets"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func TestSummarize(t *testing.T) {
	ss := []sales.Sale{
		{ID: "DH1", Details: "A x2, B @900 x1", Total: d(2900), Profit: d(1100)},
		{ID: "DH2", Details: "B x3", Total: d(3000), Profit: d(600)},
		{ID: "DH3", Details: "garbled", Total: d(100), Profit: d(10)},
	}
	txs := []cashflow.Transaction{
		{Direction: cashflow.Income, Amount: d(2900)},
		{Direction: cashflow.Income, Amount: d(3000)},
		{Direction: cashflow.Expense, Amount: d(1500)},
	}

	s := Summarize(ss, txs, 1)
	assert.Equal(t, 3, s.Orders)
	assert.True(t, s.Revenue.Equal(d(6000)))
	assert.True(t, s.Profit.Equal(d(1710)))
	assert.Equal(t, 6, s.ItemsSold)
	assert.Equal(t, 1, s.UnreadableDetails)
	assert.True(t, s.Income.Equal(d(5900)))
	assert.True(t, s.Expense.Equal(d(1500)))
	assert.True(t, s.Balance.Equal(d(4400)))
	assert.Equal(t, []ProductSold{{Name: "B", Quantity: 4}}, s.TopProducts)
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil, nil, 0)
	assert.Equal(t, 0, s.Orders)
	assert.True(t, s.Balance.IsZero())
	assert.NotNil(t, s.TopProducts)
}

func TestBuilder_Month(t *testing.T) {
	store := sheets.NewMemory()
	logger := zaptest.NewLogger(t)
	sl := sales.NewLedger(store, logger, time.UTC)
	tl := cashflow.NewLedger(store, logger, time.UTC)
	ctx := context.Background()
	now := time.Date(2026, 2, 4, 10, 0, 0, 0, time.UTC)

	_, err := sl.Create(ctx, sales.Sale{Details: "A x2", Total: d(2000), Profit: d(800)}, now)
	require.NoError(t, err)
	_, err = tl.Add(ctx, cashflow.Transaction{Direction: cashflow.Income, Description: "A", Amount: d(2000)}, now)
	require.NoError(t, err)

	s, err := NewBuilder(sl, tl, "VND", logger).Month(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, "2026-02", s.Month)
	assert.Equal(t, 1, s.Orders)
	assert.Equal(t, 2, s.ItemsSold)
	assert.NotEmpty(t, s.Display["revenue"])

	empty, err := NewBuilder(sl, tl, "VND", logger).Month(ctx, now.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.Orders)
}
