package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pos_ledger/internal/sheets"
)

func seed(t *testing.T) (*Catalog, *sheets.Memory) {
	store := sheets.NewMemory()
	c := New(store, zaptest.NewLogger(t), time.UTC)
	now := time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC)
	_, err := c.Create(context.Background(), Product{
		Code: "SP001", Name: "Trà sữa", Cost: decimal.NewFromInt(600), Price: decimal.NewFromInt(1000), Stock: 5,
	}, now)
	require.NoError(t, err)
	return c, store
}

func TestCreateAndGet(t *testing.T) {
	c, store := seed(t)

	p, err := c.Get(context.Background(), "SP001")
	require.NoError(t, err)
	assert.Equal(t, "Trà sữa", p.Name)
	assert.Equal(t, 5, p.Stock)
	assert.True(t, p.Margin().Equal(decimal.NewFromInt(400)))
	assert.Equal(t, sheets.Row{"SP001", "Trà sữa", "600", "1000", "400", "5", "1/2/2026"}, store.Table(Table)[1])

	_, err = c.Create(context.Background(), Product{Code: "SP001", Name: "x"}, time.Now())
	assert.ErrorIs(t, err, ErrDuplicateCode)
}

func TestGet_Unknown(t *testing.T) {
	c, _ := seed(t)
	_, err := c.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestList_MissingTable(t *testing.T) {
	c := New(sheets.NewMemory(), nil, nil)
	products, err := c.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestAdjustStock(t *testing.T) {
	c, store := seed(t)
	ctx := context.Background()

	n, err := c.AdjustStock(ctx, "SP001", -2)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, "3", store.Table(Table)[1][5])

	_, err = c.AdjustStock(ctx, "SP001", -4)
	assert.ErrorIs(t, err, ErrNegativeStock)
	assert.Equal(t, "3", store.Table(Table)[1][5])

	n, err = c.AdjustStock(ctx, "SP001", 10)
	require.NoError(t, err)
	assert.Equal(t, 13, n)
}
