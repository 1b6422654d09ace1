package xref

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pos_ledger/internal/cashflow"
	"pos_ledger/internal/ledger"
	"pos_ledger/internal/sales"
	"pos_ledger/internal/sheets"
)

var saleTime = time.Date(2026, 2, 4, 10, 30, 15, 0, time.UTC)

type fixture struct {
	store *sheets.Memory
	sales *sales.Ledger
	txs   *cashflow.Ledger
	p     *Propagator
	sale  sales.Sale
	tx    cashflow.Transaction
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	logger := zaptest.NewLogger(t)
	store := sheets.NewMemory()

	f := fixture{
		store: store,
		sales: sales.NewLedger(store, logger, time.UTC),
		txs:   cashflow.NewLedger(store, logger, time.UTC),
	}
	f.p = New(f.sales, f.txs, logger)

	se, err := f.sales.Create(ctx, sales.Sale{
		Timestamp: saleTime,
		Details:   "A x2",
		Total:     decimal.NewFromInt(2000),
		Profit:    decimal.NewFromInt(800),
	}, saleTime)
	require.NoError(t, err)
	f.sale = se.Record

	te, err := f.txs.Add(ctx, cashflow.Transaction{
		Date:         saleTime,
		Direction:    cashflow.Income,
		Description:  "A",
		Amount:       decimal.NewFromInt(2000),
		Note:         cashflow.SaleNote(f.sale.ID),
		LinkedSaleID: f.sale.ID,
	}, saleTime)
	require.NoError(t, err)
	f.tx = te.Record
	return f
}

func TestUpdateTransactionDate_KeepsSaleTimeOfDay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newDate := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	res, err := f.p.UpdateTransactionDate(ctx, saleTime, f.tx.ID, newDate)
	require.NoError(t, err)
	require.NoError(t, res.LinkErr)
	require.NotNil(t, res.Sale)

	s, err := f.sales.Find(ctx, saleTime, f.sale.ID)
	require.NoError(t, err)
	y, m, d := s.Record.Timestamp.Date()
	assert.Equal(t, []int{2026, 2, 10}, []int{y, int(m), d})
	assert.Equal(t, []int{10, 30, 15}, []int{s.Record.Timestamp.Hour(), s.Record.Timestamp.Minute(), s.Record.Timestamp.Second()})

	tx, err := f.txs.Find(ctx, saleTime, f.tx.ID)
	require.NoError(t, err)
	assert.True(t, newDate.Equal(tx.Record.Date))
}

func TestUpdateSaleTimestamp_MovesLinkedTransaction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ts := time.Date(2026, 2, 15, 9, 5, 0, 0, time.UTC)

	res, err := f.p.UpdateSaleTimestamp(ctx, saleTime, f.sale.ID, ts)
	require.NoError(t, err)
	require.NoError(t, res.LinkErr)
	require.NotNil(t, res.Transaction)

	tx, err := f.txs.Find(ctx, saleTime, f.tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "15/2/2026", f.store.Table("Transactions_02_2026")[tx.Row-1][1])

	s, err := f.sales.Find(ctx, saleTime, f.sale.ID)
	require.NoError(t, err)
	assert.True(t, ts.Equal(s.Record.Timestamp))
}

func TestUpdateSaleTimestamp_LegacyNoteLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Legacy rows only carry the note token.
	table := "Transactions_02_2026"
	row := f.store.Table(table)[1]
	require.NoError(t, f.store.OverwriteRange(ctx, table, sheets.Line(2, len(cashflow.Header)), []sheets.Row{append(row[:6:6], "")}))

	res, err := f.p.UpdateSaleTimestamp(ctx, saleTime, f.sale.ID, time.Date(2026, 2, 20, 8, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NotNil(t, res.Transaction)
	assert.Equal(t, "20/2/2026", f.store.Table(table)[1][1])
}

func TestUpdateSaleTimestamp_DivergesOnSecondWrite(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	boom := errors.New("unavailable")
	f.store.Fail = func(op, table string) error {
		if op == "overwrite" && table == "Transactions_02_2026" {
			return boom
		}
		return nil
	}

	ts := time.Date(2026, 2, 15, 9, 5, 0, 0, time.UTC)
	res, err := f.p.UpdateSaleTimestamp(ctx, saleTime, f.sale.ID, ts)
	require.NoError(t, err, "the sale edit itself succeeds")
	assert.ErrorIs(t, res.LinkErr, boom)
	assert.Nil(t, res.Transaction)

	f.store.Fail = nil
	s, err := f.sales.Find(ctx, saleTime, f.sale.ID)
	require.NoError(t, err)
	assert.True(t, ts.Equal(s.Record.Timestamp))
	tx, err := f.txs.Find(ctx, saleTime, f.tx.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, tx.Record.Date.Day())
}

func TestUpdateTransactionDate_Unlinked(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	e, err := f.txs.Add(ctx, cashflow.Transaction{
		Date:        saleTime,
		Direction:   cashflow.Expense,
		Description: "rent",
		Amount:      decimal.NewFromInt(500),
	}, saleTime)
	require.NoError(t, err)

	res, err := f.p.UpdateTransactionDate(ctx, saleTime, e.Record.ID, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Nil(t, res.Sale)

	s, err := f.sales.Find(ctx, saleTime, f.sale.ID)
	require.NoError(t, err)
	assert.True(t, saleTime.Equal(s.Record.Timestamp))
}

func TestUpdate_NotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.p.UpdateSaleTimestamp(ctx, saleTime, "DH00000000", saleTime)
	assert.ErrorIs(t, err, ledger.ErrNotFound)

	_, err = f.p.UpdateTransactionDate(ctx, saleTime, "GD00000000", saleTime)
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}
