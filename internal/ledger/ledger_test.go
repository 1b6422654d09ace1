package ledger

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pos_ledger/internal/sheets"
)

type item struct {
	ID  string
	Qty int
}

type itemCodec struct{}

func (itemCodec) Header() sheets.Row       { return sheets.Row{"id", "qty"} }
func (itemCodec) ID(i item) string         { return i.ID }
func (itemCodec) Encode(i item) sheets.Row { return sheets.Row{i.ID, strconv.Itoa(i.Qty)} }
func (itemCodec) Decode(r sheets.Row) (item, error) {
	q, err := strconv.Atoi(r.Cell(1))
	if err != nil {
		return item{}, err
	}
	return item{ID: r.Cell(0), Qty: q}, nil
}

var feb = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)

func newLedger(t *testing.T) (*Ledger[item], *sheets.Memory) {
	store := sheets.NewMemory()
	return New[item]("Items", store, itemCodec{}, zaptest.NewLogger(t)), store
}

func TestLoad_MissingPartitionIsEmpty(t *testing.T) {
	l, _ := newLedger(t)

	p, err := l.Load(context.Background(), feb)
	require.NoError(t, err)
	assert.False(t, p.Exists)
	assert.Empty(t, p.Entries)
	assert.Equal(t, "Items_02_2026", p.Name)
}

func TestAppendLoadSaveRemove(t *testing.T) {
	l, store := newLedger(t)
	ctx := context.Background()

	e1, err := l.Append(ctx, feb, item{ID: "A", Qty: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, e1.Row)
	e2, err := l.Append(ctx, feb, item{ID: "B", Qty: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, e2.Row)

	_, err = l.Append(ctx, feb, item{ID: "A", Qty: 9})
	assert.ErrorIs(t, err, ErrDuplicateID)

	p, err := l.Load(ctx, feb)
	require.NoError(t, err)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, []item{{"A", 1}, {"B", 2}}, p.Records())

	b, ok := p.Find("B")
	require.True(t, ok)
	b.Record.Qty = 20
	require.NoError(t, l.Save(ctx, b))
	assert.Equal(t, sheets.Row{"B", "20"}, store.Table("Items_02_2026")[2])

	a, _ := p.Find("A")
	require.NoError(t, l.Remove(ctx, a))

	// B shifted up a row, so its loaded position is stale now.
	assert.ErrorIs(t, l.Save(ctx, b), ErrStalePosition)

	p, err = l.Load(ctx, feb)
	require.NoError(t, err)
	b, ok = p.Find("B")
	require.True(t, ok)
	assert.Equal(t, 2, b.Row)
	assert.Equal(t, 20, b.Record.Qty)
}

func TestSaveStaysInOriginalPartition(t *testing.T) {
	l, store := newLedger(t)
	ctx := context.Background()

	e, err := l.Append(ctx, feb, item{ID: "A", Qty: 1})
	require.NoError(t, err)
	e.Record.Qty = 5
	require.NoError(t, l.Save(ctx, e))

	assert.Len(t, store.Table("Items_02_2026"), 2)
	tables, err := store.ListTables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Items_02_2026"}, tables)
}

func TestLoad_SkipsUndecodableRows(t *testing.T) {
	l, store := newLedger(t)
	ctx := context.Background()
	require.NoError(t, store.CreateTable(ctx, "Items_02_2026", sheets.Row{"id", "qty"}))
	require.NoError(t, store.AppendRows(ctx, "Items_02_2026", []sheets.Row{{"A", "1"}, {"B", "x"}, {"", ""}, {"C", "3"}}))

	p, err := l.Load(ctx, feb)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Skipped)
	require.Len(t, p.Entries, 2)
	assert.Equal(t, 5, p.Entries[1].Row)
}

func TestAppend_RemoteFailureLeavesNoRow(t *testing.T) {
	l, store := newLedger(t)
	ctx := context.Background()
	boom := errors.New("network down")
	store.Fail = func(op, _ string) error {
		if op == "append" {
			return boom
		}
		return nil
	}

	_, err := l.Append(ctx, feb, item{ID: "A", Qty: 1})
	assert.ErrorIs(t, err, boom)
	assert.Len(t, store.Table("Items_02_2026"), 1)
}

func TestIDs(t *testing.T) {
	l, _ := newLedger(t)
	ctx := context.Background()

	ids, err := l.IDs(ctx, "Items_02_2026")
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = l.Append(ctx, feb, item{ID: "A", Qty: 1})
	require.NoError(t, err)
	ids, err = l.IDs(ctx, "Items_02_2026")
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"A": true}, ids)
}
