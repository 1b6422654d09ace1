package migration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"pos_ledger/internal/cashflow"
	"pos_ledger/internal/sales"
	"pos_ledger/internal/sheets"
)

func seed(t *testing.T, store *sheets.Memory, table string, header sheets.Row, rows ...sheets.Row) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.CreateTable(ctx, table, header))
	require.NoError(t, store.AppendRows(ctx, table, rows))
}

func newMigrator(t *testing.T, store *sheets.Memory) *Migrator {
	logger := zaptest.NewLogger(t)
	sl := sales.NewLedger(store, logger, time.UTC)
	tl := cashflow.NewLedger(store, logger, time.UTC)
	return New(store, sl.Repo(), tl.Repo(), logger, time.UTC)
}

func TestMigrate_Idempotent(t *testing.T) {
	store := sheets.NewMemory()
	seed(t, store, sales.Base, sales.Header[:6],
		sheets.Row{"X1", "4/2/2026 10:00:00", "A x1", "1000", "400", ""},
		sheets.Row{"X2", "10:15:00 5/2/2026", "B x2", "500", "100", "note"},
		sheets.Row{"X1", "6/2/2026, 11:00:00", "A x1", "1000", "400", "dup"},
		sheets.Row{"X3", "not a date", "A x1", "1000", "400", ""},
		sheets.Row{"X4", "1/1/1999", "A x1", "1000", "400", ""},
		sheets.Row{"X5", "2/3/2026", "A x1", "1000", "400", ""},
	)
	seed(t, store, cashflow.Base, cashflow.Header[:6],
		sheets.Row{"T1", "4/2/2026", "income", "A", "1000", "Đơn: X1"},
		sheets.Row{"T2", "7/2/2026", "expense", "rent", "300", ""},
	)
	m := newMigrator(t, store)
	ctx := context.Background()

	report, err := m.Migrate(ctx)
	require.NoError(t, err)
	require.Len(t, report.Tables, 2)

	s := report.Tables[0]
	assert.Equal(t, sales.Base, s.Table)
	assert.Equal(t, 6, s.Read)
	assert.Equal(t, 3, s.Appended)
	assert.Equal(t, 1, s.Duplicates)
	assert.Equal(t, 2, s.Skipped)
	assert.Equal(t, map[string]int{"Sales_02_2026": 2, "Sales_03_2026": 1}, s.Partitions)

	feb := store.Table("Sales_02_2026")
	require.Len(t, feb, 3)
	assert.Equal(t, sales.Header, feb[0])
	assert.Equal(t, "X1", feb[1][0])
	assert.Equal(t, "X2", feb[2][0])

	tx := store.Table("Transactions_02_2026")
	require.Len(t, tx, 3)
	assert.Equal(t, "X1", tx[1][6], "link column is filled from the note")

	again, err := m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Appended())
	assert.Equal(t, 4, again.Tables[0].Duplicates)
	assert.Len(t, store.Table("Sales_02_2026"), 3)
	assert.Len(t, store.Table("Sales_03_2026"), 2)
	assert.Len(t, store.Table("Transactions_02_2026"), 3)
}

func TestMigrate_MissingLegacyTables(t *testing.T) {
	store := sheets.NewMemory()
	report, err := newMigrator(t, store).Migrate(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Tables, 2)
	assert.True(t, report.Tables[0].Missing)
	assert.True(t, report.Tables[1].Missing)
	assert.Equal(t, 0, report.Appended())
}

func TestMigrate_ResumesAfterFailure(t *testing.T) {
	store := sheets.NewMemory()
	seed(t, store, sales.Base, sales.Header[:6],
		sheets.Row{"X1", "4/2/2026 10:00:00", "A x1", "1000", "400", ""},
		sheets.Row{"X2", "2/3/2026 10:00:00", "A x1", "1000", "400", ""},
	)
	m := newMigrator(t, store)
	ctx := context.Background()

	store.Fail = func(op, table string) error {
		if op == "append" && table == "Sales_03_2026" {
			return errors.New("unavailable")
		}
		return nil
	}
	report, err := m.Migrate(ctx)
	require.Error(t, err)
	require.Len(t, report.Tables, 1)
	assert.Equal(t, 1, report.Tables[0].Appended)

	store.Fail = nil
	report, err = m.Migrate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Tables[0].Appended)
	assert.Equal(t, 1, report.Tables[0].Duplicates)
	assert.Len(t, store.Table("Sales_02_2026"), 2)
	assert.Len(t, store.Table("Sales_03_2026"), 2)
}
