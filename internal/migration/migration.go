// Package migration copies the flat legacy Sales and Transactions tables into
// monthly partitions.
//
// Rows are bucketed by the date in their second column. A row is appended to
// its partition only when its id is not there yet, so the job can be re-run
// after a failure; duplicates inside the legacy table itself land once.
// Partitions are written one at a time and the job is not atomic across them.
package migration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pos_ledger/internal/cashflow"
	"pos_ledger/internal/datefmt"
	"pos_ledger/internal/partition"
	"pos_ledger/internal/sheets"
)

// Target is the partitioned ledger rows are migrated into.
type Target interface {
	Base() string
	Header() sheets.Row
	PartitionName(date time.Time) string
	IDs(ctx context.Context, name string) (map[string]bool, error)
}

// TableReport counts what happened to one legacy table.
type TableReport struct {
	Table      string         `json:"table"`
	Missing    bool           `json:"missing,omitempty"`
	Read       int            `json:"read"`
	Appended   int            `json:"appended"`
	Duplicates int            `json:"duplicates"`
	Skipped    int            `json:"skipped"`
	Partitions map[string]int `json:"partitions"`
}

// Report is the outcome of one Migrate run.
type Report struct {
	Tables []TableReport `json:"tables"`
}

// Appended is the number of rows written across all tables.
func (r Report) Appended() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Appended
	}
	return n
}

// Skipped is the number of rows that could not be migrated.
func (r Report) Skipped() int {
	n := 0
	for _, t := range r.Tables {
		n += t.Skipped
	}
	return n
}

type source struct {
	target Target
	fix    func(sheets.Row) sheets.Row
}

// Migrator runs the migration.
type Migrator struct {
	store    sheets.Store
	resolver *partition.Resolver
	sources  []source
	loc      *time.Location
	logger   *zap.Logger
}

// New creates a Migrator for the sales and transactions ledgers.
func New(store sheets.Store, sales, transactions Target, logger *zap.Logger, loc *time.Location) *Migrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Migrator{
		store:    store,
		resolver: partition.NewResolver(store, logger),
		sources: []source{
			{target: sales},
			{target: transactions, fix: linkFromNote},
		},
		loc:    loc,
		logger: logger,
	}
}

// Migrate copies every legacy table. On a remote failure it stops and
// returns what was done so far together with the error.
func (m *Migrator) Migrate(ctx context.Context) (Report, error) {
	var report Report
	for _, src := range m.sources {
		tr, err := m.migrate(ctx, src)
		report.Tables = append(report.Tables, tr)
		if err != nil {
			return report, err
		}
	}
	m.logger.Info("migration finished",
		zap.Int("appended", report.Appended()),
		zap.Int("skipped", report.Skipped()),
	)
	return report, nil
}

type group struct {
	name string
	rows []sheets.Row
}

func (m *Migrator) migrate(ctx context.Context, src source) (TableReport, error) {
	base := src.target.Base()
	header := src.target.Header()
	tr := TableReport{Table: base, Partitions: map[string]int{}}
	log := m.logger.With(zap.String("table", base))

	rows, err := m.store.ReadRange(ctx, base, sheets.Rows(2, len(header)))
	if errors.Is(err, sheets.ErrTableNotFound) {
		log.Info("no legacy table")
		tr.Missing = true
		return tr, nil
	}
	if err != nil {
		return tr, fmt.Errorf("reading %s: %w", base, err)
	}

	var groups []*group
	byName := map[string]*group{}
	for i, row := range rows {
		if row.Empty() {
			continue
		}
		tr.Read++
		id := strings.TrimSpace(row.Cell(0))
		if id == "" {
			tr.Skipped++
			log.Warn("skipping row without id", zap.Int("row", i+2))
			continue
		}
		parsed, err := datefmt.Parse(row.Cell(1), m.loc)
		if err != nil {
			tr.Skipped++
			log.Warn("skipping row with invalid date", zap.Int("row", i+2), zap.String("id", id), zap.Error(err))
			continue
		}

		name := src.target.PartitionName(parsed.Time)
		g, ok := byName[name]
		if !ok {
			g = &group{name: name}
			byName[name] = g
			groups = append(groups, g)
		}
		out := pad(row, len(header))
		out[0] = id
		if src.fix != nil {
			out = src.fix(out)
		}
		g.rows = append(g.rows, out)
	}

	for _, g := range groups {
		if _, err := m.resolver.Ensure(ctx, g.name, header); err != nil {
			return tr, err
		}
		ids, err := src.target.IDs(ctx, g.name)
		if err != nil {
			return tr, err
		}

		var fresh []sheets.Row
		for _, r := range g.rows {
			if ids[r[0]] {
				tr.Duplicates++
				continue
			}
			ids[r[0]] = true
			fresh = append(fresh, r)
		}
		if len(fresh) == 0 {
			continue
		}
		if err := m.store.AppendRows(ctx, g.name, fresh); err != nil {
			return tr, fmt.Errorf("appending to %s: %w", g.name, err)
		}
		tr.Appended += len(fresh)
		tr.Partitions[g.name] = len(fresh)
		log.Info("partition migrated", zap.String("partition", g.name), zap.Int("rows", len(fresh)))
	}
	return tr, nil
}

func pad(row sheets.Row, n int) sheets.Row {
	out := make(sheets.Row, n)
	copy(out, row)
	return out
}

// linkFromNote fills the link column of legacy transactions from the
// "Đơn: <id>" note token.
func linkFromNote(row sheets.Row) sheets.Row {
	if strings.TrimSpace(row[6]) != "" {
		return row
	}
	if id, ok := cashflow.SaleIDFromNote(row[5]); ok {
		row[6] = id
	}
	return row
}
