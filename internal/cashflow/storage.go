// Package cashflow is the income/expense ledger. Transactions are stored in
// monthly partitions of the Transactions table; sale-derived income carries
// an explicit link to its sale.
package cashflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"pos_ledger/internal/datefmt"
	"pos_ledger/internal/ledger"
	"pos_ledger/internal/sheets"
)

// Entry is a transaction with its storage address.
type Entry = ledger.Entry[Transaction]

// Partition is one loaded month of transactions.
type Partition = ledger.Partition[Transaction]

// Ledger is the transactions repository.
type Ledger struct {
	repo   *ledger.Ledger[Transaction]
	ids    *ledger.IDGenerator
	loc    *time.Location
	logger *zap.Logger
}

// NewLedger creates the transactions ledger. Dates are interpreted in loc.
func NewLedger(store sheets.Store, logger *zap.Logger, loc *time.Location) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{
		repo:   ledger.New[Transaction](Base, store, codec{loc: loc}, logger),
		ids:    ledger.NewIDGenerator("GD"),
		loc:    loc,
		logger: logger,
	}
}

// Load reads the partition of month. A month without a partition is empty.
func (l *Ledger) Load(ctx context.Context, month time.Time) (*Partition, error) {
	return l.repo.Load(ctx, month.In(l.loc))
}

// Add validates and appends t to the partition of its date. An empty id is
// generated from now.
func (l *Ledger) Add(ctx context.Context, t Transaction, now time.Time) (Entry, error) {
	t.Description = strings.TrimSpace(t.Description)
	if t.Date.IsZero() {
		t.Date = now
	}
	t.Date = datefmt.Day(t.Date.In(l.loc))
	if err := t.Validate(); err != nil {
		return Entry{}, err
	}
	if t.ID == "" {
		t.ID = l.ids.Next(now)
	}

	e, err := l.repo.Append(ctx, t.Date, t)
	if err != nil {
		return Entry{}, err
	}
	l.logger.Info("transaction added",
		zap.String("transaction_id", t.ID),
		zap.String("direction", string(t.Direction)),
		zap.String("amount", t.Amount.String()),
		zap.String("linked_sale_id", t.LinkedSaleID),
	)
	return e, nil
}

// Update validates and writes e back to its row. The record keeps its
// partition even if its date moved to another month.
func (l *Ledger) Update(ctx context.Context, e Entry) error {
	e.Record.Date = datefmt.Day(e.Record.Date.In(l.loc))
	if err := e.Record.Validate(); err != nil {
		return err
	}
	return l.repo.Save(ctx, e)
}

// UpdateDate rewrites only the date cell of e.
func (l *Ledger) UpdateDate(ctx context.Context, e Entry, date time.Time) (Entry, error) {
	e.Record.Date = datefmt.Day(date.In(l.loc))
	if err := l.repo.SaveCell(ctx, e, DateColumn, datefmt.FormatDate(e.Record.Date)); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Delete removes e. Reload the partition afterwards.
func (l *Ledger) Delete(ctx context.Context, e Entry) error {
	return l.repo.Remove(ctx, e)
}

// Find returns the transaction with id from the month's partition.
func (l *Ledger) Find(ctx context.Context, month time.Time, id string) (Entry, error) {
	p, err := l.Load(ctx, month)
	if err != nil {
		return Entry{}, err
	}
	e, ok := p.Find(id)
	if !ok {
		return Entry{}, fmt.Errorf("%w: transaction %s in %s", ledger.ErrNotFound, id, p.Name)
	}
	return e, nil
}

// FindLinked returns the first transaction of p linked to saleID.
func FindLinked(p *Partition, saleID string) (Entry, bool) {
	for _, e := range p.Entries {
		if e.Record.LinkedSaleID == saleID {
			return e, true
		}
	}
	return Entry{}, false
}

// Repo exposes the underlying repository, used by the migrator.
func (l *Ledger) Repo() *ledger.Ledger[Transaction] { return l.repo }

// Location is the location dates are interpreted in.
func (l *Ledger) Location() *time.Location { return l.loc }
