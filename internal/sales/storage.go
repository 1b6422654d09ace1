package sales

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pos_ledger/internal/datefmt"
	"pos_ledger/internal/ledger"
	"pos_ledger/internal/sheets"
)

// Entry is a sale with its storage address.
type Entry = ledger.Entry[Sale]

// Partition is one loaded month of sales.
type Partition = ledger.Partition[Sale]

// Ledger is the sales repository. Sales live in monthly partitions of the
// Sales table.
type Ledger struct {
	repo   *ledger.Ledger[Sale]
	ids    *ledger.IDGenerator
	loc    *time.Location
	logger *zap.Logger
}

// NewLedger creates the sales ledger. Timestamps are interpreted in loc.
func NewLedger(store sheets.Store, logger *zap.Logger, loc *time.Location) *Ledger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Ledger{
		repo:   ledger.New[Sale](Base, store, codec{loc: loc}, logger),
		ids:    ledger.NewIDGenerator("DH"),
		loc:    loc,
		logger: logger,
	}
}

// NextID generates a sale id from now.
func (l *Ledger) NextID(now time.Time) string {
	return l.ids.Next(now)
}

// Load reads the partition of month. A month without a partition is empty.
func (l *Ledger) Load(ctx context.Context, month time.Time) (*Partition, error) {
	return l.repo.Load(ctx, month.In(l.loc))
}

// Append writes s to the partition of its timestamp. s must carry an id.
func (l *Ledger) Append(ctx context.Context, s Sale) (Entry, error) {
	s.Timestamp = truncate(s.Timestamp.In(l.loc))
	return l.repo.Append(ctx, s.Timestamp, s)
}

// Create records a manually entered sale. The details must parse; an empty
// id is generated from now.
func (l *Ledger) Create(ctx context.Context, s Sale, now time.Time) (Entry, error) {
	s.Details = strings.TrimSpace(s.Details)
	s.Note = strings.TrimSpace(s.Note)
	if s.Timestamp.IsZero() {
		s.Timestamp = now
	}
	if err := s.Validate(); err != nil {
		return Entry{}, err
	}
	if s.ID == "" {
		s.ID = l.ids.Next(now)
	}

	e, err := l.Append(ctx, s)
	if err != nil {
		return Entry{}, err
	}
	l.logger.Info("sale created manually",
		zap.String("sale_id", s.ID),
		zap.String("total", s.Total.String()),
	)
	return e, nil
}

// Update validates and writes e back to its row. The sale keeps its
// partition even if its timestamp moved to another month.
func (l *Ledger) Update(ctx context.Context, e Entry) error {
	e.Record.Timestamp = truncate(e.Record.Timestamp.In(l.loc))
	if err := e.Record.Validate(); err != nil {
		return err
	}
	return l.repo.Save(ctx, e)
}

// UpdateTimestamp rewrites only the datetime cell of e.
func (l *Ledger) UpdateTimestamp(ctx context.Context, e Entry, ts time.Time) (Entry, error) {
	e.Record.Timestamp = truncate(ts.In(l.loc))
	if err := l.repo.SaveCell(ctx, e, TimestampColumn, datefmt.FormatDateTime(e.Record.Timestamp)); err != nil {
		return Entry{}, err
	}
	return e, nil
}

// Delete removes e. Reload the partition afterwards.
func (l *Ledger) Delete(ctx context.Context, e Entry) error {
	return l.repo.Remove(ctx, e)
}

// Find returns the sale with id from the month's partition.
func (l *Ledger) Find(ctx context.Context, month time.Time, id string) (Entry, error) {
	p, err := l.Load(ctx, month)
	if err != nil {
		return Entry{}, err
	}
	e, ok := p.Find(id)
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s in %s", ErrNotFound, id, p.Name)
	}
	return e, nil
}

// Repo exposes the underlying repository, used by the migrator.
func (l *Ledger) Repo() *ledger.Ledger[Sale] { return l.repo }

// Location is the location timestamps are interpreted in.
func (l *Ledger) Location() *time.Location { return l.loc }

// Stored timestamps have second precision.
func truncate(t time.Time) time.Time {
	return t.Truncate(time.Second)
}

// SalesMetadata summarizes a loaded partition.
type SalesMetadata struct {
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TotalProfit decimal.Decimal `json:"total_profit"`
	Skipped     int             `json:"skipped"`
}

// Metadata computes the SalesMetadata of p.
func Metadata(p *Partition) SalesMetadata {
	m := SalesMetadata{TotalAmount: decimal.Zero, TotalProfit: decimal.Zero, Skipped: p.Skipped}
	for _, e := range p.Entries {
		m.Quantity++
		m.TotalAmount = m.TotalAmount.Add(e.Record.Total)
		m.TotalProfit = m.TotalProfit.Add(e.Record.Profit)
	}
	return m
}
