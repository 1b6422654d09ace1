/*
Package ledger is the position-addressed repository shared by the sales and
cash-flow ledgers.

PARTITIONS:
  Records live in monthly tables ("<base>_<MM>_<YYYY>", see package
  partition). Load reads one partition wholesale and returns it as a
  Partition value; nothing is cached in the Ledger itself.

POSITIONS:
  Every loaded Entry remembers the table it came from and its 1-based row
  (the header is row 1). Save and Remove write to exactly that row of exactly
  that table, even when an edited date now belongs to another month. Records
  never move between partitions.

LOST UPDATES:
  The store has no compare-and-swap. Before writing, Save and Remove re-read
  the id cell at the stored row and refuse with ErrStalePosition when it no
  longer holds the entry's id (another writer inserted or deleted rows). A
  writer racing between that read and the write can still be overwritten.

IDS:
  Record ids are immutable and unique within a partition; Append rejects a
  duplicate with ErrDuplicateID.
*/
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"pos_ledger/internal/partition"
	"pos_ledger/internal/sheets"
)

var (
	// ErrNotFound is returned when a record id is not in the partition.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateID is returned by Append when the id is already present.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrStalePosition is returned when the row no longer holds the record.
	ErrStalePosition = errors.New("record position is stale, reload the partition")
)

// Codec converts records to and from table rows.
type Codec[T any] interface {
	Header() sheets.Row
	ID(rec T) string
	Encode(rec T) sheets.Row
	Decode(row sheets.Row) (T, error)
}

// Entry is a record together with its storage address.
type Entry[T any] struct {
	Record    T
	Row       int
	Partition string
}

// Partition is one loaded monthly table.
type Partition[T any] struct {
	Key     partition.Key
	Name    string
	Exists  bool
	Entries []Entry[T]
	// Skipped counts rows that could not be decoded.
	Skipped int

	id func(T) string
}

// Find returns the entry with the given id.
func (p *Partition[T]) Find(id string) (Entry[T], bool) {
	for _, e := range p.Entries {
		if p.id(e.Record) == id {
			return e, true
		}
	}
	return Entry[T]{}, false
}

// Records returns the records in row order.
func (p *Partition[T]) Records() []T {
	out := make([]T, len(p.Entries))
	for i, e := range p.Entries {
		out[i] = e.Record
	}
	return out
}

// Ledger is a partitioned repository for one base table.
type Ledger[T any] struct {
	base     string
	store    sheets.Store
	resolver *partition.Resolver
	codec    Codec[T]
	logger   *zap.Logger
}

// New creates a Ledger whose partitions are named after base.
func New[T any](base string, store sheets.Store, codec Codec[T], logger *zap.Logger) *Ledger[T] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ledger[T]{
		base:     base,
		store:    store,
		resolver: partition.NewResolver(store, logger),
		codec:    codec,
		logger:   logger.With(zap.String("ledger", base)),
	}
}

// Base returns the base table name.
func (l *Ledger[T]) Base() string { return l.base }

// Header returns the header row written to new partitions.
func (l *Ledger[T]) Header() sheets.Row { return l.codec.Header() }

// PartitionName resolves the partition table name for date.
func (l *Ledger[T]) PartitionName(date time.Time) string {
	return partition.Name(l.base, date)
}

// Load reads the partition date belongs to. A partition that was never
// created is returned empty, not as an error.
func (l *Ledger[T]) Load(ctx context.Context, date time.Time) (*Partition[T], error) {
	return l.load(ctx, partition.KeyOf(l.base, date))
}

func (l *Ledger[T]) load(ctx context.Context, key partition.Key) (*Partition[T], error) {
	p := &Partition[T]{Key: key, Name: key.String(), id: l.codec.ID}

	exists, err := l.resolver.Exists(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if !exists {
		l.logger.Debug("partition not created yet", zap.String("partition", p.Name))
		return p, nil
	}
	p.Exists = true

	rows, err := l.store.ReadRange(ctx, p.Name, sheets.Rows(2, len(l.codec.Header())))
	if errors.Is(err, sheets.ErrTableNotFound) {
		p.Exists = false
		return p, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", p.Name, err)
	}

	for i, row := range rows {
		if row.Empty() {
			continue
		}
		rec, err := l.codec.Decode(row)
		if err != nil {
			p.Skipped++
			l.logger.Warn("skipping undecodable row",
				zap.String("partition", p.Name),
				zap.Int("row", i+2),
				zap.Error(err),
			)
			continue
		}
		p.Entries = append(p.Entries, Entry[T]{Record: rec, Row: i + 2, Partition: p.Name})
	}
	return p, nil
}

// IDs returns the set of ids present in a partition table. A missing table
// yields an empty set.
func (l *Ledger[T]) IDs(ctx context.Context, name string) (map[string]bool, error) {
	rows, err := l.store.ReadRange(ctx, name, sheets.Range{StartRow: 2, StartCol: 1, EndCol: 1})
	if errors.Is(err, sheets.ErrTableNotFound) {
		return map[string]bool{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading ids of %s: %w", name, err)
	}
	ids := make(map[string]bool, len(rows))
	for _, r := range rows {
		if id := r.Cell(0); id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}

// Append writes rec to the partition of date, creating the partition first
// if needed.
func (l *Ledger[T]) Append(ctx context.Context, date time.Time, rec T) (Entry[T], error) {
	name := l.PartitionName(date)
	if _, err := l.resolver.Ensure(ctx, name, l.codec.Header()); err != nil {
		return Entry[T]{}, err
	}

	rows, err := l.store.ReadRange(ctx, name, sheets.Range{StartRow: 2, StartCol: 1, EndCol: 1})
	if err != nil {
		return Entry[T]{}, fmt.Errorf("reading ids of %s: %w", name, err)
	}
	id := l.codec.ID(rec)
	for _, r := range rows {
		if r.Cell(0) == id {
			return Entry[T]{}, fmt.Errorf("%w: %s in %s", ErrDuplicateID, id, name)
		}
	}

	if err := l.store.AppendRows(ctx, name, []sheets.Row{l.codec.Encode(rec)}); err != nil {
		l.logger.Error("append failed", zap.String("partition", name), zap.String("id", id), zap.Error(err))
		return Entry[T]{}, fmt.Errorf("appending to %s: %w", name, err)
	}

	l.logger.Info("record appended", zap.String("partition", name), zap.String("id", id))
	return Entry[T]{Record: rec, Row: len(rows) + 2, Partition: name}, nil
}

// Save overwrites the entry's row in its own partition with its current
// field values.
func (l *Ledger[T]) Save(ctx context.Context, e Entry[T]) error {
	if err := l.verify(ctx, e); err != nil {
		return err
	}
	row := l.codec.Encode(e.Record)
	if err := l.store.OverwriteRange(ctx, e.Partition, sheets.Line(e.Row, len(row)), []sheets.Row{row}); err != nil {
		l.logger.Error("save failed",
			zap.String("partition", e.Partition),
			zap.Int("row", e.Row),
			zap.Error(err),
		)
		return fmt.Errorf("saving row %d of %s: %w", e.Row, e.Partition, err)
	}
	l.logger.Info("record saved", zap.String("partition", e.Partition), zap.String("id", l.codec.ID(e.Record)))
	return nil
}

// SaveCell overwrites a single column (1-based) of the entry's row.
func (l *Ledger[T]) SaveCell(ctx context.Context, e Entry[T], col int, value string) error {
	if err := l.verify(ctx, e); err != nil {
		return err
	}
	if err := l.store.OverwriteRange(ctx, e.Partition, sheets.Cell(e.Row, col), []sheets.Row{{value}}); err != nil {
		return fmt.Errorf("saving %s of %s: %w", sheets.Cell(e.Row, col), e.Partition, err)
	}
	return nil
}

// Remove deletes the entry's row. Rows below it shift up, so every other
// entry loaded from the same partition is stale afterwards.
func (l *Ledger[T]) Remove(ctx context.Context, e Entry[T]) error {
	if err := l.verify(ctx, e); err != nil {
		return err
	}
	if err := l.store.DeleteRow(ctx, e.Partition, e.Row-1); err != nil {
		l.logger.Error("delete failed", zap.String("partition", e.Partition), zap.Int("row", e.Row), zap.Error(err))
		return fmt.Errorf("deleting row %d of %s: %w", e.Row, e.Partition, err)
	}
	l.logger.Info("record removed", zap.String("partition", e.Partition), zap.String("id", l.codec.ID(e.Record)))
	return nil
}

func (l *Ledger[T]) verify(ctx context.Context, e Entry[T]) error {
	if e.Partition == "" || e.Row < 2 {
		return fmt.Errorf("%w: entry has no storage address", ErrNotFound)
	}
	rows, err := l.store.ReadRange(ctx, e.Partition, sheets.Cell(e.Row, 1))
	if errors.Is(err, sheets.ErrTableNotFound) {
		return fmt.Errorf("%w: partition %s", ErrNotFound, e.Partition)
	}
	if err != nil {
		return fmt.Errorf("checking row %d of %s: %w", e.Row, e.Partition, err)
	}
	want := l.codec.ID(e.Record)
	if len(rows) == 0 || rows[0].Cell(0) != want {
		l.logger.Warn("stale position",
			zap.String("partition", e.Partition),
			zap.Int("row", e.Row),
			zap.String("id", want),
		)
		return fmt.Errorf("%w: %s at row %d of %s", ErrStalePosition, want, e.Row, e.Partition)
	}
	return nil
}
