// Package partition maps ledger records onto monthly tables named
// "<base>_<MM>_<YYYY>" and makes sure those tables exist before they are
// written to.
package partition

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"pos_ledger/internal/sheets"
)

// ErrInvalidName is returned by Parse for names outside the naming scheme.
var ErrInvalidName = errors.New("invalid partition name")

// Key identifies one monthly partition of a base ledger.
type Key struct {
	Base  string
	Year  int
	Month time.Month
}

// KeyOf derives the partition key of date. Only the calendar year and month
// of date in its own location are used.
func KeyOf(base string, date time.Time) Key {
	return Key{Base: base, Year: date.Year(), Month: date.Month()}
}

// String serializes the key as "<base>_<MM>_<YYYY>".
func (k Key) String() string {
	return fmt.Sprintf("%s_%02d_%04d", k.Base, int(k.Month), k.Year)
}

// Start returns the first instant of the partition's month in loc.
func (k Key) Start(loc *time.Location) time.Time {
	return time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, loc)
}

// Name resolves the partition table name for base and date.
func Name(base string, date time.Time) string {
	return KeyOf(base, date).String()
}

// Parse is the inverse of Key.String.
func Parse(name string) (Key, error) {
	i := strings.LastIndex(name, "_")
	if i <= 0 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	j := strings.LastIndex(name[:i], "_")
	if j <= 0 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	mm, yyyy := name[j+1:i], name[i+1:]
	if len(mm) != 2 || len(yyyy) != 4 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	month, err := strconv.Atoi(mm)
	if err != nil || month < 1 || month > 12 {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	year, err := strconv.Atoi(yyyy)
	if err != nil {
		return Key{}, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return Key{Base: name[:j], Year: year, Month: time.Month(month)}, nil
}

// Resolver creates partition tables on first use.
type Resolver struct {
	store  sheets.Store
	logger *zap.Logger
}

// NewResolver creates a Resolver over store.
func NewResolver(store sheets.Store, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, logger: logger}
}

// Exists reports whether the partition table is present.
func (r *Resolver) Exists(ctx context.Context, name string) (bool, error) {
	ok, err := sheets.HasTable(ctx, r.store, name)
	if err != nil {
		return false, fmt.Errorf("listing partitions: %w", err)
	}
	return ok, nil
}

// Ensure creates the table with header as its first row when it does not
// exist yet. It reports whether a table was created; calling it again for
// the same name is a no-op.
func (r *Resolver) Ensure(ctx context.Context, name string, header sheets.Row) (bool, error) {
	ok, err := r.Exists(ctx, name)
	if err != nil {
		return false, err
	}
	if ok {
		return false, nil
	}

	err = r.store.CreateTable(ctx, name, header)
	if errors.Is(err, sheets.ErrTableExists) {
		// Created between our listing and our create call.
		return false, nil
	}
	if err != nil {
		r.logger.Error("failed to create partition", zap.String("partition", name), zap.Error(err))
		return false, fmt.Errorf("creating partition %s: %w", name, err)
	}

	r.logger.Info("partition created", zap.String("partition", name))
	return true, nil
}

// List returns the keys of every existing partition of base, oldest first.
func (r *Resolver) List(ctx context.Context, base string) ([]Key, error) {
	names, err := r.store.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing partitions: %w", err)
	}
	var keys []Key
	for _, n := range names {
		k, err := Parse(n)
		if err != nil || k.Base != base {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Year != keys[j].Year {
			return keys[i].Year < keys[j].Year
		}
		return keys[i].Month < keys[j].Month
	})
	return keys, nil
}
