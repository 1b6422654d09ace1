// Package sheets defines the tabular store contract the ledgers are written
// against and ships three implementations of it: a Google Sheets v4 client,
// an in-memory store and a SQLite-backed store.
//
// A table is an ordered list of rows, each row an ordered list of string
// cells. Row 1 is the header row. Reads follow the Sheets convention of
// dropping trailing empty cells and trailing empty rows.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrTableNotFound is returned when a named table does not exist.
	ErrTableNotFound = errors.New("table not found")

	// ErrTableExists is returned by CreateTable when the name is taken.
	ErrTableExists = errors.New("table already exists")

	// ErrRowOutOfRange is returned when a row index does not address an existing row.
	ErrRowOutOfRange = errors.New("row out of range")

	// ErrRemote marks failures reported by the remote store.
	ErrRemote = errors.New("remote store failure")
)

// Row is one record of a table.
type Row []string

// Cell returns the i-th cell or "" when the row is shorter.
func (r Row) Cell(i int) string {
	if i < 0 || i >= len(r) {
		return ""
	}
	return r[i]
}

// Empty reports whether every cell is blank.
func (r Row) Empty() bool {
	for _, c := range r {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Store is the tabular store contract. Every call is a round-trip and may
// fail independently of the others.
type Store interface {
	ListTables(ctx context.Context) ([]string, error)
	CreateTable(ctx context.Context, name string, header Row) error
	ReadRange(ctx context.Context, table string, rng Range) ([]Row, error)
	AppendRows(ctx context.Context, table string, rows []Row) error
	OverwriteRange(ctx context.Context, table string, rng Range, rows []Row) error
	// DeleteRow removes the row at a zero-based index; later rows shift up.
	DeleteRow(ctx context.Context, table string, index int) error
}

// Range addresses a rectangle of a table with 1-based inclusive bounds.
// EndRow == 0 means "to the last row"; EndCol == 0 means "to the last column".
type Range struct {
	StartRow int
	EndRow   int
	StartCol int
	EndCol   int
}

// Rows addresses rows [from, last] over columns 1..cols.
func Rows(from, cols int) Range {
	return Range{StartRow: from, StartCol: 1, EndCol: cols}
}

// Line addresses a single row over columns 1..cols.
func Line(row, cols int) Range {
	return Range{StartRow: row, EndRow: row, StartCol: 1, EndCol: cols}
}

// Cell addresses a single cell.
func Cell(row, col int) Range {
	return Range{StartRow: row, EndRow: row, StartCol: col, EndCol: col}
}

// A1 renders the range in A1 notation without a table prefix, e.g. "A2:F".
func (r Range) A1() string {
	start := ColumnName(max(r.StartCol, 1)) + strconv.Itoa(max(r.StartRow, 1))
	if r.EndRow == r.StartRow && r.EndCol == r.StartCol && r.EndRow != 0 {
		return start
	}
	end := ""
	if r.EndCol > 0 {
		end = ColumnName(r.EndCol)
	} else {
		end = "ZZ"
	}
	if r.EndRow > 0 {
		end += strconv.Itoa(r.EndRow)
	}
	return start + ":" + end
}

// Qualified renders "<table>!<A1>", quoting the table name when needed.
func (r Range) Qualified(table string) string {
	if strings.ContainsAny(table, " '!") {
		table = "'" + strings.ReplaceAll(table, "'", "''") + "'"
	}
	return table + "!" + r.A1()
}

func (r Range) String() string { return r.A1() }

// ColumnName converts a 1-based column number to its letter form (1 → A, 27 → AA).
func ColumnName(col int) string {
	if col < 1 {
		return ""
	}
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}

// APIError carries a failure reported by the remote store.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: remote store returned %d: %s", e.Op, e.Status, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrRemote
}

// HasTable reports whether name is among the store's tables.
func HasTable(ctx context.Context, s Store, name string) (bool, error) {
	names, err := s.ListTables(ctx)
	if err != nil {
		return false, err
	}
	for _, n := range names {
		if n == name {
			return true, nil
		}
	}
	return false, nil
}

// slice cuts rows and columns out of a full table following Sheets read
// semantics. rows[0] is table row 1.
func slice(all []Row, rng Range) []Row {
	start := max(rng.StartRow, 1)
	end := len(all)
	if rng.EndRow > 0 && rng.EndRow < end {
		end = rng.EndRow
	}
	var out []Row
	for i := start; i <= end; i++ {
		out = append(out, cut(all[i-1], rng))
	}
	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func cut(row Row, rng Range) Row {
	from := max(rng.StartCol, 1) - 1
	to := len(row)
	if rng.EndCol > 0 && rng.EndCol < to {
		to = rng.EndCol
	}
	if from >= to {
		return Row{}
	}
	out := append(Row{}, row[from:to]...)
	for len(out) > 0 && out[len(out)-1] == "" {
		out = out[:len(out)-1]
	}
	return out
}

// place writes rows into all at the range origin, growing the table as
// needed, and returns the updated table.
func place(all []Row, rng Range, rows []Row) []Row {
	startRow := max(rng.StartRow, 1)
	startCol := max(rng.StartCol, 1)
	for i, src := range rows {
		idx := startRow - 1 + i
		for len(all) <= idx {
			all = append(all, Row{})
		}
		dst := all[idx]
		need := startCol - 1 + len(src)
		for len(dst) < need {
			dst = append(dst, "")
		}
		copy(dst[startCol-1:], src)
		all[idx] = dst
	}
	return all
}

func cloneRows(rows []Row) []Row {
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = append(Row{}, r...)
	}
	return out
}
