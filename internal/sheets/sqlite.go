package sheets

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sheet_tables (
	name       TEXT PRIMARY KEY,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS sheet_rows (
	table_name TEXT NOT NULL,
	pos        INTEGER NOT NULL,
	cells      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_sheet_rows_table_pos ON sheet_rows(table_name, pos);
`

// SQLite is a Store kept in a local SQLite file. Each table row is stored
// as a JSON array of cells keyed by its 1-based position, so position
// semantics match the remote spreadsheet exactly.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// OpenSQLite opens (creating if needed) a SQLite-backed store.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) ListTables(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM sheet_tables ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (s *SQLite) CreateTable(ctx context.Context, name string, header Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheet_tables WHERE name = ?`, name).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrTableExists
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO sheet_tables (name) VALUES (?)`, name); err != nil {
			return err
		}
		return writeRow(ctx, tx, name, 1, header)
	})
}

func (s *SQLite) ReadRange(ctx context.Context, table string, rng Range) ([]Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.load(ctx, s.db, table)
	if err != nil {
		return nil, err
	}
	return slice(all, rng), nil
}

func (s *SQLite) AppendRows(ctx context.Context, table string, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		all, err := s.load(ctx, tx, table)
		if err != nil {
			return err
		}
		last := len(all)
		for last > 0 && all[last-1].Empty() {
			last--
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE table_name = ? AND pos > ?`, table, last); err != nil {
			return err
		}
		for i, r := range rows {
			if err := writeRow(ctx, tx, table, last+1+i, r); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLite) OverwriteRange(ctx context.Context, table string, rng Range, rows []Row) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		all, err := s.load(ctx, tx, table)
		if err != nil {
			return err
		}
		all = place(all, rng, rows)
		start := max(rng.StartRow, 1)
		for i := start; i < start+len(rows); i++ {
			if _, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE table_name = ? AND pos = ?`, table, i); err != nil {
				return err
			}
			if err := writeRow(ctx, tx, table, i, all[i-1]); err != nil {
				return err
			}
		}
		// Rows created as gaps by place must exist so later positions stay addressable.
		for i := 1; i < start && i <= len(all); i++ {
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheet_rows WHERE table_name = ? AND pos = ?`, table, i).Scan(&n); err != nil {
				return err
			}
			if n == 0 {
				if err := writeRow(ctx, tx, table, i, all[i-1]); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

func (s *SQLite) DeleteRow(ctx context.Context, table string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := ensureTable(ctx, tx, table); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM sheet_rows WHERE table_name = ? AND pos = ?`, table, index+1)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ErrRowOutOfRange
		}
		_, err = tx.ExecContext(ctx, `UPDATE sheet_rows SET pos = pos - 1 WHERE table_name = ? AND pos > ?`, table, index+1)
		return err
	})
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLite) load(ctx context.Context, q querier, table string) ([]Row, error) {
	if err := ensureTable(ctx, q, table); err != nil {
		return nil, err
	}
	rows, err := q.QueryContext(ctx, `SELECT pos, cells FROM sheet_rows WHERE table_name = ? ORDER BY pos`, table)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	defer rows.Close()

	var all []Row
	for rows.Next() {
		var (
			pos   int
			cells string
		)
		if err := rows.Scan(&pos, &cells); err != nil {
			return nil, err
		}
		var r Row
		if err := json.Unmarshal([]byte(cells), &r); err != nil {
			return nil, fmt.Errorf("decode row %d of %s: %w", pos, table, err)
		}
		for len(all) < pos-1 {
			all = append(all, Row{})
		}
		all = append(all, r)
	}
	return all, rows.Err()
}

func ensureTable(ctx context.Context, q querier, table string) error {
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM sheet_tables WHERE name = ?`, table).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return nil
}

func writeRow(ctx context.Context, tx *sql.Tx, table string, pos int, r Row) error {
	if r == nil {
		r = Row{}
	}
	cells, err := json.Marshal(r)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO sheet_rows (table_name, pos, cells) VALUES (?, ?, ?)`, table, pos, string(cells))
	return err
}

func (s *SQLite) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
