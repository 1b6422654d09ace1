package sheets

import (
	"context"
	"sync"
)

// Memory is an in-memory Store for tests and local development.
type Memory struct {
	mu     sync.RWMutex
	order  []string
	tables map[string][]Row

	// Fail, when set, is consulted before every call; a non-nil return
	// aborts the call with that error. Tests use it to inject remote faults.
	Fail func(op, table string) error
}

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{tables: map[string][]Row{}}
}

func (m *Memory) fail(op, table string) error {
	if m.Fail == nil {
		return nil
	}
	return m.Fail(op, table)
}

func (m *Memory) ListTables(_ context.Context) ([]string, error) {
	if err := m.fail("list", ""); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.order...), nil
}

func (m *Memory) CreateTable(_ context.Context, name string, header Row) error {
	if err := m.fail("create", name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[name]; ok {
		return ErrTableExists
	}
	m.order = append(m.order, name)
	m.tables[name] = []Row{append(Row{}, header...)}
	return nil
}

func (m *Memory) ReadRange(_ context.Context, table string, rng Range) ([]Row, error) {
	if err := m.fail("read", table); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	all, ok := m.tables[table]
	if !ok {
		return nil, ErrTableNotFound
	}
	return slice(all, rng), nil
}

func (m *Memory) AppendRows(_ context.Context, table string, rows []Row) error {
	if err := m.fail("append", table); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	all, ok := m.tables[table]
	if !ok {
		return ErrTableNotFound
	}
	last := len(all)
	for last > 0 && all[last-1].Empty() {
		last--
	}
	m.tables[table] = append(all[:last], cloneRows(rows)...)
	return nil
}

func (m *Memory) OverwriteRange(_ context.Context, table string, rng Range, rows []Row) error {
	if err := m.fail("overwrite", table); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	all, ok := m.tables[table]
	if !ok {
		return ErrTableNotFound
	}
	m.tables[table] = place(all, rng, rows)
	return nil
}

func (m *Memory) DeleteRow(_ context.Context, table string, index int) error {
	if err := m.fail("delete", table); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	all, ok := m.tables[table]
	if !ok {
		return ErrTableNotFound
	}
	if index < 0 || index >= len(all) {
		return ErrRowOutOfRange
	}
	m.tables[table] = append(all[:index], all[index+1:]...)
	return nil
}

// Table returns a copy of every row of a table, header included.
func (m *Memory) Table(name string) []Row {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneRows(m.tables[name])
}
