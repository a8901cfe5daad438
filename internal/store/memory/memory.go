// Package memory is an in-process RowStore used by tests and local runs
// without spreadsheet credentials.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ledassalon/slotbot/internal/store"
)

type RowStore struct {
	mu     sync.Mutex
	tables map[string][][]string
}

func New() *RowStore {
	tables := make(map[string][][]string)
	for name, header := range store.Headers() {
		tables[name] = [][]string{append([]string(nil), header...)}
	}
	return &RowStore{tables: tables}
}

func (m *RowStore) ReadAll(_ context.Context, table string) ([][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		return nil, fmt.Errorf("unknown table %q", table)
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out, nil
}

func (m *RowStore) Append(_ context.Context, table string, row []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[table]; !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	m.tables[table] = append(m.tables[table], append([]string(nil), row...))
	return nil
}

func (m *RowStore) UpdateCell(_ context.Context, table string, row, col int, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	if row < 1 || row > len(rows) {
		return fmt.Errorf("row %d out of range for %q", row, table)
	}
	r := rows[row-1]
	for len(r) < col {
		r = append(r, "")
	}
	r[col-1] = value
	rows[row-1] = r
	return nil
}

func (m *RowStore) DeleteRow(_ context.Context, table string, row int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rows, ok := m.tables[table]
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	if row < 1 || row > len(rows) {
		return fmt.Errorf("row %d out of range for %q", row, table)
	}
	m.tables[table] = append(rows[:row-1], rows[row:]...)
	return nil
}
