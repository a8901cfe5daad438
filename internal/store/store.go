// Package store turns the external row store (a spreadsheet) into typed
// table repositories. All row access goes through a fixed column schema;
// nothing downstream ever touches positional data.
package store

import (
	"context"
	"log/slog"
	"strconv"
	"time"
)

// Table names as they appear in the backing spreadsheet.
const (
	TableClients     = "Clients"
	TableServices    = "Services"
	TableSlotCatalog = "SlotCatalog"
	TableBookings    = "Bookings"
	TableCatchQueue  = "CatchQueue"
	TableSettings    = "Settings"
)

// RowStore is the raw collaborator surface. Row and column indexes are
// 1-based; ReadAll returns the header row first. Implementations retry
// transient failures internally and return an error only after the retry
// budget is spent.
type RowStore interface {
	ReadAll(ctx context.Context, table string) ([][]string, error)
	Append(ctx context.Context, table string, row []string) error
	UpdateCell(ctx context.Context, table string, row, col int, value string) error
	DeleteRow(ctx context.Context, table string, row int) error
}

type Store struct {
	rows   RowStore
	loc    *time.Location
	logger *slog.Logger
}

func New(rows RowStore, loc *time.Location, logger *slog.Logger) *Store {
	return &Store{rows: rows, loc: loc, logger: logger}
}

// dataRows strips the header and reports each remaining row with its
// 1-based sheet index (data starts at row 2).
func (s *Store) dataRows(ctx context.Context, table string) ([]indexedRow, error) {
	all, err := s.rows.ReadAll(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(all) <= 1 {
		return nil, nil
	}
	out := make([]indexedRow, 0, len(all)-1)
	for i, r := range all[1:] {
		out = append(out, indexedRow{index: i + 2, cells: r})
	}
	return out, nil
}

type indexedRow struct {
	index int
	cells []string
}

func (r indexedRow) cell(col int) string {
	if col < 1 || col > len(r.cells) {
		return ""
	}
	return r.cells[col-1]
}

func (r indexedRow) intCell(col int) int {
	n, _ := strconv.Atoi(r.cell(col))
	return n
}

func (r indexedRow) int64Cell(col int) int64 {
	n, _ := strconv.ParseInt(r.cell(col), 10, 64)
	return n
}

func (r indexedRow) boolCell(col int) bool {
	return r.cell(col) == boolYes
}

const (
	boolYes = "yes"
	boolNo  = "no"
)

func formatBool(v bool) string {
	if v {
		return boolYes
	}
	return boolNo
}
