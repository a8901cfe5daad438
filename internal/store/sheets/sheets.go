// Package sheets backs the row store with a Google spreadsheet. Every call
// retries transient API failures with exponential backoff before giving up.
package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/store"
)

type Config struct {
	SpreadsheetKey  string
	CredentialsFile string
	Retries         int
	Backoff         time.Duration
}

type RowStore struct {
	svc    *sheets.Service
	key    string
	retry  int
	delay  time.Duration
	logger *slog.Logger

	mu       sync.Mutex
	sheetIDs map[string]int64
}

func New(ctx context.Context, cfg Config, logger *slog.Logger) (*RowStore, error) {
	if cfg.SpreadsheetKey == "" {
		return nil, errors.New("spreadsheet key not configured")
	}
	if cfg.Retries <= 0 {
		cfg.Retries = 3
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 500 * time.Millisecond
	}
	svc, err := sheets.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init sheets client: %w", err)
	}
	rs := &RowStore{
		svc:      svc,
		key:      cfg.SpreadsheetKey,
		retry:    cfg.Retries,
		delay:    cfg.Backoff,
		logger:   logger,
		sheetIDs: make(map[string]int64),
	}
	if err := rs.provision(ctx); err != nil {
		return nil, err
	}
	return rs, nil
}

// provision creates missing worksheets with their header rows and caches
// the title-to-sheetId mapping needed for row deletes.
func (rs *RowStore) provision(ctx context.Context) error {
	var meta *sheets.Spreadsheet
	err := rs.withRetry(ctx, func() error {
		var err error
		meta, err = rs.svc.Spreadsheets.Get(rs.key).Context(ctx).Do()
		return err
	})
	if err != nil {
		return err
	}

	existing := make(map[string]int64)
	for _, sh := range meta.Sheets {
		existing[sh.Properties.Title] = sh.Properties.SheetId
	}

	for title, header := range store.Headers() {
		if id, ok := existing[title]; ok {
			rs.sheetIDs[title] = id
			continue
		}
		req := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: title},
				},
			}},
		}
		var resp *sheets.BatchUpdateSpreadsheetResponse
		err := rs.withRetry(ctx, func() error {
			var err error
			resp, err = rs.svc.Spreadsheets.BatchUpdate(rs.key, req).Context(ctx).Do()
			return err
		})
		if err != nil {
			return err
		}
		rs.sheetIDs[title] = resp.Replies[0].AddSheet.Properties.SheetId
		headerRow := make([]any, len(header))
		for i, h := range header {
			headerRow[i] = h
		}
		if err := rs.appendValues(ctx, title, headerRow); err != nil {
			return err
		}
		rs.logger.Info("created worksheet", "table", title)
	}
	return nil
}

func (rs *RowStore) ReadAll(ctx context.Context, table string) ([][]string, error) {
	var vr *sheets.ValueRange
	err := rs.withRetry(ctx, func() error {
		var err error
		vr, err = rs.svc.Spreadsheets.Values.Get(rs.key, table).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, err
	}
	out := make([][]string, 0, len(vr.Values))
	for _, row := range vr.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = fmt.Sprint(v)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (rs *RowStore) Append(ctx context.Context, table string, row []string) error {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return rs.appendValues(ctx, table, cells)
}

func (rs *RowStore) appendValues(ctx context.Context, table string, cells []any) error {
	vr := &sheets.ValueRange{Values: [][]any{cells}}
	return rs.withRetry(ctx, func() error {
		_, err := rs.svc.Spreadsheets.Values.Append(rs.key, table, vr).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
		return err
	})
}

func (rs *RowStore) UpdateCell(ctx context.Context, table string, row, col int, value string) error {
	rng := fmt.Sprintf("%s!%s%d", table, columnName(col), row)
	vr := &sheets.ValueRange{Values: [][]any{{value}}}
	return rs.withRetry(ctx, func() error {
		_, err := rs.svc.Spreadsheets.Values.Update(rs.key, rng, vr).
			ValueInputOption("RAW").
			Context(ctx).Do()
		return err
	})
}

func (rs *RowStore) DeleteRow(ctx context.Context, table string, row int) error {
	rs.mu.Lock()
	sheetID, ok := rs.sheetIDs[table]
	rs.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown table %q", table)
	}
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			DeleteDimension: &sheets.DeleteDimensionRequest{
				Range: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "ROWS",
					StartIndex: int64(row - 1),
					EndIndex:   int64(row),
				},
			},
		}},
	}
	return rs.withRetry(ctx, func() error {
		_, err := rs.svc.Spreadsheets.BatchUpdate(rs.key, req).Context(ctx).Do()
		return err
	})
}

// withRetry runs call up to the configured attempt count, doubling the
// delay each round. The final failure is surfaced as ErrStoreUnavailable.
func (rs *RowStore) withRetry(ctx context.Context, call func() error) error {
	delay := rs.delay
	var last error
	for attempt := 1; attempt <= rs.retry; attempt++ {
		last = call()
		if last == nil {
			return nil
		}
		rs.logger.Warn("sheets call failed", "attempt", attempt, "err", last)
		if attempt == rs.retry {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("%w: %v", model.ErrStoreUnavailable, last)
}

// columnName converts a 1-based column index to A1 notation.
func columnName(col int) string {
	name := ""
	for col > 0 {
		col--
		name = string(rune('A'+col%26)) + name
		col /= 26
	}
	return name
}
