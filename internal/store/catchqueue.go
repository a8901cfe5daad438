package store

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/slot"
)

// CatchQueue table schema.
const (
	colCatchClientID = iota + 1
	colCatchSlot
	colCatchServiceID
	colCatchNotified
	colCatchCreatedAt
	colCatchChatID
)

var catchQueueHeader = []string{"client_id", "slot", "service_id", "notified", "created_at", "chat_id"}

const catchCreatedAtLayout = "02.01.2006 15:04:05"

type CatchRow struct {
	Row int
	model.CatchEntry
}

func (s *Store) AppendCatch(ctx context.Context, e model.CatchEntry) error {
	row := []string{
		e.ClientID,
		e.Slot.String(),
		e.ServiceID,
		formatBool(e.Notified),
		e.CreatedAt.Format(catchCreatedAtLayout),
		strconv.FormatInt(e.ChatID, 10),
	}
	if err := s.rows.Append(ctx, TableCatchQueue, row); err != nil {
		return fmt.Errorf("append catch entry: %w", err)
	}
	return nil
}

// CatchCandidates returns the not-yet-notified entries waiting on exactly
// this slot, in insertion order (store row order approximates FIFO).
func (s *Store) CatchCandidates(ctx context.Context, id slot.ID) ([]CatchRow, error) {
	rows, err := s.dataRows(ctx, TableCatchQueue)
	if err != nil {
		return nil, err
	}
	var out []CatchRow
	for _, r := range rows {
		if r.cell(colCatchSlot) != id.String() || r.boolCell(colCatchNotified) {
			continue
		}
		out = append(out, s.catchRow(r, id))
	}
	return out, nil
}

// CatchEntries returns the whole queue, malformed slots skipped.
func (s *Store) CatchEntries(ctx context.Context) ([]CatchRow, error) {
	rows, err := s.dataRows(ctx, TableCatchQueue)
	if err != nil {
		return nil, err
	}
	var out []CatchRow
	for _, r := range rows {
		id, err := slot.Parse(r.cell(colCatchSlot), s.loc)
		if err != nil {
			s.logger.Warn("skipping catch row with bad slot", "row", r.index, "slot", r.cell(colCatchSlot))
			continue
		}
		out = append(out, s.catchRow(r, id))
	}
	return out, nil
}

func (s *Store) catchRow(r indexedRow, id slot.ID) CatchRow {
	created, _ := time.ParseInLocation(catchCreatedAtLayout, r.cell(colCatchCreatedAt), s.loc)
	return CatchRow{
		Row: r.index,
		CatchEntry: model.CatchEntry{
			ClientID:  r.cell(colCatchClientID),
			Slot:      id,
			ServiceID: r.cell(colCatchServiceID),
			Notified:  r.boolCell(colCatchNotified),
			CreatedAt: created,
			ChatID:    r.int64Cell(colCatchChatID),
		},
	}
}

func (s *Store) MarkCatchNotified(ctx context.Context, row int) error {
	if err := s.rows.UpdateCell(ctx, TableCatchQueue, row, colCatchNotified, boolYes); err != nil {
		return fmt.Errorf("mark catch notified: %w", err)
	}
	return nil
}

func (s *Store) DeleteCatch(ctx context.Context, row int) error {
	if err := s.rows.DeleteRow(ctx, TableCatchQueue, row); err != nil {
		return fmt.Errorf("delete catch entry: %w", err)
	}
	return nil
}
