package store

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/slot"
)

// Bookings table schema.
const (
	colBookingID = iota + 1
	colBookingClientID
	colBookingClientName
	colBookingDate
	colBookingTime
	colBookingSlot
	colBookingServiceID
	colBookingPrice
	colBookingDuration
	colBookingStatus
	colBookingReminded
)

var bookingsHeader = []string{
	"id", "client_id", "client_name", "date", "time", "slot",
	"service_id", "price", "duration", "status", "reminded",
}

// BookingRow is a booking together with its physical row index, which
// later status updates and deletes must target.
type BookingRow struct {
	Row int
	model.Booking
}

// Bookings returns all parseable booking rows. Rows with a malformed slot
// identifier are logged and skipped, never fatal.
func (s *Store) Bookings(ctx context.Context) ([]BookingRow, error) {
	rows, err := s.dataRows(ctx, TableBookings)
	if err != nil {
		return nil, err
	}
	out := make([]BookingRow, 0, len(rows))
	for _, r := range rows {
		id, err := slot.Parse(r.cell(colBookingSlot), s.loc)
		if err != nil {
			s.logger.Warn("skipping booking row with bad slot",
				"row", r.index, "slot", r.cell(colBookingSlot))
			continue
		}
		out = append(out, BookingRow{
			Row: r.index,
			Booking: model.Booking{
				ID:         r.intCell(colBookingID),
				ClientID:   r.cell(colBookingClientID),
				ClientName: r.cell(colBookingClientName),
				Slot:       id,
				ServiceID:  r.cell(colBookingServiceID),
				Price:      r.intCell(colBookingPrice),
				Duration:   r.intCell(colBookingDuration),
				Status:     model.BookingStatus(r.cell(colBookingStatus)),
				Reminded:   r.boolCell(colBookingReminded),
			},
		})
	}
	return out, nil
}

func (s *Store) AppendBooking(ctx context.Context, b model.Booking) error {
	at := b.Slot.At()
	row := []string{
		strconv.Itoa(b.ID),
		b.ClientID,
		b.ClientName,
		at.Format("02.01.2006"),
		at.Format("15:04"),
		b.Slot.String(),
		b.ServiceID,
		strconv.Itoa(b.Price),
		strconv.Itoa(b.Duration),
		string(b.Status),
		formatBool(b.Reminded),
	}
	if err := s.rows.Append(ctx, TableBookings, row); err != nil {
		return fmt.Errorf("append booking: %w", err)
	}
	return nil
}

func (s *Store) SetBookingStatus(ctx context.Context, row int, status model.BookingStatus) error {
	if err := s.rows.UpdateCell(ctx, TableBookings, row, colBookingStatus, string(status)); err != nil {
		return fmt.Errorf("set booking status: %w", err)
	}
	return nil
}

func (s *Store) SetBookingReminded(ctx context.Context, row int) error {
	if err := s.rows.UpdateCell(ctx, TableBookings, row, colBookingReminded, boolYes); err != nil {
		return fmt.Errorf("set booking reminded: %w", err)
	}
	return nil
}

func (s *Store) DeleteBooking(ctx context.Context, row int) error {
	if err := s.rows.DeleteRow(ctx, TableBookings, row); err != nil {
		return fmt.Errorf("delete booking: %w", err)
	}
	return nil
}
