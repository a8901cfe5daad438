// Package booking owns the booking lifecycle: reserving slots, cancelling,
// confirming, and the time-driven transitions applied by the sweep.
//
// The backing store has no compare-and-swap, so every mutating operation
// re-derives its preconditions immediately before the write. That shrinks
// the race window to the single store round-trip; it cannot remove it.
package booking

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/ledassalon/slotbot/internal/availability"
	"github.com/ledassalon/slotbot/internal/events"
	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/slot"
	"github.com/ledassalon/slotbot/internal/store"
)

type adminNotifier interface {
	Notify(ctx context.Context, text string)
}

type Config struct {
	UnavailableBefore time.Duration
	DisplayMin        time.Duration
	CatchMin          time.Duration
}

type Manager struct {
	store  *store.Store
	admin  adminNotifier
	events events.Publisher
	logger *slog.Logger
	now    func() time.Time
	cfg    Config
}

func NewManager(st *store.Store, admin adminNotifier, pub events.Publisher, logger *slog.Logger, now func() time.Time, cfg Config) *Manager {
	return &Manager{store: st, admin: admin, events: pub, logger: logger, now: now, cfg: cfg}
}

func (m *Manager) Config() Config { return m.cfg }

// FreeSlots derives the currently displayable free set from the catalog
// and the non-terminal bookings.
func (m *Manager) FreeSlots(ctx context.Context) ([]slot.ID, error) {
	catalog, err := m.store.SlotCatalog(ctx)
	if err != nil {
		return nil, err
	}
	taken, err := m.TakenSlots(ctx, availability.TakenOptions{})
	if err != nil {
		return nil, err
	}
	return availability.Free(catalog, taken, m.now(), m.cfg.DisplayMin), nil
}

func (m *Manager) TakenSlots(ctx context.Context, opts availability.TakenOptions) ([]slot.ID, error) {
	rows, err := m.store.Bookings(ctx)
	if err != nil {
		return nil, err
	}
	bookings := make([]model.Booking, len(rows))
	for i, r := range rows {
		bookings[i] = r.Booking
	}
	return availability.Taken(bookings, m.now(), opts), nil
}

// CatchableSlots is the taken set a client may enrol against: their own
// bookings hidden and the tighter catch horizon applied.
func (m *Manager) CatchableSlots(ctx context.Context, clientID string) ([]slot.ID, error) {
	return m.TakenSlots(ctx, availability.TakenOptions{
		ExcludeClientID: clientID,
		MinAhead:        m.cfg.CatchMin,
	})
}

// Active returns the client's future non-terminal booking, if any.
func (m *Manager) Active(ctx context.Context, clientID string) (*store.BookingRow, error) {
	rows, err := m.store.Bookings(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	for _, r := range rows {
		if r.ClientID == clientID && r.Status.Active() && r.Slot.At().After(now) {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

// Book reserves id for the client. The free set is re-derived here, right
// before the append; a slot that vanished in between surfaces as
// ErrSlotTaken ("choose another time"), a pre-existing active booking as
// ErrAlreadyBooked. Admin notification is fire-and-forget.
func (m *Manager) Book(ctx context.Context, client model.Client, svc model.Service, id slot.ID) (int, error) {
	ctx, span := otel.Tracer("slotbot").Start(ctx, "booking.book")
	defer span.End()
	span.SetAttributes(attribute.String("slot", id.String()))

	active, err := m.Active(ctx, client.ID)
	if err != nil {
		return 0, err
	}
	if active != nil {
		return 0, model.ErrAlreadyBooked
	}

	free, err := m.FreeSlots(ctx)
	if err != nil {
		return 0, err
	}
	if !containsSlot(free, id) {
		return 0, model.ErrSlotTaken
	}

	bookingID, err := m.appendBooking(ctx, client, svc, id)
	if err != nil {
		return 0, err
	}

	m.admin.Notify(ctx, fmt.Sprintf(
		"New booking\nService: %s\nSlot: %s\nClient: %s\nPhone: %s\nHandle: %s",
		svc.Name, id.String(), client.FullName(), client.Phone, client.Handle))
	m.events.Publish(ctx, events.Event{Type: events.TypeBookingCreated, Payload: map[string]any{
		"booking_id": bookingID,
		"client_id":  client.ID,
		"service_id": svc.ID,
		"slot":       id.String(),
	}})
	m.logger.Info("booking created", "booking_id", bookingID, "client_id", client.ID, "slot", id.String())
	return bookingID, nil
}

// appendBooking assigns max+1 as the next id and writes the unconfirmed
// row. The id assignment is not safe against a true concurrent writer;
// the single-process conversational flow keeps the window narrow.
func (m *Manager) appendBooking(ctx context.Context, client model.Client, svc model.Service, id slot.ID) (int, error) {
	rows, err := m.store.Bookings(ctx)
	if err != nil {
		return 0, err
	}
	next := 1
	for _, r := range rows {
		if r.ID >= next {
			next = r.ID + 1
		}
	}
	b := model.Booking{
		ID:         next,
		ClientID:   client.ID,
		ClientName: client.FullName(),
		Slot:       id,
		ServiceID:  svc.ID,
		Price:      svc.Price,
		Duration:   svc.Duration,
		Status:     model.StatusUnconfirmed,
	}
	if err := m.store.AppendBooking(ctx, b); err != nil {
		return 0, err
	}
	return next, nil
}

// BookClaimed writes a booking for a waitlist claim. Unlike Book it does
// not apply the display horizon (catching accepts shorter notice); the
// caller has already validated the unavailability deadline and the
// claimant's prior booking is gone. The taken set is still re-derived
// right before the write.
func (m *Manager) BookClaimed(ctx context.Context, client model.Client, svc model.Service, id slot.ID) (int, error) {
	ctx, span := otel.Tracer("slotbot").Start(ctx, "booking.book_claimed")
	defer span.End()
	span.SetAttributes(attribute.String("slot", id.String()))

	taken, err := m.TakenSlots(ctx, availability.TakenOptions{})
	if err != nil {
		return 0, err
	}
	if containsSlot(taken, id) {
		return 0, model.ErrSlotTaken
	}
	bookingID, err := m.appendBooking(ctx, client, svc, id)
	if err != nil {
		return 0, err
	}
	m.events.Publish(ctx, events.Event{Type: events.TypeSlotCaught, Payload: map[string]any{
		"booking_id": bookingID,
		"client_id":  client.ID,
		"service_id": svc.ID,
		"slot":       id.String(),
	}})
	m.logger.Info("caught slot booked", "booking_id", bookingID, "client_id", client.ID, "slot", id.String())
	return bookingID, nil
}

// Cancel deletes the client's first booking row and reports the freed slot
// for waitlist notification. No booking is not an error: both returns are
// zero.
func (m *Manager) Cancel(ctx context.Context, clientID string) (slot.ID, *model.Booking, error) {
	ctx, span := otel.Tracer("slotbot").Start(ctx, "booking.cancel")
	defer span.End()

	rows, err := m.store.Bookings(ctx)
	if err != nil {
		return slot.ID{}, nil, err
	}
	for _, r := range rows {
		if r.ClientID != clientID {
			continue
		}
		if err := m.store.DeleteBooking(ctx, r.Row); err != nil {
			return slot.ID{}, nil, err
		}
		cancelled := r.Booking
		m.events.Publish(ctx, events.Event{Type: events.TypeBookingCancelled, Payload: map[string]any{
			"booking_id": cancelled.ID,
			"client_id":  clientID,
			"slot":       cancelled.Slot.String(),
		}})
		m.logger.Info("booking cancelled", "booking_id", cancelled.ID, "client_id", clientID, "slot", cancelled.Slot.String())
		return cancelled.Slot, &cancelled, nil
	}
	return slot.ID{}, nil, nil
}

// Confirm marks the booking confirmed. Confirming twice is harmless.
func (m *Manager) Confirm(ctx context.Context, bookingID int) (*store.BookingRow, error) {
	rows, err := m.store.Bookings(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		if r.ID != bookingID {
			continue
		}
		if r.Status == model.StatusConfirmed {
			row := r
			return &row, nil
		}
		if err := m.store.SetBookingStatus(ctx, r.Row, model.StatusConfirmed); err != nil {
			return nil, err
		}
		r.Status = model.StatusConfirmed
		m.events.Publish(ctx, events.Event{Type: events.TypeBookingConfirmed, Payload: map[string]any{
			"booking_id": bookingID,
			"client_id":  r.ClientID,
			"slot":       r.Slot.String(),
		}})
		row := r
		return &row, nil
	}
	return nil, model.ErrBookingNotFound
}

// ExpireUnconfirmed auto-cancels bookings still unconfirmed inside the
// unavailability window and returns their freed slots. Invoked only by
// the sweep.
func (m *Manager) ExpireUnconfirmed(ctx context.Context) ([]store.BookingRow, error) {
	rows, err := m.store.Bookings(ctx)
	if err != nil {
		return nil, err
	}
	deadline := m.now().Add(m.cfg.UnavailableBefore)
	var expired []store.BookingRow
	for _, r := range rows {
		if r.Status != model.StatusUnconfirmed {
			continue
		}
		if r.Slot.At().After(deadline) {
			continue
		}
		if !r.Slot.At().After(m.now()) {
			// Fully elapsed rows belong to MarkPast, not auto-cancel.
			continue
		}
		if err := m.store.SetBookingStatus(ctx, r.Row, model.StatusCancelled); err != nil {
			m.logger.Warn("auto-cancel failed", "booking_id", r.ID, "err", err)
			continue
		}
		m.events.Publish(ctx, events.Event{Type: events.TypeBookingExpired, Payload: map[string]any{
			"booking_id": r.ID,
			"client_id":  r.ClientID,
			"slot":       r.Slot.String(),
		}})
		m.logger.Info("booking auto-cancelled", "booking_id", r.ID, "slot", r.Slot.String())
		expired = append(expired, r)
	}
	return expired, nil
}

// MarkPast flips elapsed non-cancelled bookings to past. Invoked only by
// the sweep.
func (m *Manager) MarkPast(ctx context.Context) error {
	rows, err := m.store.Bookings(ctx)
	if err != nil {
		return err
	}
	now := m.now()
	for _, r := range rows {
		if !r.Slot.At().Before(now) {
			continue
		}
		if r.Status == model.StatusCancelled || r.Status == model.StatusPast {
			continue
		}
		if err := m.store.SetBookingStatus(ctx, r.Row, model.StatusPast); err != nil {
			m.logger.Warn("mark past failed", "booking_id", r.ID, "err", err)
		}
	}
	return nil
}

// DueReminders lists unconfirmed, not-yet-reminded bookings whose
// reminder window has opened: inside lead of the auto-cancel deadline but
// not yet past it.
func (m *Manager) DueReminders(ctx context.Context, lead time.Duration) ([]store.BookingRow, error) {
	rows, err := m.store.Bookings(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	var due []store.BookingRow
	for _, r := range rows {
		if r.Status != model.StatusUnconfirmed || r.Reminded {
			continue
		}
		cancelAt := r.Slot.At().Add(-m.cfg.UnavailableBefore)
		if now.Before(cancelAt.Add(-lead)) || !now.Before(cancelAt) {
			continue
		}
		due = append(due, r)
	}
	return due, nil
}

// MarkReminded flags the booking after re-locating its row by id; row
// indexes can shift between listing the due reminders and this write.
func (m *Manager) MarkReminded(ctx context.Context, bookingID int) error {
	rows, err := m.store.Bookings(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if r.ID == bookingID {
			return m.store.SetBookingReminded(ctx, r.Row)
		}
	}
	return model.ErrBookingNotFound
}

func containsSlot(ids []slot.ID, id slot.ID) bool {
	for _, s := range ids {
		if s.Equal(id) {
			return true
		}
	}
	return false
}
