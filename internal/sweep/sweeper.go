// Package sweep drives every time-based state transition on a fixed
// interval. It is the sole owner of those transitions; user actions
// (book, cancel, claim) are the only other writers.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/ledassalon/slotbot/internal/booking"
	"github.com/ledassalon/slotbot/internal/catchqueue"
	"github.com/ledassalon/slotbot/internal/notify"
	"github.com/ledassalon/slotbot/internal/store"
)

type Sweeper struct {
	mgr          *booking.Manager
	arbiter      *catchqueue.Arbiter
	store        *store.Store
	msg          notify.Messenger
	admin        *notify.Admin
	logger       *slog.Logger
	interval     time.Duration
	reminderLead time.Duration
}

func New(mgr *booking.Manager, arbiter *catchqueue.Arbiter, st *store.Store, msg notify.Messenger, admin *notify.Admin, logger *slog.Logger, interval, reminderLead time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		mgr:          mgr,
		arbiter:      arbiter,
		store:        st,
		msg:          msg,
		admin:        admin,
		logger:       logger,
		interval:     interval,
		reminderLead: reminderLead,
	}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("sweep started", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweep stopped")
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick applies one full pass: expire holds, send due reminders,
// auto-cancel stale unconfirmed bookings (requeuing their slots), and
// mark elapsed bookings past. Each step is best-effort; a failure is
// logged and the pass continues.
func (s *Sweeper) Tick(ctx context.Context) {
	ctx, span := otel.Tracer("slotbot").Start(ctx, "sweep.tick")
	defer span.End()

	s.arbiter.ExpireHolds(ctx)

	if err := s.sendReminders(ctx); err != nil {
		s.logger.Error("reminder pass failed", "err", err)
	}

	expired, err := s.mgr.ExpireUnconfirmed(ctx)
	if err != nil {
		s.logger.Error("auto-cancel pass failed", "err", err)
	}
	for _, row := range expired {
		if err := s.arbiter.NotifyFreed(ctx, row.Slot); err != nil {
			s.logger.Warn("waitlist notify failed", "slot", row.Slot.String(), "err", err)
		}
	}

	if err := s.mgr.MarkPast(ctx); err != nil {
		s.logger.Error("mark-past pass failed", "err", err)
	}
}

func (s *Sweeper) sendReminders(ctx context.Context) error {
	due, err := s.mgr.DueReminders(ctx, s.reminderLead)
	if err != nil {
		return err
	}
	for _, row := range due {
		client, err := s.store.ClientByID(ctx, row.ClientID)
		if err != nil {
			s.logger.Warn("reminder skipped, client unknown", "booking_id", row.ID, "client_id", row.ClientID)
			continue
		}
		text := fmt.Sprintf("Reminder: your booking at %s. Please confirm it.", row.Slot.String())
		err = s.msg.SendWithButtons(ctx, client.ChatID, text, []notify.Button{
			{Label: "Confirm", Data: fmt.Sprintf("confirm_booking::%d", row.ID)},
		})
		if err != nil {
			s.logger.Warn("reminder undeliverable", "booking_id", row.ID, "err", err)
			continue
		}
		if err := s.mgr.MarkReminded(ctx, row.ID); err != nil {
			s.logger.Warn("mark reminded failed", "booking_id", row.ID, "err", err)
			continue
		}
		s.admin.Notify(ctx, fmt.Sprintf("Reminder sent to client %s for booking at %s", row.ClientID, row.Slot.String()))
	}
	return nil
}
