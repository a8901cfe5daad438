// Package catchqueue arbitrates the claim race when a taken slot frees
// up: one waiting client at a time is notified and granted a short-lived
// exclusive hold. The store offers no locking, so exclusivity lives in
// the process-local hold table, guarded by a mutex because the sweep
// goroutine and conversation handlers touch it concurrently.
package catchqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ledassalon/slotbot/internal/availability"
	"github.com/ledassalon/slotbot/internal/booking"
	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/notify"
	"github.com/ledassalon/slotbot/internal/slot"
	"github.com/ledassalon/slotbot/internal/store"
)

// Hold is a transient exclusive claim on a freed slot. Never persisted:
// a restart loses in-flight holds and the next sweep re-notifies.
type Hold struct {
	Token     string
	ClientID  string
	ChatID    int64
	Slot      slot.ID
	ServiceID string
	Row       int
	ExpiresAt time.Time
}

type Arbiter struct {
	store  *store.Store
	mgr    *booking.Manager
	msg    notify.Messenger
	logger *slog.Logger
	now    func() time.Time
	window time.Duration

	mu    sync.Mutex
	holds map[string]Hold // keyed by client id
}

func NewArbiter(st *store.Store, mgr *booking.Manager, msg notify.Messenger, logger *slog.Logger, now func() time.Time, claimWindow time.Duration) *Arbiter {
	return &Arbiter{
		store:  st,
		mgr:    mgr,
		msg:    msg,
		logger: logger,
		now:    now,
		window: claimWindow,
		holds:  make(map[string]Hold),
	}
}

// Enroll queues a client for notification when the slot frees up. Slots
// already inside the unavailability window are refused: they could never
// be claimed.
func (a *Arbiter) Enroll(ctx context.Context, e model.CatchEntry) error {
	if !e.Slot.At().After(a.now().Add(a.mgr.Config().UnavailableBefore)) {
		return model.ErrSlotTooSoon
	}
	e.Notified = false
	e.CreatedAt = a.now()
	return a.store.AppendCatch(ctx, e)
}

// NotifyFreed runs the selection loop for one freed slot: take the first
// FIFO candidate, skip stale ones, and stop once a client that is both
// satisfiable and reachable holds the slot. Deleting a row shifts every
// later row index, so the candidate list is re-read after each mutation
// rather than walked as a snapshot. An explicit loop, so pathological
// queues cannot blow the stack.
func (a *Arbiter) NotifyFreed(ctx context.Context, freed slot.ID) error {
	if a.holdExistsForSlot(freed) {
		// At most one outstanding hold per slot.
		return nil
	}

	for {
		candidates, err := a.store.CatchCandidates(ctx, freed)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}
		c := candidates[0]

		window := a.claimWindow(freed)
		if window <= 0 {
			// The slot can no longer be satisfied for anyone; this entry
			// is stale. The delete must land, or the re-read would spin
			// on the same row.
			if err := a.store.DeleteCatch(ctx, c.Row); err != nil {
				return err
			}
			continue
		}

		if err := a.store.MarkCatchNotified(ctx, c.Row); err != nil {
			return err
		}
		hold := Hold{
			Token:     uuid.NewString(),
			ClientID:  c.ClientID,
			ChatID:    c.ChatID,
			Slot:      freed,
			ServiceID: c.ServiceID,
			Row:       c.Row,
			ExpiresAt: a.now().Add(window),
		}
		a.setHold(hold)

		prompt := fmt.Sprintf("Slot %s just freed up. Move your booking there? You have %d minutes to decide.",
			freed.String(), int(window.Minutes()))
		err = a.msg.SendWithButtons(ctx, c.ChatID, prompt, []notify.Button{
			{Label: "Claim", Data: fmt.Sprintf("claim::%s::%s", freed.String(), hold.Token)},
			{Label: "Decline", Data: fmt.Sprintf("decline::%s::%s", freed.String(), hold.Token)},
		})
		if err != nil {
			// An unreachable client must not strand the slot: drop them
			// and try the next candidate. The row is already marked
			// notified, so the re-read moves on even if the delete fails.
			a.logger.Warn("catch prompt undeliverable", "client_id", c.ClientID, "err", err)
			a.dropHold(c.ClientID)
			a.deleteCatchRow(ctx, c.Row)
			continue
		}
		a.logger.Info("catch hold issued", "client_id", c.ClientID, "slot", freed.String(),
			"expires_at", hold.ExpiresAt)
		return nil
	}
}

// claimWindow is the fixed notification window capped by how much time
// remains before the slot hits the unavailability deadline.
func (a *Arbiter) claimWindow(id slot.ID) time.Duration {
	remaining := id.At().Sub(a.now()) - a.mgr.Config().UnavailableBefore
	if remaining < a.window {
		return remaining
	}
	return a.window
}

// Claim resolves a hold in the claimant's favor. The hold, the slot's
// freshness, and the deadline are all re-validated; any mismatch reports
// a specific rejection and releases the hold. On success the claimant's
// prior booking (if any) is cancelled first, and its freed slot gets its
// own notification pass.
func (a *Arbiter) Claim(ctx context.Context, client model.Client, slotText, token string) (int, error) {
	hold, ok := a.holdFor(client.ID)
	if !ok || hold.Slot.String() != slotText || hold.Token != token {
		return 0, model.ErrNoHold
	}
	if !a.now().Before(hold.ExpiresAt) {
		a.dropHold(client.ID)
		return 0, model.ErrHoldExpired
	}

	taken, err := a.mgr.TakenSlots(ctx, availability.TakenOptions{})
	if err != nil {
		return 0, err
	}
	for _, t := range taken {
		if t.Equal(hold.Slot) {
			a.dropHold(client.ID)
			return 0, model.ErrSlotTaken
		}
	}
	if !hold.Slot.At().After(a.now().Add(a.mgr.Config().UnavailableBefore)) {
		a.dropHold(client.ID)
		return 0, model.ErrSlotTooSoon
	}

	// Claiming supersedes the claimant's existing booking.
	freedPrior, _, err := a.mgr.Cancel(ctx, client.ID)
	if err != nil {
		return 0, err
	}

	svc, err := a.store.ServiceByID(ctx, hold.ServiceID)
	if err != nil {
		svc = model.Service{ID: hold.ServiceID, Duration: 60}
	}
	bookingID, err := a.mgr.BookClaimed(ctx, client, svc, hold.Slot)
	if err != nil {
		a.dropHold(client.ID)
		return 0, err
	}

	a.dropHold(client.ID)
	a.deleteCatchRow(ctx, hold.Row)

	if !freedPrior.IsZero() {
		if err := a.NotifyFreed(ctx, freedPrior); err != nil {
			a.logger.Warn("notify for vacated slot failed", "slot", freedPrior.String(), "err", err)
		}
	}
	return bookingID, nil
}

// Decline releases the hold, removes the entry, and moves on to the next
// candidate for the same slot. The row to remove comes from the live
// hold, never from the caller: a tap arriving after the hold was purged
// must not delete whatever entry occupies that index now.
func (a *Arbiter) Decline(ctx context.Context, clientID string, freed slot.ID, token string) error {
	hold, ok := a.holdFor(clientID)
	if !ok || !hold.Slot.Equal(freed) || hold.Token != token {
		return model.ErrNoHold
	}
	if !a.now().Before(hold.ExpiresAt) {
		// The sweep owns cleanup past the deadline.
		return model.ErrHoldExpired
	}
	a.dropHold(clientID)
	a.deleteCatchRow(ctx, hold.Row)
	return a.NotifyFreed(ctx, freed)
}

// ExpireHolds drops every hold past its deadline, tells the client the
// window lapsed, purges the abandoned queue row so it cannot shadow later
// candidates, and hands the slot to the next one in line.
func (a *Arbiter) ExpireHolds(ctx context.Context) {
	for _, h := range a.expiredHolds() {
		a.dropHold(h.ClientID)
		a.deleteCatchRow(ctx, h.Row)
		if err := a.msg.Send(ctx, h.ChatID, fmt.Sprintf("The claim window for %s has lapsed.", h.Slot.String())); err != nil {
			a.logger.Warn("hold expiry notice undeliverable", "client_id", h.ClientID, "err", err)
		}
		a.logger.Info("hold expired", "client_id", h.ClientID, "slot", h.Slot.String())
		if err := a.NotifyFreed(ctx, h.Slot); err != nil {
			a.logger.Warn("next candidate pass failed", "slot", h.Slot.String(), "err", err)
		}
	}
}

func (a *Arbiter) deleteCatchRow(ctx context.Context, row int) {
	if err := a.store.DeleteCatch(ctx, row); err != nil {
		a.logger.Warn("delete catch row failed", "row", row, "err", err)
	}
}

func (a *Arbiter) setHold(h Hold) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.holds[h.ClientID] = h
}

func (a *Arbiter) holdFor(clientID string) (Hold, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	h, ok := a.holds[clientID]
	return h, ok
}

func (a *Arbiter) dropHold(clientID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.holds, clientID)
}

func (a *Arbiter) holdExistsForSlot(id slot.ID) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, h := range a.holds {
		if h.Slot.Equal(id) && a.now().Before(h.ExpiresAt) {
			return true
		}
	}
	return false
}

func (a *Arbiter) expiredHolds() []Hold {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []Hold
	for _, h := range a.holds {
		if !a.now().Before(h.ExpiresAt) {
			out = append(out, h)
		}
	}
	return out
}
