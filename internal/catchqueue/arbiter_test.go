package catchqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/ledassalon/slotbot/internal/booking"
	"github.com/ledassalon/slotbot/internal/events"
	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/notify"
	"github.com/ledassalon/slotbot/internal/slot"
	"github.com/ledassalon/slotbot/internal/store"
	"github.com/ledassalon/slotbot/internal/store/memory"
)

type sent struct {
	chatID  int64
	text    string
	buttons []notify.Button
}

// recorder captures outgoing messages and can simulate unreachable chats.
type recorder struct {
	sends []sent
	fail  map[int64]bool
}

func (r *recorder) Send(_ context.Context, chatID int64, text string) error {
	if r.fail[chatID] {
		return model.ErrDeliveryFailed
	}
	r.sends = append(r.sends, sent{chatID: chatID, text: text})
	return nil
}

func (r *recorder) SendWithButtons(_ context.Context, chatID int64, text string, buttons []notify.Button) error {
	if r.fail[chatID] {
		return model.ErrDeliveryFailed
	}
	r.sends = append(r.sends, sent{chatID: chatID, text: text, buttons: buttons})
	return nil
}

func (r *recorder) lastTo(chatID int64) (sent, bool) {
	for i := len(r.sends) - 1; i >= 0; i-- {
		if r.sends[i].chatID == chatID {
			return r.sends[i], true
		}
	}
	return sent{}, false
}

type nopAdmin struct{}

func (nopAdmin) Notify(context.Context, string) {}

type env struct {
	st  *store.Store
	mgr *booking.Manager
	arb *Arbiter
	msg *recorder
	now time.Time
}

func newTestEnv(t *testing.T, now string, catalog ...string) *env {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.New(memory.New(), time.UTC, logger)
	ctx := context.Background()
	for _, c := range catalog {
		parts := strings.SplitN(c, " ", 2)
		if err := st.AppendCatalogRow(ctx, parts[0], parts[1]); err != nil {
			t.Fatalf("seed catalog %q: %v", c, err)
		}
	}
	e := &env{st: st, msg: &recorder{fail: make(map[int64]bool)}, now: mustSlot(t, now).At()}
	nowFn := func() time.Time { return e.now }
	e.mgr = booking.NewManager(st, nopAdmin{}, events.NewNoop(), logger, nowFn, booking.Config{
		UnavailableBefore: 24 * time.Hour,
		DisplayMin:        28 * time.Hour,
		CatchMin:          36 * time.Hour,
	})
	e.arb = NewArbiter(st, e.mgr, e.msg, logger, nowFn, 30*time.Minute)
	return e
}

func mustSlot(t *testing.T, v string) slot.ID {
	t.Helper()
	id, err := slot.Parse(v, time.UTC)
	if err != nil {
		t.Fatalf("parse %q: %v", v, err)
	}
	return id
}

var (
	anna = model.Client{ID: "1", Name: "Anna", ChatID: 100}
	bela = model.Client{ID: "2", Name: "Bela", ChatID: 200}
	cara = model.Client{ID: "3", Name: "Cara", ChatID: 300}
	cut  = model.Service{ID: "1", Name: "Haircut", Price: 2000, Duration: 60}
)

func enroll(t *testing.T, e *env, c model.Client, id slot.ID) {
	t.Helper()
	err := e.arb.Enroll(context.Background(), model.CatchEntry{
		ClientID: c.ID, Slot: id, ServiceID: cut.ID, ChatID: c.ChatID,
	})
	if err != nil {
		t.Fatalf("enroll %s: %v", c.Name, err)
	}
}

func TestEnrollRefusesImminentSlot(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	err := e.arb.Enroll(context.Background(), model.CatchEntry{
		ClientID: bela.ID, Slot: mustSlot(t, "11.03.2025 08:00"), ChatID: bela.ChatID,
	})
	if !errors.Is(err, model.ErrSlotTooSoon) {
		t.Fatalf("expected ErrSlotTooSoon for a slot 20h out, got %v", err)
	}
}

func TestNotifyFreedPromptsOneCandidateAtATime(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	ctx := context.Background()
	target := mustSlot(t, "12.03.2025 10:00")

	enroll(t, e, bela, target)
	enroll(t, e, cara, target)

	if err := e.arb.NotifyFreed(ctx, target); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(e.msg.sends) != 1 || e.msg.sends[0].chatID != bela.ChatID {
		t.Fatalf("expected one prompt to the first enrollee, got %+v", e.msg.sends)
	}
	if len(e.msg.sends[0].buttons) != 2 {
		t.Fatalf("expected claim/decline buttons, got %+v", e.msg.sends[0].buttons)
	}

	// While the hold is live, repeat notifications stay quiet.
	if err := e.arb.NotifyFreed(ctx, target); err != nil {
		t.Fatalf("second notify: %v", err)
	}
	if len(e.msg.sends) != 1 {
		t.Fatalf("second candidate prompted while a hold was live: %+v", e.msg.sends)
	}
}

func TestNotifyFreedSkipsUnreachableClient(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	ctx := context.Background()
	target := mustSlot(t, "12.03.2025 10:00")

	enroll(t, e, bela, target)
	enroll(t, e, cara, target)
	e.msg.fail[bela.ChatID] = true

	if err := e.arb.NotifyFreed(ctx, target); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(e.msg.sends) != 1 || e.msg.sends[0].chatID != cara.ChatID {
		t.Fatalf("expected the prompt to fall through to the next enrollee, got %+v", e.msg.sends)
	}

	rows, err := e.st.CatchEntries(ctx)
	if err != nil {
		t.Fatalf("catch entries: %v", err)
	}
	if len(rows) != 1 || rows[0].ClientID != cara.ID {
		t.Fatalf("unreachable enrollee not purged: %+v", rows)
	}
}

func TestDeclinePassesToNext(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	ctx := context.Background()
	target := mustSlot(t, "12.03.2025 10:00")

	enroll(t, e, bela, target)
	enroll(t, e, cara, target)

	if err := e.arb.NotifyFreed(ctx, target); err != nil {
		t.Fatalf("notify: %v", err)
	}
	hold, ok := e.arb.holdFor(bela.ID)
	if !ok {
		t.Fatalf("no hold for first enrollee")
	}
	if err := e.arb.Decline(ctx, bela.ID, target, hold.Token); err != nil {
		t.Fatalf("decline: %v", err)
	}

	last, ok := e.msg.lastTo(cara.ChatID)
	if !ok || len(last.buttons) != 2 {
		t.Fatalf("next enrollee not prompted after decline: %+v", e.msg.sends)
	}
	if _, ok := e.arb.holdFor(bela.ID); ok {
		t.Fatalf("decliner still holds the slot")
	}
}

func TestClaimAfterExpiry(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	ctx := context.Background()
	target := mustSlot(t, "12.03.2025 10:00")

	enroll(t, e, bela, target)
	if err := e.arb.NotifyFreed(ctx, target); err != nil {
		t.Fatalf("notify: %v", err)
	}
	hold, ok := e.arb.holdFor(bela.ID)
	if !ok {
		t.Fatalf("no hold issued")
	}

	e.now = e.now.Add(31 * time.Minute)
	_, err := e.arb.Claim(ctx, bela, target.String(), hold.Token)
	if !errors.Is(err, model.ErrHoldExpired) {
		t.Fatalf("expected ErrHoldExpired, got %v", err)
	}
}

func TestClaimWithoutHold(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	_, err := e.arb.Claim(context.Background(), bela, "12.03.2025 10:00", "")
	if !errors.Is(err, model.ErrNoHold) {
		t.Fatalf("expected ErrNoHold, got %v", err)
	}
}

func TestClaimWrongTokenRejected(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	ctx := context.Background()
	target := mustSlot(t, "12.03.2025 10:00")

	enroll(t, e, bela, target)
	if err := e.arb.NotifyFreed(ctx, target); err != nil {
		t.Fatalf("notify: %v", err)
	}

	if _, err := e.arb.Claim(ctx, bela, target.String(), "stale-token"); !errors.Is(err, model.ErrNoHold) {
		t.Fatalf("expected ErrNoHold for a mismatched token, got %v", err)
	}
	// The hold survives a bad token.
	if _, ok := e.arb.holdFor(bela.ID); !ok {
		t.Fatalf("hold dropped on a rejected claim")
	}
}

func TestExpireHoldsHandsSlotToNext(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	ctx := context.Background()
	target := mustSlot(t, "12.03.2025 10:00")

	enroll(t, e, bela, target)
	enroll(t, e, cara, target)
	if err := e.arb.NotifyFreed(ctx, target); err != nil {
		t.Fatalf("notify: %v", err)
	}

	e.now = e.now.Add(31 * time.Minute)
	e.arb.ExpireHolds(ctx)

	if _, ok := e.arb.holdFor(bela.ID); ok {
		t.Fatalf("expired hold not dropped")
	}
	lapse, ok := e.msg.lastTo(bela.ChatID)
	if !ok || !strings.Contains(lapse.text, "lapsed") {
		t.Fatalf("lapse notice missing: %+v", e.msg.sends)
	}
	next, ok := e.msg.lastTo(cara.ChatID)
	if !ok || len(next.buttons) != 2 {
		t.Fatalf("next enrollee not prompted after expiry: %+v", e.msg.sends)
	}

	rows, err := e.st.CatchEntries(ctx)
	if err != nil {
		t.Fatalf("catch entries: %v", err)
	}
	if len(rows) != 1 || rows[0].ClientID != cara.ID {
		t.Fatalf("abandoned row not purged: %+v", rows)
	}
}

// Full round trip: a booked slot frees up, the enrollee is prompted,
// claims it, and their previous booking's slot goes through its own
// notification pass.
func TestCancelNotifyClaimRoundTrip(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00", "12.03.2025 10:00", "13.03.2025 15:00")
	ctx := context.Background()
	wanted := mustSlot(t, "12.03.2025 10:00")
	other := mustSlot(t, "13.03.2025 15:00")

	if _, err := e.mgr.Book(ctx, anna, cut, wanted); err != nil {
		t.Fatalf("anna books: %v", err)
	}
	if _, err := e.mgr.Book(ctx, bela, cut, other); err != nil {
		t.Fatalf("bela books: %v", err)
	}
	enroll(t, e, bela, wanted)
	enroll(t, e, cara, other)

	freed, _, err := e.mgr.Cancel(ctx, anna.ID)
	if err != nil {
		t.Fatalf("anna cancels: %v", err)
	}
	if err := e.arb.NotifyFreed(ctx, freed); err != nil {
		t.Fatalf("notify: %v", err)
	}

	prompt, ok := e.msg.lastTo(bela.ChatID)
	if !ok || !strings.Contains(prompt.text, "30 minutes") {
		t.Fatalf("expected a 30 minute claim prompt, got %+v", prompt)
	}
	hold, ok := e.arb.holdFor(bela.ID)
	if !ok {
		t.Fatalf("no hold issued")
	}

	if _, err := e.arb.Claim(ctx, bela, wanted.String(), hold.Token); err != nil {
		t.Fatalf("claim: %v", err)
	}

	active, err := e.mgr.Active(ctx, bela.ID)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active == nil || !active.Slot.Equal(wanted) {
		t.Fatalf("claimant's booking not moved to the caught slot: %+v", active)
	}

	// Bela's vacated slot went to cara.
	next, ok := e.msg.lastTo(cara.ChatID)
	if !ok || len(next.buttons) != 2 {
		t.Fatalf("vacated slot not offered to its enrollee: %+v", e.msg.sends)
	}

	rows, err := e.st.CatchEntries(ctx)
	if err != nil {
		t.Fatalf("catch entries: %v", err)
	}
	if len(rows) != 1 || rows[0].ClientID != cara.ID {
		t.Fatalf("claimed queue row not removed: %+v", rows)
	}
}

// Deleting a queue row shifts every later row index, so a purge pass over
// multiple stale entries must re-read between deletes.
func TestNotifyFreedPurgesEveryStaleRow(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	ctx := context.Background()
	target := mustSlot(t, "11.03.2025 08:00") // 20h out, inside the window

	for _, c := range []model.Client{bela, cara} {
		if err := e.st.AppendCatch(ctx, model.CatchEntry{
			ClientID: c.ID, Slot: target, ServiceID: cut.ID, CreatedAt: e.now, ChatID: c.ChatID,
		}); err != nil {
			t.Fatalf("seed catch: %v", err)
		}
	}

	if err := e.arb.NotifyFreed(ctx, target); err != nil {
		t.Fatalf("notify: %v", err)
	}
	if len(e.msg.sends) != 0 {
		t.Fatalf("stale enrollees were prompted: %+v", e.msg.sends)
	}
	rows, err := e.st.CatchEntries(ctx)
	if err != nil {
		t.Fatalf("catch entries: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("stale rows survived the purge: %+v", rows)
	}
}

// A decline tap arriving after the hold was purged must not touch the row
// that moved into the purged row's index.
func TestLateDeclineLeavesQueueIntact(t *testing.T) {
	e := newTestEnv(t, "10.03.2025 12:00")
	ctx := context.Background()
	slotA := mustSlot(t, "12.03.2025 10:00")
	slotB := mustSlot(t, "13.03.2025 15:00")

	enroll(t, e, bela, slotA)
	enroll(t, e, cara, slotB)

	if err := e.arb.NotifyFreed(ctx, slotA); err != nil {
		t.Fatalf("notify: %v", err)
	}
	hold, ok := e.arb.holdFor(bela.ID)
	if !ok {
		t.Fatalf("no hold issued")
	}

	e.now = e.now.Add(31 * time.Minute)
	e.arb.ExpireHolds(ctx)

	err := e.arb.Decline(ctx, bela.ID, slotA, hold.Token)
	if !errors.Is(err, model.ErrNoHold) {
		t.Fatalf("expected ErrNoHold for a late decline, got %v", err)
	}

	rows, err := e.st.CatchEntries(ctx)
	if err != nil {
		t.Fatalf("catch entries: %v", err)
	}
	if len(rows) != 1 || rows[0].ClientID != cara.ID || !rows[0].Slot.Equal(slotB) {
		t.Fatalf("late decline disturbed the queue: %+v", rows)
	}
}

func TestClaimWindowCappedByDeadline(t *testing.T) {
	// 24h20m before the slot only 20 minutes remain until the
	// unavailability deadline, so the hold shrinks.
	e := newTestEnv(t, "10.03.2025 12:00")
	ctx := context.Background()
	target := mustSlot(t, "11.03.2025 12:20")

	enroll(t, e, bela, target)
	if err := e.arb.NotifyFreed(ctx, target); err != nil {
		t.Fatalf("notify: %v", err)
	}
	prompt, ok := e.msg.lastTo(bela.ChatID)
	if !ok || !strings.Contains(prompt.text, "20 minutes") {
		t.Fatalf("expected a capped 20 minute window, got %+v", prompt)
	}
}
