package availability

import (
	"testing"
	"time"

	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/slot"
)

func mustSlot(t *testing.T, v string) slot.ID {
	t.Helper()
	id, err := slot.Parse(v, time.UTC)
	if err != nil {
		t.Fatalf("parse %q: %v", v, err)
	}
	return id
}

func mustNow(t *testing.T, v string) time.Time {
	t.Helper()
	return mustSlot(t, v).At()
}

func TestTakenOnlyActiveStatuses(t *testing.T) {
	now := mustNow(t, "30.05.2025 08:00")
	s := mustSlot(t, "01.06.2025 10:00")
	for _, tc := range []struct {
		status model.BookingStatus
		want   int
	}{
		{model.StatusUnconfirmed, 1},
		{model.StatusConfirmed, 1},
		{model.StatusCancelled, 0},
		{model.StatusPast, 0},
	} {
		got := Taken([]model.Booking{{ClientID: "1", Slot: s, Status: tc.status}}, now, TakenOptions{})
		if len(got) != tc.want {
			t.Fatalf("status %s: expected %d taken, got %d", tc.status, tc.want, len(got))
		}
	}
}

func TestTakenExcludesClientAndHorizon(t *testing.T) {
	now := mustNow(t, "30.05.2025 08:00")
	bookings := []model.Booking{
		{ClientID: "1", Slot: mustSlot(t, "01.06.2025 10:00"), Status: model.StatusConfirmed},  // 50h ahead
		{ClientID: "2", Slot: mustSlot(t, "02.06.2025 15:00"), Status: model.StatusUnconfirmed}, // 79h ahead
	}

	got := Taken(bookings, now, TakenOptions{ExcludeClientID: "1"})
	if len(got) != 1 || got[0].String() != "02.06.2025 15:00" {
		t.Fatalf("expected only client 2's slot, got %v", got)
	}

	// 36h horizon keeps only slots strictly beyond now+36h.
	got = Taken(bookings, now, TakenOptions{MinAhead: 36 * time.Hour})
	if len(got) != 2 {
		t.Fatalf("expected both slots beyond 36h, got %v", got)
	}
	got = Taken(bookings, now, TakenOptions{MinAhead: 60 * time.Hour})
	if len(got) != 1 || got[0].String() != "02.06.2025 15:00" {
		t.Fatalf("expected only the 79h slot beyond 60h, got %v", got)
	}
}

func TestTakenSkipsElapsedSlots(t *testing.T) {
	now := mustNow(t, "30.05.2025 08:00")
	got := Taken([]model.Booking{
		{ClientID: "1", Slot: mustSlot(t, "29.05.2025 10:00"), Status: model.StatusConfirmed},
	}, now, TakenOptions{})
	if len(got) != 0 {
		t.Fatalf("elapsed slots must not count as taken, got %v", got)
	}
}

// Boundary arithmetic with a concrete now/slot pair: the slot sits 50h out,
// so it hides behind a 52h horizon, shows behind 28h, and an exact-50h
// horizon still hides it (the comparison is strict).
func TestFreeDisplayHorizonBoundary(t *testing.T) {
	now := mustNow(t, "30.05.2025 08:00")
	catalog := []slot.ID{mustSlot(t, "01.06.2025 10:00")} // 50h ahead

	if got := Free(catalog, nil, now, 52*time.Hour); len(got) != 0 {
		t.Fatalf("50h-out slot must be hidden behind a 52h horizon, got %v", got)
	}
	if got := Free(catalog, nil, now, 28*time.Hour); len(got) != 1 {
		t.Fatalf("50h-out slot must display behind a 28h horizon, got %v", got)
	}
	// Exactly on the horizon is still hidden: strict inequality.
	if got := Free(catalog, nil, now, 50*time.Hour); len(got) != 0 {
		t.Fatalf("slot exactly on the horizon must be hidden, got %v", got)
	}
}

func TestFreeExcludesTakenAndSorts(t *testing.T) {
	now := mustNow(t, "30.05.2025 08:00")
	catalog := []slot.ID{
		mustSlot(t, "03.06.2025 09:00"),
		mustSlot(t, "01.06.2025 10:00"),
		mustSlot(t, "02.06.2025 15:00"),
	}
	taken := []slot.ID{mustSlot(t, "02.06.2025 15:00")}

	got := Free(catalog, taken, now, 28*time.Hour)
	if len(got) != 2 {
		t.Fatalf("expected 2 free slots, got %v", got)
	}
	if got[0].String() != "01.06.2025 10:00" || got[1].String() != "03.06.2025 09:00" {
		t.Fatalf("expected ascending order without the taken slot, got %v", got)
	}
}

func TestFreeNeverShowsWithinHorizon(t *testing.T) {
	now := mustNow(t, "30.05.2025 08:00")
	catalog := []slot.ID{
		mustSlot(t, "29.05.2025 10:00"), // past
		mustSlot(t, "30.05.2025 20:00"), // 12h ahead
		mustSlot(t, "05.06.2025 12:00"), // far out
	}
	got := Free(catalog, nil, now, 28*time.Hour)
	if len(got) != 1 || got[0].String() != "05.06.2025 12:00" {
		t.Fatalf("expected only the far slot, got %v", got)
	}
}
