// Package availability decides which slots are free to book and which
// taken slots qualify for the catch queue. Pure functions over an explicit
// "now" so the boundary arithmetic stays testable.
package availability

import (
	"time"

	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/slot"
)

// TakenOptions narrows the taken set for waitlist use.
type TakenOptions struct {
	// ExcludeClientID hides one client's own bookings, so a client is
	// never offered to catch their own slot.
	ExcludeClientID string
	// MinAhead keeps only slots further out than now+MinAhead. Zero
	// means no extra horizon.
	MinAhead time.Duration
}

// Taken collects the slots occupied by non-terminal bookings, ascending by
// slot time. A booking occupies its slot only while unconfirmed or
// confirmed.
func Taken(bookings []model.Booking, now time.Time, opts TakenOptions) []slot.ID {
	var out []slot.ID
	for _, b := range bookings {
		if !b.Status.Active() {
			continue
		}
		at := b.Slot.At()
		if !at.After(now) {
			continue
		}
		if opts.MinAhead > 0 && !at.After(now.Add(opts.MinAhead)) {
			continue
		}
		if opts.ExcludeClientID != "" && b.ClientID == opts.ExcludeClientID {
			continue
		}
		out = append(out, b.Slot)
	}
	slot.SortAscending(out)
	return out
}

// Free filters the catalog down to slots that are displayable as bookable:
// in the future, past the display horizon, and not in the taken set.
// Output is ascending by slot time.
func Free(catalog []slot.ID, taken []slot.ID, now time.Time, displayMin time.Duration) []slot.ID {
	occupied := make(map[string]struct{}, len(taken))
	for _, id := range taken {
		occupied[id.String()] = struct{}{}
	}
	var out []slot.ID
	for _, id := range catalog {
		at := id.At()
		if !at.After(now) {
			continue
		}
		if !at.After(now.Add(displayMin)) {
			continue
		}
		if _, ok := occupied[id.String()]; ok {
			continue
		}
		out = append(out, id)
	}
	slot.SortAscending(out)
	return out
}
