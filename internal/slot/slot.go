package slot

import (
	"fmt"
	"sort"
	"time"
)

// Layout is the canonical serialized form of a slot identifier,
// e.g. "01.06.2025 10:00". Minute resolution, no seconds.
const Layout = "02.01.2006 15:04"

// ID identifies one bookable date+time. Two IDs are the same slot iff
// their String() forms match exactly.
type ID struct {
	at  time.Time
	raw string
}

func Parse(value string, loc *time.Location) (ID, error) {
	t, err := time.ParseInLocation(Layout, value, loc)
	if err != nil {
		return ID{}, fmt.Errorf("parse slot %q: %w", value, err)
	}
	return ID{at: t, raw: t.Format(Layout)}, nil
}

// FromTime builds the ID for t truncated to minute resolution.
func FromTime(t time.Time) ID {
	t = t.Truncate(time.Minute)
	return ID{at: t, raw: t.Format(Layout)}
}

func (id ID) At() time.Time  { return id.at }
func (id ID) String() string { return id.raw }
func (id ID) IsZero() bool   { return id.raw == "" }

func (id ID) Equal(other ID) bool { return id.raw == other.raw }

// SortAscending orders ids by calendar time, stable on ties.
func SortAscending(ids []ID) {
	sort.SliceStable(ids, func(i, j int) bool { return ids[i].at.Before(ids[j].at) })
}

// Clock yields "now" pinned to one location. The zero value is not usable;
// construct with NewClock.
type Clock struct {
	loc *time.Location
}

func NewClock(timezone string) (Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return Clock{}, fmt.Errorf("load timezone %q: %w", timezone, err)
	}
	return Clock{loc: loc}, nil
}

func (c Clock) Now() time.Time            { return time.Now().In(c.loc) }
func (c Clock) Location() *time.Location  { return c.loc }
func (c Clock) Parse(v string) (ID, error) { return Parse(v, c.loc) }
