package model

import (
	"time"

	"github.com/ledassalon/slotbot/internal/slot"
)

type BookingStatus string

const (
	StatusUnconfirmed BookingStatus = "unconfirmed"
	StatusConfirmed   BookingStatus = "confirmed"
	StatusCancelled   BookingStatus = "cancelled"
	StatusPast        BookingStatus = "past"
)

// Active reports whether a booking in this status still occupies its slot.
func (s BookingStatus) Active() bool {
	return s == StatusUnconfirmed || s == StatusConfirmed
}

type Client struct {
	ID       string
	Name     string
	LastName string
	Phone    string
	Handle   string
	ChatID   int64
}

func (c Client) FullName() string {
	if c.LastName == "" {
		return c.Name
	}
	return c.Name + " " + c.LastName
}

type Service struct {
	ID       string
	Name     string
	Price    int
	Duration int
}

type Booking struct {
	ID         int
	ClientID   string
	ClientName string
	Slot       slot.ID
	ServiceID  string
	Price      int
	Duration   int
	Status     BookingStatus
	Reminded   bool
}

// CatchEntry is one waitlist row: a client waiting for Slot to free up.
type CatchEntry struct {
	ClientID  string
	Slot      slot.ID
	ServiceID string
	Notified  bool
	CreatedAt time.Time
	ChatID    int64
}
