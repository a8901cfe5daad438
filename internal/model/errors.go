package model

import "errors"

var (
	// ErrStoreUnavailable marks a store call that failed after all retries.
	ErrStoreUnavailable = errors.New("store unavailable")

	ErrSlotTaken         = errors.New("slot is no longer free")
	ErrAlreadyBooked     = errors.New("client already has an active booking")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrClientNotFound    = errors.New("client not found")
	ErrServiceNotFound   = errors.New("service not found")
	ErrInvalidSlotFormat = errors.New("malformed slot identifier")

	ErrNoHold      = errors.New("no open hold for this client and slot")
	ErrHoldExpired = errors.New("hold has expired")
	ErrSlotTooSoon = errors.New("slot is past the unavailability deadline")

	// ErrDeliveryFailed means the messaging transport could not reach the
	// recipient; callers clean up rather than retry.
	ErrDeliveryFailed = errors.New("message delivery failed")
)
