// Package notify is the messaging transport boundary. Delivery failure
// means "recipient unreachable"; callers react by cleaning up, not
// retrying.
package notify

import "context"

// Button is one inline action under a message.
type Button struct {
	Label string
	Data  string
}

type Messenger interface {
	Send(ctx context.Context, chatID int64, text string) error
	SendWithButtons(ctx context.Context, chatID int64, text string, buttons []Button) error
}

// Noop drops every message; used when no bot token is configured and in
// tests that don't care about delivery.
type Noop struct{}

func NewNoop() *Noop { return &Noop{} }

func (*Noop) Send(context.Context, int64, string) error { return nil }

func (*Noop) SendWithButtons(context.Context, int64, string, []Button) error { return nil }
