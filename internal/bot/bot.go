// Package bot is the conversational surface: menu rendering, the
// registration state machine, and the callback glue around the booking
// and catch-queue engines.
package bot

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ledassalon/slotbot/internal/booking"
	"github.com/ledassalon/slotbot/internal/catchqueue"
	"github.com/ledassalon/slotbot/internal/notify"
	"github.com/ledassalon/slotbot/internal/slot"
	"github.com/ledassalon/slotbot/internal/store"
)

const (
	labelBook      = "Book"
	labelMyBooking = "My booking"
	labelHelp      = "Help"
	labelAbout     = "About"
	labelBack      = "Back"
	labelCatch     = "Catch a slot"
	labelCancelMy  = "Cancel my booking"
	labelAddCatch  = "Yes, add me"
	labelPickOther = "Pick another time"
)

type Bot struct {
	api      *tgbotapi.BotAPI
	msg      notify.Messenger
	store    *store.Store
	mgr      *booking.Manager
	arbiter  *catchqueue.Arbiter
	admin    *notify.Admin
	logger   *slog.Logger
	clock    slot.Clock
	passHash string

	sessions *sessions
	clients  *registry
}

func New(api *tgbotapi.BotAPI, msg notify.Messenger, st *store.Store, mgr *booking.Manager, arbiter *catchqueue.Arbiter, admin *notify.Admin, logger *slog.Logger, clock slot.Clock, adminPassHash string) *Bot {
	return &Bot{
		api:      api,
		msg:      msg,
		store:    st,
		mgr:      mgr,
		arbiter:  arbiter,
		admin:    admin,
		logger:   logger,
		clock:    clock,
		passHash: adminPassHash,
		sessions: newSessions(),
		clients:  newRegistry(),
	}
}

// Run long-polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)
	b.logger.Info("bot polling started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot polling stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate is the error boundary: unexpected failures show the user a
// generic apology and forward the detail to the admin channel.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("handler panic", "panic", r)
			b.admin.Notify(ctx, fmt.Sprintf("handler panic: %v", r))
		}
	}()

	var err error
	var chatID int64
	switch {
	case update.CallbackQuery != nil:
		chatID = update.CallbackQuery.Message.Chat.ID
		err = b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		chatID = update.Message.Chat.ID
		err = b.handleMessage(ctx, update.Message)
	default:
		return
	}
	if err != nil {
		b.logger.Error("handler failed", "err", err)
		b.admin.Notify(ctx, fmt.Sprintf("handler error: %v", err))
		if chatID != 0 {
			_ = b.msg.Send(ctx, chatID, "Something went wrong. The administrator has been notified.")
		}
	}
}

func (b *Bot) mainMenu(ctx context.Context, chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelBook),
			tgbotapi.NewKeyboardButton(labelMyBooking),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(labelHelp),
			tgbotapi.NewKeyboardButton(labelAbout),
		),
	)
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.Send(msg)
	return err
}

// optionsKeyboard renders a one-column reply keyboard with an optional
// trailing Back button.
func (b *Bot) optionsKeyboard(ctx context.Context, chatID int64, text string, options []string, back bool) error {
	rows := make([][]tgbotapi.KeyboardButton, 0, len(options)+1)
	for _, opt := range options {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(opt)))
	}
	if back {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(labelBack)))
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewReplyKeyboard(rows...)
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.Send(msg)
	return err
}
