package notify

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/ledassalon/slotbot/internal/store"
)

// Admin sends to the chat recorded under the ADMIN_CHAT_ID setting.
// Everything is fire-and-forget: a missing setting or a failed send is
// logged and swallowed, never propagated into the calling operation.
type Admin struct {
	store  *store.Store
	msg    Messenger
	logger *slog.Logger
}

func NewAdmin(st *store.Store, msg Messenger, logger *slog.Logger) *Admin {
	return &Admin{store: st, msg: msg, logger: logger}
}

func (a *Admin) Notify(ctx context.Context, text string) {
	raw, ok, err := a.store.Setting(ctx, store.SettingAdminChat)
	if err != nil {
		a.logger.Warn("admin chat lookup failed", "err", err)
		return
	}
	if !ok {
		return
	}
	chatID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		a.logger.Warn("admin chat setting is not a chat id", "value", raw)
		return
	}
	if err := a.msg.Send(ctx, chatID, text); err != nil {
		a.logger.Warn("admin notification failed", "err", err)
	}
}
