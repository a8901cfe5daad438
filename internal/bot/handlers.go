package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/ledassalon/slotbot/internal/availability"
	"github.com/ledassalon/slotbot/internal/model"
	"github.com/ledassalon/slotbot/internal/notify"
	"github.com/ledassalon/slotbot/internal/store"
)

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.IsCommand() {
		switch msg.Command() {
		case "start":
			return b.handleStart(ctx, msg)
		case "setadmin":
			return b.handleSetAdmin(ctx, msg)
		}
		return b.msg.Send(ctx, msg.Chat.ID, "Unknown command. Try /start.")
	}
	return b.handleText(ctx, msg)
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	uid := msg.From.ID
	chatID := msg.Chat.ID
	handle := ""
	if msg.From.UserName != "" {
		handle = "@" + msg.From.UserName
	}

	found, err := b.store.FindClient(ctx, handle, chatID)
	if err != nil {
		if !errors.Is(err, model.ErrClientNotFound) {
			return err
		}
		b.sessions.reset(uid)
		b.sessions.push(uid, stateRegName)
		return b.msg.Send(ctx, chatID, "Hi! What's your name?")
	}

	if found.ChatID != chatID {
		if err := b.store.RefreshClientChat(ctx, found.Row, chatID); err != nil {
			b.logger.Warn("chat refresh failed", "client_id", found.ID, "err", err)
		}
		found.ChatID = chatID
	}
	b.clients.put(uid, found.Client)
	b.sessions.reset(uid)
	return b.mainMenu(ctx, chatID, "Welcome back! Pick an action:")
}

func (b *Bot) handleSetAdmin(ctx context.Context, msg *tgbotapi.Message) error {
	password := strings.TrimSpace(msg.CommandArguments())
	if password == "" {
		return b.msg.Send(ctx, msg.Chat.ID, "Usage: /setadmin <password>")
	}
	if b.passHash == "" {
		return b.msg.Send(ctx, msg.Chat.ID, "Admin binding is disabled.")
	}
	if bcrypt.CompareHashAndPassword([]byte(b.passHash), []byte(password)) != nil {
		return b.msg.Send(ctx, msg.Chat.ID, "Wrong password.")
	}
	if err := b.store.SetSetting(ctx, store.SettingAdminChat, strconv.FormatInt(msg.Chat.ID, 10)); err != nil {
		return err
	}
	return b.msg.Send(ctx, msg.Chat.ID, "This chat is now the admin channel.")
}

func (b *Bot) handleText(ctx context.Context, msg *tgbotapi.Message) error {
	text := strings.TrimSpace(msg.Text)
	uid := msg.From.ID
	chatID := msg.Chat.ID
	sess := b.sessions.get(uid)

	if text == labelBack {
		return b.handleBack(ctx, uid, chatID, sess)
	}

	switch sess.state {
	case stateRegName:
		sess.regName = text
		b.sessions.push(uid, stateRegLast)
		return b.msg.Send(ctx, chatID, "Last name?")
	case stateRegLast:
		sess.regLast = text
		b.sessions.push(uid, stateRegPhone)
		return b.msg.Send(ctx, chatID, "Phone number?")
	case stateRegPhone:
		norm := NormalizePhone(text)
		if norm == "" {
			return b.msg.Send(ctx, chatID, "Please use a Russian number format: +7... or 8...")
		}
		sess.phone = norm
		return b.msg.SendWithButtons(ctx, chatID,
			fmt.Sprintf("You entered %s. Is that correct?", norm),
			[]notify.Button{
				{Label: "Confirm", Data: "phone_confirm::yes"},
				{Label: "Re-enter", Data: "phone_confirm::no"},
			})
	case stateChooseService:
		return b.chooseService(ctx, uid, chatID, sess, text)
	case stateChooseTime:
		return b.chooseTime(ctx, uid, chatID, sess, text)
	case stateChooseCatch:
		return b.chooseCatch(ctx, uid, chatID, sess, text)
	case stateOfferCatch:
		return b.offerCatch(ctx, uid, chatID, sess, text)
	case stateMyBooking:
		if text == labelCancelMy {
			return b.cancelMyBooking(ctx, uid, chatID)
		}
	case stateNone:
		return b.handleMenu(ctx, uid, chatID, text)
	}
	return b.mainMenu(ctx, chatID, "I didn't get that. Pick an action:")
}

func (b *Bot) handleBack(ctx context.Context, uid, chatID int64, sess *session) error {
	switch sess.state {
	case stateRegName, stateRegLast, stateRegPhone:
		b.sessions.reset(uid)
		return b.mainMenu(ctx, chatID, "Cancelled. Main menu:")
	}
	prev := b.sessions.pop(uid)
	return b.renderState(ctx, uid, chatID, prev)
}

func (b *Bot) renderState(ctx context.Context, uid, chatID int64, st state) error {
	switch st {
	case stateChooseService:
		return b.promptServices(ctx, chatID)
	case stateChooseTime:
		return b.promptFreeSlots(ctx, chatID)
	default:
		return b.mainMenu(ctx, chatID, "Main menu:")
	}
}

func (b *Bot) handleMenu(ctx context.Context, uid, chatID int64, text string) error {
	switch text {
	case labelBook:
		client, ok := b.clients.get(uid)
		if !ok {
			return b.msg.Send(ctx, chatID, "Please send /start first.")
		}
		active, err := b.mgr.Active(ctx, client.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return b.mainMenu(ctx, chatID,
				fmt.Sprintf("You already have a booking at %s. Cancel it first.", active.Slot.String()))
		}
		b.sessions.push(uid, stateChooseService)
		return b.promptServices(ctx, chatID)
	case labelMyBooking:
		return b.showMyBooking(ctx, uid, chatID)
	case labelHelp:
		return b.mainMenu(ctx, chatID, "Questions or problems? Message the studio directly.")
	case labelAbout:
		return b.mainMenu(ctx, chatID, "Salon appointment bot: book, confirm and catch freed slots.")
	}
	return b.mainMenu(ctx, chatID, "Pick an action from the menu:")
}

func (b *Bot) promptServices(ctx context.Context, chatID int64) error {
	services, err := b.store.Services(ctx)
	if err != nil {
		return err
	}
	if len(services) == 0 {
		return b.msg.Send(ctx, chatID, "No services are configured yet.")
	}
	names := make([]string, len(services))
	for i, s := range services {
		names[i] = s.Name
	}
	return b.optionsKeyboard(ctx, chatID, "Choose a service:", names, true)
}

func (b *Bot) promptFreeSlots(ctx context.Context, chatID int64) error {
	free, err := b.mgr.FreeSlots(ctx)
	if err != nil {
		return err
	}
	options := []string{labelCatch}
	for _, id := range free {
		options = append(options, id.String())
	}
	return b.optionsKeyboard(ctx, chatID, "Choose a time:", options, true)
}

func (b *Bot) chooseService(ctx context.Context, uid, chatID int64, sess *session, text string) error {
	if _, err := b.store.ServiceByName(ctx, text); err != nil {
		if errors.Is(err, model.ErrServiceNotFound) {
			return b.promptServices(ctx, chatID)
		}
		return err
	}
	sess.service = text
	b.sessions.push(uid, stateChooseTime)
	return b.promptFreeSlots(ctx, chatID)
}

func (b *Bot) chooseTime(ctx context.Context, uid, chatID int64, sess *session, text string) error {
	if text == labelCatch {
		client, ok := b.clients.get(uid)
		if !ok {
			return b.msg.Send(ctx, chatID, "Please send /start first.")
		}
		catchable, err := b.mgr.CatchableSlots(ctx, client.ID)
		if err != nil {
			return err
		}
		if len(catchable) == 0 {
			b.sessions.reset(uid)
			return b.mainMenu(ctx, chatID, "No taken slots to catch right now.")
		}
		options := make([]string, len(catchable))
		for i, id := range catchable {
			options[i] = id.String()
		}
		b.sessions.push(uid, stateChooseCatch)
		return b.optionsKeyboard(ctx, chatID, "Which slot do you want to catch?", options, true)
	}

	taken, err := b.mgr.TakenSlots(ctx, availability.TakenOptions{})
	if err != nil {
		return err
	}
	for _, t := range taken {
		if t.String() == text {
			sess.offered = text
			b.sessions.push(uid, stateOfferCatch)
			return b.optionsKeyboard(ctx, chatID,
				"That slot is taken. Want to be notified if it frees up?",
				[]string{labelAddCatch, labelPickOther}, false)
		}
	}

	id, err := b.clock.Parse(text)
	if err != nil {
		return b.promptFreeSlots(ctx, chatID)
	}
	client, ok := b.clients.get(uid)
	if !ok {
		return b.msg.Send(ctx, chatID, "Please send /start first.")
	}
	svc, err := b.store.ServiceByName(ctx, sess.service)
	if err != nil {
		return err
	}

	_, err = b.mgr.Book(ctx, client, svc, id)
	switch {
	case errors.Is(err, model.ErrSlotTaken):
		return b.msg.Send(ctx, chatID, "That time just got taken. Please choose another.")
	case errors.Is(err, model.ErrAlreadyBooked):
		b.sessions.reset(uid)
		return b.mainMenu(ctx, chatID, "You already have an active booking.")
	case err != nil:
		return err
	}
	b.sessions.reset(uid)
	return b.mainMenu(ctx, chatID, fmt.Sprintf("Booked for %s ✅", text))
}

func (b *Bot) chooseCatch(ctx context.Context, uid, chatID int64, sess *session, text string) error {
	client, ok := b.clients.get(uid)
	if !ok {
		return b.msg.Send(ctx, chatID, "Please send /start first.")
	}
	catchable, err := b.mgr.CatchableSlots(ctx, client.ID)
	if err != nil {
		return err
	}
	for _, id := range catchable {
		if id.String() == text {
			sess.offered = text
			b.sessions.push(uid, stateOfferCatch)
			return b.optionsKeyboard(ctx, chatID, "Add you to the waitlist for this slot?",
				[]string{labelAddCatch, labelPickOther}, false)
		}
	}
	return b.msg.Send(ctx, chatID, "Please pick a slot from the list.")
}

func (b *Bot) offerCatch(ctx context.Context, uid, chatID int64, sess *session, text string) error {
	switch text {
	case labelAddCatch:
		client, ok := b.clients.get(uid)
		if !ok {
			return b.msg.Send(ctx, chatID, "Please send /start first.")
		}
		id, err := b.clock.Parse(sess.offered)
		if err != nil {
			b.sessions.reset(uid)
			return b.mainMenu(ctx, chatID, "Couldn't add you, the slot is gone.")
		}
		svcID := ""
		if svc, err := b.store.ServiceByName(ctx, sess.service); err == nil {
			svcID = svc.ID
		}
		err = b.arbiter.Enroll(ctx, model.CatchEntry{
			ClientID:  client.ID,
			Slot:      id,
			ServiceID: svcID,
			ChatID:    chatID,
		})
		b.sessions.reset(uid)
		if errors.Is(err, model.ErrSlotTooSoon) {
			return b.mainMenu(ctx, chatID, "That slot is too close to be caught anymore.")
		}
		if err != nil {
			return err
		}
		return b.mainMenu(ctx, chatID, "Added! You'll be pinged if the slot frees up.")
	case labelPickOther:
		b.sessions.push(uid, stateChooseTime)
		return b.promptFreeSlots(ctx, chatID)
	}
	return b.msg.Send(ctx, chatID, "Please use the buttons.")
}

func (b *Bot) showMyBooking(ctx context.Context, uid, chatID int64) error {
	client, ok := b.clients.get(uid)
	if !ok {
		return b.msg.Send(ctx, chatID, "Please send /start first.")
	}
	active, err := b.mgr.Active(ctx, client.ID)
	if err != nil {
		return err
	}
	if active == nil {
		return b.mainMenu(ctx, chatID, "You have no bookings.")
	}
	b.sessions.push(uid, stateMyBooking)
	return b.optionsKeyboard(ctx, chatID,
		fmt.Sprintf("Your booking:\n%s\nStatus: %s", active.Slot.String(), active.Status),
		[]string{labelCancelMy}, true)
}

func (b *Bot) cancelMyBooking(ctx context.Context, uid, chatID int64) error {
	client, ok := b.clients.get(uid)
	if !ok {
		return b.msg.Send(ctx, chatID, "Please send /start first.")
	}
	freed, cancelled, err := b.mgr.Cancel(ctx, client.ID)
	if err != nil {
		return err
	}
	b.sessions.reset(uid)
	if cancelled == nil {
		return b.mainMenu(ctx, chatID, "You have no bookings to cancel.")
	}
	if err := b.mainMenu(ctx, chatID, "Your booking is cancelled ✅"); err != nil {
		return err
	}
	b.admin.Notify(ctx, fmt.Sprintf(
		"Booking cancelled\nSlot: %s\nClient: %s\nPhone: %s\nHandle: %s",
		freed.String(), client.FullName(), client.Phone, client.Handle))
	if err := b.arbiter.NotifyFreed(ctx, freed); err != nil {
		b.logger.Warn("waitlist notify failed", "slot", freed.String(), "err", err)
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		b.logger.Warn("callback ack failed", "err", err)
	}

	data := q.Data
	uid := q.From.ID

	switch {
	case data == "phone_confirm::yes":
		return b.finishRegistration(ctx, q)
	case data == "phone_confirm::no":
		b.sessions.push(uid, stateRegPhone)
		return b.editText(q, "Enter your number again.")
	case strings.HasPrefix(data, "claim::"):
		return b.handleClaim(ctx, q)
	case strings.HasPrefix(data, "decline::"):
		return b.handleDecline(ctx, q)
	case strings.HasPrefix(data, "confirm_booking::"):
		return b.handleConfirm(ctx, q)
	}
	return nil
}

func (b *Bot) finishRegistration(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	uid := q.From.ID
	chatID := q.Message.Chat.ID
	sess := b.sessions.get(uid)
	if sess.regName == "" || sess.phone == "" {
		return b.editText(q, "Registration failed. Please /start again.")
	}
	handle := ""
	if q.From.UserName != "" {
		handle = "@" + q.From.UserName
	}
	client := model.Client{
		Name:     sess.regName,
		LastName: sess.regLast,
		Phone:    sess.phone,
		Handle:   handle,
		ChatID:   chatID,
	}
	id, err := b.store.AddClient(ctx, client)
	if err != nil {
		return err
	}
	client.ID = id
	b.clients.put(uid, client)
	b.sessions.reset(uid)

	if err := b.editText(q, "Number confirmed. You're registered ✅"); err != nil {
		b.logger.Warn("edit failed", "err", err)
	}
	b.admin.Notify(ctx, fmt.Sprintf("New client: %s | %s | %s", client.FullName(), client.Phone, client.Handle))
	return b.mainMenu(ctx, chatID, "Pick an action:")
}

func (b *Bot) handleClaim(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	parts := strings.Split(q.Data, "::")
	if len(parts) < 3 {
		return b.editText(q, "Malformed request.")
	}
	slotText, token := parts[1], parts[2]
	client, ok := b.clients.get(q.From.ID)
	if !ok {
		return b.editText(q, "Please send /start first.")
	}

	_, err := b.arbiter.Claim(ctx, client, slotText, token)
	switch {
	case errors.Is(err, model.ErrNoHold), errors.Is(err, model.ErrHoldExpired):
		return b.editText(q, "The claim window is closed.")
	case errors.Is(err, model.ErrSlotTaken):
		return b.editText(q, "Someone got there first.")
	case errors.Is(err, model.ErrSlotTooSoon):
		return b.editText(q, "Too late, the slot can't be moved anymore.")
	case err != nil:
		return err
	}
	return b.editText(q, fmt.Sprintf("Done! Your booking is now at %s ✅", slotText))
}

func (b *Bot) handleDecline(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	parts := strings.Split(q.Data, "::")
	if len(parts) < 3 {
		return b.editText(q, "Malformed request.")
	}
	id, err := b.clock.Parse(parts[1])
	if err != nil {
		return b.editText(q, "Malformed request.")
	}
	token := parts[2]
	client, ok := b.clients.get(q.From.ID)
	if !ok {
		return b.editText(q, "Please send /start first.")
	}
	err = b.arbiter.Decline(ctx, client.ID, id, token)
	switch {
	case errors.Is(err, model.ErrNoHold), errors.Is(err, model.ErrHoldExpired):
		return b.editText(q, "The claim window is closed.")
	case err != nil:
		return err
	}
	return b.editText(q, "Declined. The next person in line gets a chance.")
}

func (b *Bot) handleConfirm(ctx context.Context, q *tgbotapi.CallbackQuery) error {
	raw := strings.TrimPrefix(q.Data, "confirm_booking::")
	bookingID, err := strconv.Atoi(raw)
	if err != nil {
		return b.editText(q, "Malformed request.")
	}
	row, err := b.mgr.Confirm(ctx, bookingID)
	if errors.Is(err, model.ErrBookingNotFound) {
		return b.editText(q, "Booking not found.")
	}
	if err != nil {
		return err
	}
	if err := b.editText(q, "Confirmed ✅"); err != nil {
		b.logger.Warn("edit failed", "err", err)
	}
	b.admin.Notify(ctx, fmt.Sprintf("Booking %d confirmed (client %s, slot %s)",
		row.ID, row.ClientID, row.Slot.String()))
	return nil
}

func (b *Bot) editText(q *tgbotapi.CallbackQuery, text string) error {
	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, text)
	if _, err := b.api.Request(edit); err != nil {
		return fmt.Errorf("edit message: %w", err)
	}
	return nil
}
