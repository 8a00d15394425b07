// Package bot lets customers book and cancel salon reservations over Telegram.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/civil"
	"salonbook/internal/model"
)

const (
	btnBook = "📅 Book"
	btnMine = "📌 My reservations"
	btnHelp = "ℹ️ Help"
)

var mainMenu = tgbotapi.NewReplyKeyboard(
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnBook),
		tgbotapi.NewKeyboardButton(btnMine),
	),
	tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnHelp),
	),
)

// Bot serves one salon. Managers receive new-booking notices and reports.
type Bot struct {
	svc        BookingService
	tenantCode string
	maxAdvance time.Duration
	managers   []int64
	tg         telegramClient
	state      *stateStore
	logger     *zerolog.Logger
	now        func() time.Time
}

func New(token string, svc BookingService, tenantCode string, maxAdvance time.Duration, managers []int64, debug bool, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	api.Debug = debug
	return NewWithTelegramClient(&realTelegramClient{api: api}, svc, tenantCode, maxAdvance, managers, logger)
}

// NewWithTelegramClient allows injecting a mocked Telegram client for tests.
func NewWithTelegramClient(tg telegramClient, svc BookingService, tenantCode string, maxAdvance time.Duration, managers []int64, logger *zerolog.Logger) (*Bot, error) {
	if tg == nil {
		return nil, fmt.Errorf("telegram client is nil")
	}
	if tenantCode == "" {
		return nil, fmt.Errorf("telegram bot needs a salon code")
	}
	if maxAdvance <= 0 {
		maxAdvance = 60 * 24 * time.Hour
	}
	return &Bot{
		svc:        svc,
		tenantCode: tenantCode,
		maxAdvance: maxAdvance,
		managers:   managers,
		tg:         tg,
		state:      newStateStore(),
		logger:     logger,
		now:        time.Now,
	}, nil
}

// Start polls updates until ctx is done.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.tg.GetUpdatesChan(u)
	b.logger.Info().Str("username", b.tg.SelfUser().UserName).Str("salon", b.tenantCode).Msg("Telegram bot authorized")

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			l := b.logger.With().Str("request_id", uuid.New().String()).Logger()
			b.handleUpdate(l.WithContext(ctx), &update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update *tgbotapi.Update) {
	l := zerolog.Ctx(ctx)
	if update.CallbackQuery != nil {
		l.Debug().
			Int64("user_id", update.CallbackQuery.From.ID).
			Str("data", update.CallbackQuery.Data).
			Msg("Handling callback query")
		b.handleCallback(ctx, update.CallbackQuery)
		return
	}
	if update.Message != nil && update.Message.From != nil {
		l.Debug().
			Int64("user_id", update.Message.From.ID).
			Str("text", update.Message.Text).
			Msg("Handling message")
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	chatID, userID := msg.Chat.ID, msg.From.ID

	switch {
	case strings.HasPrefix(text, "/start"):
		b.state.reset(userID)
		b.sendMainMenu(chatID)
	case text == btnBook || strings.HasPrefix(text, "/book"):
		b.startBookingFlow(ctx, chatID, userID)
	case text == btnMine || strings.HasPrefix(text, "/my"):
		b.handleMyReservations(ctx, chatID, msg.From)
	case text == btnHelp || strings.HasPrefix(text, "/help"):
		b.reply(chatID, "Commands: /book to make a reservation, /my to see or cancel yours, /cancel to stop.")
	case strings.HasPrefix(text, "/cancel"):
		b.state.reset(userID)
		b.reply(chatID, "Cancelled.")
		b.sendMainMenu(chatID)
	default:
		b.sendMainMenu(chatID)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	if cq.Message == nil {
		return
	}
	_, _ = b.tg.Request(tgbotapi.NewCallback(cq.ID, ""))
	data := cq.Data
	if data == "noop" {
		return
	}

	userID := cq.From.ID
	chatID := cq.Message.Chat.ID
	st := b.state.get(userID)

	switch {
	case strings.HasPrefix(data, "menu:"):
		b.handleMenuToggle(ctx, chatID, cq.Message.MessageID, st, data)
	case strings.HasPrefix(data, "mpage:"):
		b.handleMenuPage(ctx, chatID, cq.Message.MessageID, st, data)
	case data == "menus:done":
		b.handleMenusDone(ctx, chatID, st)
	case strings.HasPrefix(data, "cal:"):
		b.handleCalendarPage(ctx, chatID, st, data)
	case strings.HasPrefix(data, "date:"):
		b.handleDate(ctx, chatID, st, data)
	case strings.HasPrefix(data, "staff:"):
		b.handleStaff(ctx, chatID, st, data)
	case strings.HasPrefix(data, "slot:"):
		b.handleSlot(ctx, chatID, st, data)
	case strings.HasPrefix(data, "back:"):
		b.handleBack(ctx, chatID, userID, st, data)
	case data == "confirm":
		b.handleConfirm(ctx, chatID, cq.From, st)
	case data == "cancel":
		b.state.reset(userID)
		b.reply(chatID, "OK, nothing was booked. /book to start again.")
	case strings.HasPrefix(data, "rcancel:"):
		b.handleCancelReservation(ctx, chatID, userID, data)
	}
}

func (b *Bot) sendMainMenu(chatID int64) {
	msg := tgbotapi.NewMessage(chatID, "What would you like to do?")
	msg.ReplyMarkup = mainMenu
	_, _ = b.tg.Send(msg)
}

func (b *Bot) reply(chatID int64, text string) {
	_, _ = b.tg.Send(tgbotapi.NewMessage(chatID, text))
}

// replyError turns a service error into a customer-facing message.
func (b *Bot) replyError(ctx context.Context, chatID int64, err error) {
	switch {
	case errors.Is(err, model.ErrInvalidRequest):
		b.reply(chatID, "That request is not valid: "+userMessage(err))
	case errors.Is(err, model.ErrNotFound):
		b.reply(chatID, "Not found. It may have been removed. /book to start again.")
	case errors.Is(err, model.ErrInvalidTransition):
		b.reply(chatID, "This reservation can no longer be changed.")
	default:
		zerolog.Ctx(ctx).Error().Err(err).Msg("bot request failed")
		b.reply(chatID, "The service is temporarily unavailable. Please try again later.")
	}
}

// userMessage drops the sentinel prefix from a wrapped validation error.
func userMessage(err error) string {
	msg := err.Error()
	if i := strings.Index(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

func (b *Bot) activeMenus(ctx context.Context) ([]model.Menu, error) {
	menus, err := b.svc.Menus(ctx, b.tenantCode)
	if err != nil {
		return nil, err
	}
	active := menus[:0:0]
	for _, m := range menus {
		if m.IsActive {
			active = append(active, m)
		}
	}
	return active, nil
}

func (b *Bot) startBookingFlow(ctx context.Context, chatID, userID int64) {
	b.state.reset(userID)
	st := b.state.get(userID)
	menus, err := b.activeMenus(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if len(menus) == 0 {
		b.reply(chatID, "No services are available for booking right now.")
		return
	}
	st.Step = stepMenus
	b.renderMenuPage(chatID, 0, menus, &st.Draft)
}

func (b *Bot) handleMenuToggle(ctx context.Context, chatID int64, messageID int, st *userState, data string) {
	if st.Step != stepMenus {
		b.reply(chatID, "This menu is outdated. /book to start again.")
		return
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(data, "menu:"), 10, 64)
	if err != nil {
		return
	}
	menus, err := b.activeMenus(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	st.Draft.toggleMenu(id)
	b.renderMenuPage(chatID, messageID, menus, &st.Draft)
}

func (b *Bot) handleMenuPage(ctx context.Context, chatID int64, messageID int, st *userState, data string) {
	page, err := strconv.Atoi(strings.TrimPrefix(data, "mpage:"))
	if err != nil || st.Step != stepMenus {
		return
	}
	menus, err := b.activeMenus(ctx)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	st.Draft.MenuPage = page
	b.renderMenuPage(chatID, messageID, menus, &st.Draft)
}

func (b *Bot) handleMenusDone(ctx context.Context, chatID int64, st *userState) {
	if st.Step != stepMenus {
		return
	}
	if len(st.Draft.MenuIDs) == 0 {
		b.reply(chatID, "Pick at least one service first.")
		return
	}
	st.Step = stepDate
	b.sendCalendar(ctx, chatID, civil.Date{})
}

// sendCalendar shows the month containing month, or the current month when
// month is zero. Only open days inside the booking horizon are selectable.
func (b *Bot) sendCalendar(ctx context.Context, chatID int64, month civil.Date) {
	tenant, err := b.svc.Tenant(ctx, b.tenantCode)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	now := b.now().In(tenant.Location())
	today := civil.DateOf(now)
	last := civil.DateOf(now.Add(b.maxAdvance))
	if month.IsZero() || month.Before(today) {
		month = today
	}
	cal := tenant.Calendar(ctx)
	selectable := func(d civil.Date) bool {
		if d.Before(today) || d.After(last) {
			return false
		}
		return availability.ResolveOpenWindow(cal, d).IsOpen
	}

	var prev, next civil.Date
	first := civil.Date{Year: month.Year, Month: month.Month, Day: 1}
	if first.After(today) {
		prev = civil.DateOf(first.In(time.UTC).AddDate(0, -1, 0))
	}
	following := civil.DateOf(first.In(time.UTC).AddDate(0, 1, 0))
	if !following.After(last) {
		next = following
	}

	msg := tgbotapi.NewMessage(chatID, "Choose a date:")
	msg.ReplyMarkup = GenerateCalendarKeyboard(month, selectable, prev, next)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleCalendarPage(ctx context.Context, chatID int64, st *userState, data string) {
	if st.Step != stepDate {
		return
	}
	month, err := civil.ParseDate(strings.TrimPrefix(data, "cal:"))
	if err != nil {
		return
	}
	b.sendCalendar(ctx, chatID, month)
}

func (b *Bot) handleDate(ctx context.Context, chatID int64, st *userState, data string) {
	if st.Step != stepDate {
		b.reply(chatID, "This calendar is outdated. /book to start again.")
		return
	}
	date, err := civil.ParseDate(strings.TrimPrefix(data, "date:"))
	if err != nil {
		b.reply(chatID, "Invalid date.")
		return
	}
	st.Draft.Date = date
	st.Step = stepStaff
	b.sendStaff(ctx, chatID)
}

func (b *Bot) sendStaff(ctx context.Context, chatID int64) {
	staff, err := b.svc.Staff(ctx, b.tenantCode)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	rows := [][]tgbotapi.InlineKeyboardButton{{
		tgbotapi.NewInlineKeyboardButtonData("Any stylist", "staff:any"),
	}}
	for _, s := range staff {
		if !s.IsActive {
			continue
		}
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(s.Name, fmt.Sprintf("staff:%d", s.ID)),
		})
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:date"),
	})
	msg := tgbotapi.NewMessage(chatID, "Who would you like to see?")
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleStaff(ctx context.Context, chatID int64, st *userState, data string) {
	if st.Step != stepStaff {
		return
	}
	st.Draft.StaffID = nil
	if raw := strings.TrimPrefix(data, "staff:"); raw != "any" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return
		}
		st.Draft.StaffID = &id
	}
	st.Step = stepTime
	b.sendSlots(ctx, chatID, st)
}

func (b *Bot) sendSlots(ctx context.Context, chatID int64, st *userState) {
	slots, err := b.svc.AvailableSlots(ctx, booking.SlotQuery{
		TenantCode:  b.tenantCode,
		Date:        st.Draft.Date,
		MenuIDs:     st.Draft.MenuIDs,
		StaffID:     st.Draft.StaffID,
		ForCustomer: true,
	})
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if len(slots) == 0 {
		st.Step = stepDate
		b.reply(chatID, fmt.Sprintf("No free times on %s. Please pick another date.", st.Draft.Date))
		b.sendCalendar(ctx, chatID, st.Draft.Date)
		return
	}
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("Free start times on %s:", st.Draft.Date))
	msg.ReplyMarkup = GenerateTimeSlotsKeyboard(slots)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) checkRequest(st *userState) booking.CheckRequest {
	return booking.CheckRequest{
		TenantCode:  b.tenantCode,
		Start:       civil.DateTime{Date: st.Draft.Date, Time: st.Draft.Start},
		MenuIDs:     st.Draft.MenuIDs,
		StaffID:     st.Draft.StaffID,
		ForCustomer: true,
	}
}

func (b *Bot) handleSlot(ctx context.Context, chatID int64, st *userState, data string) {
	if st.Step != stepTime {
		b.reply(chatID, "This list is outdated. /book to start again.")
		return
	}
	start, err := civil.ParseLocalTime(strings.TrimPrefix(data, "slot:"))
	if err != nil {
		b.reply(chatID, "Invalid time.")
		return
	}
	st.Draft.Start = start

	res, err := b.svc.Check(ctx, b.checkRequest(st))
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if !res.Accepted {
		b.reply(chatID, "That time is no longer available: "+res.Message)
		b.sendSlots(ctx, chatID, st)
		return
	}
	st.Step = stepConfirm

	var text strings.Builder
	fmt.Fprintf(&text, "Please confirm your reservation\n\n📅 %s at %s\n", st.Draft.Date, start)
	for _, item := range res.Totals.Items {
		fmt.Fprintf(&text, "• %s (%d min) %d\n", item.Name, item.Duration, item.Price)
	}
	fmt.Fprintf(&text, "\nTotal: %d · %d min", res.Totals.TotalPrice, res.Totals.TotalDuration)

	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Confirm", "confirm"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Cancel", "cancel"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:time"),
		),
	)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleBack(ctx context.Context, chatID, userID int64, st *userState, data string) {
	switch strings.TrimPrefix(data, "back:") {
	case "menus":
		menus, err := b.activeMenus(ctx)
		if err != nil {
			b.replyError(ctx, chatID, err)
			return
		}
		st.Step = stepMenus
		b.renderMenuPage(chatID, 0, menus, &st.Draft)
	case "date":
		st.Step = stepDate
		b.sendCalendar(ctx, chatID, st.Draft.Date)
	case "staff":
		st.Step = stepStaff
		b.sendStaff(ctx, chatID)
	case "time":
		st.Step = stepTime
		b.sendSlots(ctx, chatID, st)
	default:
		b.startBookingFlow(ctx, chatID, userID)
	}
}

func displayName(u *tgbotapi.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	if name == "" {
		name = fmt.Sprintf("telegram:%d", u.ID)
	}
	return name
}

func (b *Bot) handleConfirm(ctx context.Context, chatID int64, from *tgbotapi.User, st *userState) {
	if st.Step != stepConfirm {
		b.reply(chatID, "This reservation is outdated. /book to start again.")
		return
	}

	r, res, err := b.svc.Book(ctx, booking.BookRequest{
		CheckRequest: b.checkRequest(st),
		Customer:     model.Customer{Name: displayName(from), TelegramID: from.ID},
		Channel:      "telegram",
	})
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if !res.Accepted {
		st.Step = stepTime
		b.reply(chatID, "Sorry, that time was just taken: "+res.Message)
		b.sendSlots(ctx, chatID, st)
		return
	}
	b.state.reset(from.ID)

	b.reply(chatID, fmt.Sprintf("✅ Reservation #%d confirmed for %s at %s (%d min, total %d).",
		r.ID, r.Start.Date, r.Start.Time, r.TotalDuration, r.TotalPrice))
	b.notifyManagers(fmt.Sprintf("🆕 Reservation #%d: %s on %s at %s, %d min.",
		r.ID, displayName(from), r.Start.Date, r.Start.Time, r.TotalDuration))
}

func (b *Bot) customer(ctx context.Context, from *tgbotapi.User) (*model.Customer, error) {
	return b.svc.Customer(ctx, b.tenantCode, model.Customer{Name: displayName(from), TelegramID: from.ID})
}

func (b *Bot) handleMyReservations(ctx context.Context, chatID int64, from *tgbotapi.User) {
	c, err := b.customer(ctx, from)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	list, err := b.svc.UpcomingReservations(ctx, b.tenantCode, c.ID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	if len(list) == 0 {
		b.reply(chatID, "You have no upcoming reservations. /book to make one.")
		return
	}

	var text strings.Builder
	text.WriteString("Your upcoming reservations:\n\n")
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(list))
	for i := range list {
		r := &list[i]
		fmt.Fprintf(&text, "#%d · %s %s · %d min\n", r.ID, r.Start.Date, r.Start.Time, r.EffectiveDuration())
		rows = append(rows, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("Cancel #%d", r.ID), fmt.Sprintf("rcancel:%d", r.ID)),
		})
	}
	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	_, _ = b.tg.Send(msg)
}

func (b *Bot) handleCancelReservation(ctx context.Context, chatID, userID int64, data string) {
	id, err := strconv.ParseInt(strings.TrimPrefix(data, "rcancel:"), 10, 64)
	if err != nil {
		return
	}
	r, err := b.svc.CancelForCustomer(ctx, b.tenantCode, id, userID)
	if err != nil {
		b.replyError(ctx, chatID, err)
		return
	}
	b.reply(chatID, fmt.Sprintf("Reservation #%d on %s at %s is cancelled.", r.ID, r.Start.Date, r.Start.Time))
	b.notifyManagers(fmt.Sprintf("❌ Reservation #%d on %s at %s was cancelled by the customer.", r.ID, r.Start.Date, r.Start.Time))
}
