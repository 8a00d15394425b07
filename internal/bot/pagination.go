package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"salonbook/internal/model"
)

const menusPerPage = 8

// renderMenuPage shows one page of the menu catalogue with the current
// selection ticked. MessageID 0 sends a new message, otherwise the existing
// one is edited in place.
func (b *Bot) renderMenuPage(chatID int64, messageID int, menus []model.Menu, draft *BookingDraft) {
	pages := (len(menus) + menusPerPage - 1) / menusPerPage
	page := draft.MenuPage
	if page >= pages {
		page = pages - 1
	}
	if page < 0 {
		page = 0
	}
	start := page * menusPerPage
	end := min(start+menusPerPage, len(menus))

	var text strings.Builder
	text.WriteString("Choose one or more services, then press Done.\n")
	if pages > 1 {
		fmt.Fprintf(&text, "Page %d of %d\n", page+1, pages)
	}
	if len(draft.MenuIDs) > 0 {
		fmt.Fprintf(&text, "Selected: %d\n", len(draft.MenuIDs))
	}

	keyboard := make([][]tgbotapi.InlineKeyboardButton, 0, menusPerPage+3)
	for _, m := range menus[start:end] {
		mark := "▫️"
		if draft.hasMenu(m.ID) {
			mark = "✅"
		}
		label := fmt.Sprintf("%s %s · %d min · %d", mark, m.Name, m.Duration, m.Price)
		keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
			tgbotapi.NewInlineKeyboardButtonData(label, fmt.Sprintf("menu:%d", m.ID)),
		})
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️ Prev", fmt.Sprintf("mpage:%d", page-1)))
	}
	if end < len(menus) {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("Next ➡️", fmt.Sprintf("mpage:%d", page+1)))
	}
	if len(nav) > 0 {
		keyboard = append(keyboard, nav)
	}
	keyboard = append(keyboard, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("Done ✔️", "menus:done"),
		tgbotapi.NewInlineKeyboardButtonData("Cancel", "cancel"),
	})

	markup := tgbotapi.NewInlineKeyboardMarkup(keyboard...)
	if messageID != 0 {
		_, _ = b.tg.Send(tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text.String(), markup))
		return
	}
	msg := tgbotapi.NewMessage(chatID, text.String())
	msg.ReplyMarkup = markup
	_, _ = b.tg.Send(msg)
}
