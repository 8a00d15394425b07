package bot

import (
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"salonbook/internal/civil"
)

// GenerateCalendarKeyboard builds a Monday-first month grid. Days for which
// selectable returns false are shown as "·" and do nothing when pressed.
// prev and next add month navigation when non-zero.
func GenerateCalendarKeyboard(month civil.Date, selectable func(civil.Date) bool, prev, next civil.Date) tgbotapi.InlineKeyboardMarkup {
	first := civil.Date{Year: month.Year, Month: month.Month, Day: 1}
	offset := int(first.Weekday())
	if offset == 0 {
		offset = 7
	}
	days := daysIn(month.Month, month.Year)

	rows := make([][]tgbotapi.InlineKeyboardButton, 0, 9)
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %d", month.Month, month.Year), "noop"),
	})
	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, wd := range []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"} {
		header = append(header, tgbotapi.NewInlineKeyboardButtonData(wd, "noop"))
	}
	rows = append(rows, header)

	day := 1
	for day <= days {
		row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
		for col := 1; col <= 7; col++ {
			if (len(rows) == 2 && col < offset) || day > days {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(" ", "noop"))
				continue
			}
			d := civil.Date{Year: month.Year, Month: month.Month, Day: day}
			if selectable != nil && !selectable(d) {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData("·", "noop"))
			} else {
				row = append(row, tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%d", day), "date:"+d.String()))
			}
			day++
		}
		rows = append(rows, row)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if !prev.IsZero() {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("⬅️", "cal:"+prev.String()))
	}
	if !next.IsZero() {
		nav = append(nav, tgbotapi.NewInlineKeyboardButtonData("➡️", "cal:"+next.String()))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:menus"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// GenerateTimeSlotsKeyboard lays slots out three per row.
func GenerateTimeSlotsKeyboard(slots []civil.LocalTime) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(slots)/3+2)
	var current []tgbotapi.InlineKeyboardButton
	for _, slot := range slots {
		current = append(current, tgbotapi.NewInlineKeyboardButtonData(slot.String(), "slot:"+slot.String()))
		if len(current) == 3 {
			rows = append(rows, current)
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	rows = append(rows, []tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardButtonData("⬅️ Back", "back:staff"),
	})
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func daysIn(m time.Month, year int) int {
	switch m {
	case time.February:
		if (year%4 == 0 && year%100 != 0) || year%400 == 0 {
			return 29
		}
		return 28
	case time.April, time.June, time.September, time.November:
		return 30
	default:
		return 31
	}
}
