package bot

import (
	"context"
	"errors"
	"fmt"
	"io"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"salonbook/internal/model"
)

func (b *Bot) notifyManagers(text string) {
	for _, id := range b.managers {
		if _, err := b.tg.Send(tgbotapi.NewMessage(id, text)); err != nil {
			b.logger.Warn().Err(err).Int64("manager_id", id).Msg("manager notification failed")
		}
	}
}

// SendDocument delivers a file to every manager.
func (b *Bot) SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error {
	if len(b.managers) == 0 {
		return nil
	}
	content, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	var errs []error
	for _, id := range b.managers {
		doc := tgbotapi.NewDocument(id, tgbotapi.FileBytes{Name: filename, Bytes: content})
		doc.Caption = caption
		if _, err := b.tg.Send(doc); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int64("manager_id", id).Str("file", filename).Msg("send document failed")
			errs = append(errs, fmt.Errorf("manager %d: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

// SendReminder tells a customer about an upcoming reservation.
func (b *Bot) SendReminder(_ context.Context, telegramID int64, tenant *model.Tenant, r *model.Reservation) error {
	if telegramID == 0 {
		return fmt.Errorf("reservation %d has no telegram customer", r.ID)
	}
	_, err := b.tg.Send(tgbotapi.NewMessage(telegramID, formatReminderMessage(tenant, r)))
	return err
}

func formatReminderMessage(tenant *model.Tenant, r *model.Reservation) string {
	msg := fmt.Sprintf("⏰ Reminder: your reservation #%d at %s is on %s at %s (%d min).",
		r.ID, tenant.Name, r.Start.Date, r.Start.Time, r.EffectiveDuration())
	if r.StaffName != "" {
		msg += " Stylist: " + r.StaffName + "."
	}
	return msg
}
