package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"salonbook/internal/booking"
	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// BookingService is the part of booking.Service the bot drives.
type BookingService interface {
	Tenant(ctx context.Context, code string) (*model.Tenant, error)
	Menus(ctx context.Context, code string) ([]model.Menu, error)
	Staff(ctx context.Context, code string) ([]model.Staff, error)
	AvailableSlots(ctx context.Context, q booking.SlotQuery) ([]civil.LocalTime, error)
	Check(ctx context.Context, req booking.CheckRequest) (booking.CheckResult, error)
	Book(ctx context.Context, req booking.BookRequest) (*model.Reservation, booking.CheckResult, error)
	Customer(ctx context.Context, code string, c model.Customer) (*model.Customer, error)
	UpcomingReservations(ctx context.Context, code string, customerID int64) ([]model.Reservation, error)
	CancelForCustomer(ctx context.Context, code string, id, telegramID int64) (*model.Reservation, error)
}

var _ BookingService = (*booking.Service)(nil)

type telegramClient interface {
	Send(tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	SelfUser() tgbotapi.User
}

type realTelegramClient struct {
	api *tgbotapi.BotAPI
}

func (c *realTelegramClient) Send(msg tgbotapi.Chattable) (tgbotapi.Message, error) {
	return c.api.Send(msg)
}

func (c *realTelegramClient) Request(msg tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	return c.api.Request(msg)
}

func (c *realTelegramClient) GetUpdatesChan(cfg tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return c.api.GetUpdatesChan(cfg)
}

func (c *realTelegramClient) SelfUser() tgbotapi.User {
	return c.api.Self
}
