// Package api exposes booking operations over HTTP with gin.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"salonbook/internal/booking"
	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

// BookingService is the part of booking.Service the HTTP layer needs.
type BookingService interface {
	Menus(ctx context.Context, code string) ([]model.Menu, error)
	Staff(ctx context.Context, code string) ([]model.Staff, error)
	AvailableSlots(ctx context.Context, q booking.SlotQuery) ([]civil.LocalTime, error)
	Check(ctx context.Context, req booking.CheckRequest) (booking.CheckResult, error)
	Book(ctx context.Context, req booking.BookRequest) (*model.Reservation, booking.CheckResult, error)

	Reservation(ctx context.Context, code string, id int64) (*model.Reservation, error)
	ListReservations(ctx context.Context, code string, f store.ReservationFilter) ([]model.Reservation, error)
	SetStatus(ctx context.Context, code string, id int64, to model.ReservationStatus) (*model.Reservation, error)
	Shifts(ctx context.Context, code string, date civil.Date) ([]model.Shift, error)
	UpsertShifts(ctx context.Context, code string, shifts []model.Shift) error
	Calendar(ctx context.Context, code string) (booking.CalendarSettings, error)
	UpdateCalendar(ctx context.Context, code string, cs booking.CalendarSettings) error
}

var _ BookingService = (*booking.Service)(nil)

type Server struct {
	svc    BookingService
	apiKey string
	logger *zerolog.Logger
	engine *gin.Engine
}

// NewServer builds the router. adminAPIKey guards the /admin routes.
func NewServer(svc BookingService, adminAPIKey string, logger *zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{svc: svc, apiKey: adminAPIKey, logger: logger, engine: gin.New()}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() {
	r := s.engine
	r.Use(RequestLogger(s.logger), Recovery(), Metrics())
	r.NoRoute(func(c *gin.Context) {
		fail(c, http.StatusNotFound, "NOT_FOUND", "Route not found")
	})

	v1 := r.Group("/api/v1")

	public := v1.Group("/salons/:code")
	public.GET("/menus", s.listMenus)
	public.GET("/staff", s.listStaff)
	public.GET("/slots", s.listSlots)
	public.POST("/availability/check", s.checkAvailability)
	public.POST("/reservations", s.createReservation(true))

	admin := v1.Group("/admin/salons/:code", AdminAuth(s.apiKey))
	admin.POST("/reservations", s.createReservation(false))
	admin.GET("/reservations", s.listReservations)
	admin.GET("/reservations/:id", s.getReservation)
	admin.PATCH("/reservations/:id/status", s.updateStatus)
	admin.GET("/shifts", s.listShifts)
	admin.PUT("/shifts", s.upsertShifts)
	admin.GET("/calendar", s.getCalendar)
	admin.PUT("/calendar", s.updateCalendar)
	admin.GET("/reports/sales", s.salesReport)
}

// Serve runs the HTTP server until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("HTTP API listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
