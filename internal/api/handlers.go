package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"salonbook/internal/audit"
	"salonbook/internal/booking"
	"salonbook/internal/civil"
	"salonbook/internal/model"
	"salonbook/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) listMenus(c *gin.Context) {
	menus, err := s.svc.Menus(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"menus": menus})
}

func (s *Server) listStaff(c *gin.Context) {
	staff, err := s.svc.Staff(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"staff": staff})
}

func (s *Server) listSlots(c *gin.Context) {
	date, err := parseOptionalDate(c.Query("date"))
	if err != nil || date.IsZero() {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
		return
	}
	menuIDs, err := parseIDList(c.Query("menu_ids"))
	if err != nil || len(menuIDs) == 0 {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "menu_ids must be a comma-separated list of ids")
		return
	}
	staffID, err := parseOptionalID(c.Query("staff_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	slots, err := s.svc.AvailableSlots(c.Request.Context(), booking.SlotQuery{
		TenantCode:  c.Param("code"),
		Date:        date,
		MenuIDs:     menuIDs,
		StaffID:     staffID,
		ForCustomer: true,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if slots == nil {
		slots = []civil.LocalTime{}
	}
	success(c, http.StatusOK, SlotsResponse{Date: date, Slots: slots})
}

func (s *Server) checkAvailability(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Start.IsZero() {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}

	res, err := s.svc.Check(c.Request.Context(), booking.CheckRequest{
		TenantCode:  c.Param("code"),
		Start:       req.Start,
		MenuIDs:     req.MenuIDs,
		StaffID:     req.StaffID,
		ForCustomer: true,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, res)
}

// createReservation books for a customer. The public route applies the
// booking horizon; the admin route does not.
func (s *Server) createReservation(forCustomer bool) gin.HandlerFunc {
	channel := "api"
	if !forCustomer {
		channel = "admin"
	}
	return func(c *gin.Context) {
		var req CreateReservationRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Start.IsZero() {
			fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
			return
		}

		r, res, err := s.svc.Book(c.Request.Context(), booking.BookRequest{
			CheckRequest: booking.CheckRequest{
				TenantCode:  c.Param("code"),
				Start:       req.Start,
				MenuIDs:     req.MenuIDs,
				StaffID:     req.StaffID,
				ForCustomer: forCustomer,
			},
			Customer: model.Customer{Name: req.Customer.Name, Email: req.Customer.Email, Phone: req.Customer.Phone},
			Notes:    req.Notes,
			Channel:  channel,
		})
		if err != nil {
			writeError(c, err)
			return
		}
		if !res.Accepted {
			failWithDetails(c, http.StatusConflict, "BOOKING_REJECTED", res.Message, gin.H{
				"reason":   res.Reason,
				"conflict": res.Conflict,
			})
			return
		}
		success(c, http.StatusCreated, gin.H{"reservation": r})
	}
}

func (s *Server) listReservations(c *gin.Context) {
	from, err := parseOptionalDate(c.Query("from"))
	if err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	to, err := parseOptionalDate(c.Query("to"))
	if err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	staffID, err := parseOptionalID(c.Query("staff_id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a positive number")
			return
		}
	}

	list, err := s.svc.ListReservations(c.Request.Context(), c.Param("code"), store.ReservationFilter{
		From:    from,
		To:      to,
		Status:  model.ReservationStatus(c.Query("status")),
		StaffID: staffID,
		Limit:   limit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if list == nil {
		list = []model.Reservation{}
	}
	success(c, http.StatusOK, gin.H{"reservations": list})
}

func reservationID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "INVALID_ID", "Invalid reservation ID")
		return 0, false
	}
	return id, true
}

func (s *Server) getReservation(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}
	r, err := s.svc.Reservation(c.Request.Context(), c.Param("code"), id)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"reservation": r})
}

func (s *Server) updateStatus(c *gin.Context) {
	id, ok := reservationID(c)
	if !ok {
		return
	}
	var req StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil || !req.Status.Valid() {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "status must be one of pending, confirmed, completed, cancelled")
		return
	}
	r, err := s.svc.SetStatus(c.Request.Context(), c.Param("code"), id, req.Status)
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"reservation": r})
}

func (s *Server) listShifts(c *gin.Context) {
	date, err := parseOptionalDate(c.Query("date"))
	if err != nil || date.IsZero() {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be YYYY-MM-DD")
		return
	}
	shifts, err := s.svc.Shifts(c.Request.Context(), c.Param("code"), date)
	if err != nil {
		writeError(c, err)
		return
	}
	if shifts == nil {
		shifts = []model.Shift{}
	}
	success(c, http.StatusOK, gin.H{"shifts": shifts})
}

func (s *Server) upsertShifts(c *gin.Context) {
	var req struct {
		Shifts []model.Shift `json:"shifts" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := s.svc.UpsertShifts(c.Request.Context(), c.Param("code"), req.Shifts); err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, gin.H{"shifts": req.Shifts})
}

func (s *Server) getCalendar(c *gin.Context) {
	cal, err := s.svc.Calendar(c.Request.Context(), c.Param("code"))
	if err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, cal)
}

func (s *Server) updateCalendar(c *gin.Context) {
	var req booking.CalendarSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body")
		return
	}
	if err := s.svc.UpdateCalendar(c.Request.Context(), c.Param("code"), req); err != nil {
		writeError(c, err)
		return
	}
	success(c, http.StatusOK, req)
}

func (s *Server) salesReport(c *gin.Context) {
	from, err := parseOptionalDate(c.Query("from"))
	if err != nil || from.IsZero() {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "from must be YYYY-MM-DD")
		return
	}
	to, err := parseOptionalDate(c.Query("to"))
	if err != nil || to.IsZero() || to.Before(from) {
		fail(c, http.StatusBadRequest, "VALIDATION_ERROR", "to must be YYYY-MM-DD on or after from")
		return
	}

	code := c.Param("code")
	var buf bytes.Buffer
	if err := audit.WriteReport(c.Request.Context(), s.svc, audit.NewExcelizeWriter, code, from, to, &buf); err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, audit.Filename(code, from, to)))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
