package api

import (
	"fmt"
	"strconv"
	"strings"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

type CheckRequest struct {
	Start   civil.DateTime `json:"start"`
	MenuIDs []int64        `json:"menu_ids" binding:"required,min=1"`
	StaffID *int64         `json:"staff_id"`
}

type CustomerRequest struct {
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type CreateReservationRequest struct {
	CheckRequest
	Customer CustomerRequest `json:"customer" binding:"required"`
	Notes    string          `json:"notes"`
}

type StatusRequest struct {
	Status model.ReservationStatus `json:"status" binding:"required"`
}

type SlotsResponse struct {
	Date  civil.Date        `json:"date"`
	Slots []civil.LocalTime `json:"slots"`
}

// parseIDList parses "1,2,3".
func parseIDList(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseOptionalID(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("invalid id %q", s)
	}
	return &id, nil
}

func parseOptionalDate(s string) (civil.Date, error) {
	if s == "" {
		return civil.Date{}, nil
	}
	return civil.ParseDate(s)
}
