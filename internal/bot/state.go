package bot

import (
	"sync"

	"salonbook/internal/civil"
)

type bookingStep string

const (
	stepNone    bookingStep = "none"
	stepMenus   bookingStep = "menus"
	stepDate    bookingStep = "date"
	stepStaff   bookingStep = "staff"
	stepTime    bookingStep = "time"
	stepConfirm bookingStep = "confirm"
)

// BookingDraft collects a customer's choices across callbacks.
type BookingDraft struct {
	MenuIDs  []int64
	Date     civil.Date
	StaffID  *int64 // nil = any staff member
	Start    civil.LocalTime
	MenuPage int
}

func (d *BookingDraft) toggleMenu(id int64) {
	for i, m := range d.MenuIDs {
		if m == id {
			d.MenuIDs = append(d.MenuIDs[:i], d.MenuIDs[i+1:]...)
			return
		}
	}
	d.MenuIDs = append(d.MenuIDs, id)
}

func (d *BookingDraft) hasMenu(id int64) bool {
	for _, m := range d.MenuIDs {
		if m == id {
			return true
		}
	}
	return false
}

type userState struct {
	Step  bookingStep
	Draft BookingDraft
}

type stateStore struct {
	mu sync.Mutex
	m  map[int64]*userState
}

func newStateStore() *stateStore {
	return &stateStore{m: make(map[int64]*userState)}
}

func (s *stateStore) get(userID int64) *userState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.m[userID]
	if st == nil {
		st = &userState{Step: stepNone}
		s.m[userID] = st
	}
	return st
}

func (s *stateStore) reset(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, userID)
}
