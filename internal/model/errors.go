package model

import "errors"

var (
	// ErrNotFound marks a tenant, menu, staff member or reservation that does not exist or is inactive.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRequest marks malformed input such as an empty service list.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrInvalidTransition is returned when a status change is not allowed from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
)
