package availability

import (
	"fmt"
	"iter"

	"salonbook/internal/civil"
	"salonbook/internal/model"
)

// DefaultSlotStep is the spacing between offered start times, in minutes.
const DefaultSlotStep = 30

// Slots validates the request and returns a sequence of acceptable start times,
// ascending from opening. Candidates are checked as the sequence is consumed,
// and the sequence can be ranged over any number of times.
func Slots(d *Day, duration int, staffID *int64, step int) (iter.Seq[civil.LocalTime], error) {
	if step <= 0 {
		step = DefaultSlotStep
	}
	if err := d.validate(Candidate{Start: civil.Midnight, Duration: duration, StaffID: staffID}); err != nil {
		return nil, err
	}

	return func(yield func(civil.LocalTime) bool) {
		window := d.OpenWindow()
		if !window.IsOpen {
			return
		}
		last := window.Close.Add(-duration)
		for start := window.Open; !start.After(last); start = start.Add(step) {
			dec, err := CheckCandidate(d, Candidate{Start: start, Duration: duration, StaffID: staffID})
			if err != nil || !dec.Accepted {
				continue
			}
			if !yield(start) {
				return
			}
		}
	}, nil
}

// EnumerateSlots resolves the services' total duration and collects every
// acceptable start time for them.
func EnumerateSlots(d *Day, menuIDs []int64, catalog []model.Menu, staffID *int64, step int) ([]civil.LocalTime, error) {
	totals, err := ComputeTotals(d.Tenant.ID, menuIDs, catalog)
	if err != nil {
		return nil, err
	}
	seq, err := Slots(d, totals.TotalDuration, staffID, step)
	if err != nil {
		return nil, fmt.Errorf("enumerate slots: %w", err)
	}
	out := []civil.LocalTime{}
	for t := range seq {
		out = append(out, t)
	}
	return out, nil
}
