package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(bookingRejected.WithLabelValues("fully_booked"))
	IncBookingRejected("fully_booked")
	IncBookingRejected("fully_booked")
	assert.Equal(t, before+2, testutil.ToFloat64(bookingRejected.WithLabelValues("fully_booked")))

	before = testutil.ToFloat64(reservationCreated.WithLabelValues("api"))
	IncReservationCreated("api")
	assert.Equal(t, before+1, testutil.ToFloat64(reservationCreated.WithLabelValues("api")))

	ObserveSlotQuery(time.Now().Add(-10 * time.Millisecond))
	assert.Equal(t, 1, testutil.CollectAndCount(slotQueryDuration))
}
