package model

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/civil"
)

func lt(s string) civil.LocalTime { return civil.MustParseLocalTime(s) }

func TestInterval_Overlaps(t *testing.T) {
	existing := Interval{Start: lt("10:00"), End: lt("14:00")}

	assert.False(t, existing.Overlaps(Interval{Start: lt("08:00"), End: lt("10:00")}), "before, touching")
	assert.False(t, existing.Overlaps(Interval{Start: lt("14:00"), End: lt("16:00")}), "after, touching")
	assert.True(t, existing.Overlaps(Interval{Start: lt("12:00"), End: lt("16:00")}), "starts during")
	assert.True(t, existing.Overlaps(Interval{Start: lt("11:00"), End: lt("13:00")}), "contained")
	assert.True(t, existing.Overlaps(Interval{Start: lt("09:00"), End: lt("15:00")}), "covers")
}

func TestInterval_OverlapsIsSymmetric(t *testing.T) {
	spans := []Interval{
		{Start: lt("09:00"), End: lt("10:00")},
		{Start: lt("09:30"), End: lt("11:00")},
		{Start: lt("10:00"), End: lt("10:30")},
		{Start: lt("11:00"), End: lt("12:00")},
		{Start: lt("08:00"), End: lt("13:00")},
	}
	for _, a := range spans {
		for _, b := range spans {
			assert.Equal(t, a.Overlaps(b), b.Overlaps(a), "%s vs %s", a, b)
		}
		shifted := Interval{Start: a.End, End: a.End + (a.End - a.Start)}
		assert.False(t, a.Overlaps(shifted), "back-to-back %s and %s", a, shifted)
	}
}

func TestParseWorkingHours(t *testing.T) {
	start, end, ok := ParseWorkingHours("10:00-18:30")
	require.True(t, ok)
	assert.Equal(t, lt("10:00"), start)
	assert.Equal(t, lt("18:30"), end)

	_, _, ok = ParseWorkingHours(" 9:00 - 17:00 ")
	assert.True(t, ok)

	for _, bad := range []string{"", "10:00", "10-18", "morning", "10:00-25:00"} {
		_, _, ok := ParseWorkingHours(bad)
		assert.False(t, ok, bad)
	}
}

func TestBreaksRoundTrip(t *testing.T) {
	breaks := []Interval{{Start: lt("12:00"), End: lt("13:00")}, {Start: lt("16:00"), End: lt("16:15")}}
	assert.Equal(t, "12:00-13:00,16:00-16:15", FormatBreaks(breaks))
	assert.Equal(t, breaks, ParseBreaks("12:00-13:00,16:00-16:15"))
	assert.Empty(t, ParseBreaks(""))
	assert.Len(t, ParseBreaks("13:00-12:00,bad,12:00-12:30"), 1)
}

func TestReservation_EffectiveDuration(t *testing.T) {
	tests := []struct {
		name string
		r    Reservation
		want int
	}{
		{name: "line items", r: Reservation{TotalDuration: 30, Items: []ReservationItem{{Duration: 60}, {Duration: 90}}}, want: 150},
		{name: "stored total", r: Reservation{TotalDuration: 45, MenuDuration: 30}, want: 45},
		{name: "primary menu", r: Reservation{MenuDuration: 30}, want: 30},
		{name: "default", r: Reservation{}, want: DefaultReservationDuration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.r.EffectiveDuration())
		})
	}
}

func TestReservation_Interval(t *testing.T) {
	r := Reservation{
		Start:         civil.DateTime{Date: civil.MustParseDate("2025-01-15"), Time: lt("14:00")},
		TotalDuration: 90,
	}
	assert.Equal(t, Interval{Start: lt("14:00"), End: lt("15:30")}, r.Interval())

	jst := time.FixedZone("JST", 9*3600)
	assert.Equal(t, time.Date(2025, 1, 15, 15, 30, 0, 0, jst), r.End(jst))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusConfirmed, StatusCompleted))
	assert.True(t, CanTransition(StatusConfirmed, StatusCancelled))
	assert.True(t, CanTransition(StatusPending, StatusConfirmed))
	assert.False(t, CanTransition(StatusCancelled, StatusConfirmed))
	assert.False(t, CanTransition(StatusCompleted, StatusCancelled))
	assert.False(t, ReservationStatus("deleted").Valid())
}

func TestTenant_CalendarDecoding(t *testing.T) {
	tenant := Tenant{
		BusinessHoursJSON:        `{"1":{"open":"09:00","close":"18:00"},"Saturday":{"open":"10:00","close":"16:00"},"default":{"open":"10:00","close":"19:00"}}`,
		ClosedDaysJSON:           `[0, "3", 9, "x"]`,
		TemporaryClosedDaysJSON:  `["2025-05-05", "not-a-date"]`,
		SpecialBusinessHoursJSON: `{"2025-12-24":{"open":"10:00","close":"15:00"}}`,
	}

	cal := tenant.Calendar(context.Background())
	assert.Equal(t, "09:00", cal.BusinessHours["1"].Open)
	assert.Equal(t, "16:00", cal.BusinessHours["saturday"].Close)
	assert.Len(t, cal.ClosedDays, 2)
	assert.Contains(t, cal.ClosedDays, time.Sunday)
	assert.Contains(t, cal.ClosedDays, time.Wednesday)
	assert.Len(t, cal.TemporaryClosedDays, 1)
	assert.Contains(t, cal.TemporaryClosedDays, civil.MustParseDate("2025-05-05"))
	assert.Equal(t, "15:00", cal.SpecialBusinessHours[civil.MustParseDate("2025-12-24")].Close)
}

func TestTenant_CalendarRecoversFromMalformedJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	ctx := logger.WithContext(context.Background())

	tenant := Tenant{
		ID:                       7,
		BusinessHoursJSON:        `{"1":`,
		ClosedDaysJSON:           `not json`,
		TemporaryClosedDaysJSON:  `{"a":1}`,
		SpecialBusinessHoursJSON: `[`,
	}

	var cal Calendar
	require.NotPanics(t, func() { cal = tenant.Calendar(ctx) })
	assert.Empty(t, cal.BusinessHours)
	assert.Empty(t, cal.ClosedDays)
	assert.Empty(t, cal.TemporaryClosedDays)
	assert.Empty(t, cal.SpecialBusinessHours)
	assert.Contains(t, buf.String(), "malformed business_hours")
	assert.Contains(t, buf.String(), `"tenant_id":7`)
}

func TestTenant_Defaults(t *testing.T) {
	tenant := Tenant{}
	assert.Equal(t, DefaultMaxConcurrentReservations, tenant.MaxConcurrent())
	assert.Equal(t, DefaultTimezone, tenant.Location().String())

	tenant.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, tenant.Location())
}

func TestEncodeCalendar(t *testing.T) {
	open := false
	hours, closed, temp, special, err := EncodeCalendar(
		map[string]DayHours{"default": {Open: "10:00", Close: "19:00"}, "2": {IsOpen: &open}},
		[]int{0},
		nil,
		nil,
	)
	require.NoError(t, err)
	assert.JSONEq(t, `{"default":{"open":"10:00","close":"19:00"},"2":{"open":"","close":"","isOpen":false}}`, hours)
	assert.Equal(t, "[0]", closed)
	assert.Equal(t, "[]", temp)
	assert.Equal(t, "{}", special)
}
