package model

import (
	"context"
	"encoding/json"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/rs/zerolog"

	"salonbook/internal/civil"
)

// DefaultMaxConcurrentReservations caps overlapping staff-less bookings when a tenant sets nothing.
const DefaultMaxConcurrentReservations = 3

// DefaultTimezone is used for tenants without an explicit zone.
const DefaultTimezone = "Asia/Tokyo"

// Tenant is a salon. Calendar settings are kept as the raw JSON text stored
// for the tenant and decoded leniently by Calendar.
type Tenant struct {
	ID                        int64     `json:"id"`
	Code                      string    `json:"code"`
	Name                      string    `json:"name"`
	Timezone                  string    `json:"timezone"`
	MaxConcurrentReservations int       `json:"max_concurrent_reservations"`
	BusinessHoursJSON         string    `json:"-"`
	ClosedDaysJSON            string    `json:"-"`
	TemporaryClosedDaysJSON   string    `json:"-"`
	SpecialBusinessHoursJSON  string    `json:"-"`
	IsActive                  bool      `json:"is_active"`
	CreatedAt                 time.Time `json:"created_at"`
	UpdatedAt                 time.Time `json:"updated_at"`
}

// MaxConcurrent returns the tenant cap with the default applied.
func (t *Tenant) MaxConcurrent() int {
	if t.MaxConcurrentReservations <= 0 {
		return DefaultMaxConcurrentReservations
	}
	return t.MaxConcurrentReservations
}

// Location resolves the tenant time zone, falling back to DefaultTimezone and then UTC.
func (t *Tenant) Location() *time.Location {
	name := t.Timezone
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DayHours is one business-hours entry. IsOpen nil means open.
type DayHours struct {
	Open   string `json:"open"`
	Close  string `json:"close"`
	IsOpen *bool  `json:"isOpen,omitempty"`
}

// Closed reports whether the entry explicitly marks the day as not operating.
func (h DayHours) Closed() bool {
	return h.IsOpen != nil && !*h.IsOpen
}

// Calendar is the decoded form of a tenant's calendar settings.
type Calendar struct {
	// BusinessHours keys: "0".."6" (Sunday first), weekday names ("sunday"), or "default".
	BusinessHours        map[string]DayHours
	ClosedDays           map[time.Weekday]struct{}
	TemporaryClosedDays  map[civil.Date]struct{}
	SpecialBusinessHours map[civil.Date]DayHours
}

// Calendar decodes the stored JSON settings. Malformed values are logged and
// treated as absent so a partially migrated tenant keeps working.
func (t *Tenant) Calendar(ctx context.Context) Calendar {
	l := zerolog.Ctx(ctx).With().Int64("tenant_id", t.ID).Logger()
	return Calendar{
		BusinessHours:        decodeBusinessHours(&l, t.BusinessHoursJSON),
		ClosedDays:           decodeClosedDays(&l, t.ClosedDaysJSON),
		TemporaryClosedDays:  decodeDateSet(&l, t.TemporaryClosedDaysJSON),
		SpecialBusinessHours: decodeSpecialHours(&l, t.SpecialBusinessHoursJSON),
	}
}

func decodeBusinessHours(l *zerolog.Logger, raw string) map[string]DayHours {
	out := make(map[string]DayHours)
	if strings.TrimSpace(raw) == "" {
		return out
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		l.Warn().Err(err).Msg("ignoring malformed business_hours")
		return make(map[string]DayHours)
	}
	normalized := make(map[string]DayHours, len(out))
	for k, v := range out {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return normalized
}

func decodeClosedDays(l *zerolog.Logger, raw string) map[time.Weekday]struct{} {
	out := make(map[time.Weekday]struct{})
	if strings.TrimSpace(raw) == "" {
		return out
	}
	var values []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		l.Warn().Err(err).Msg("ignoring malformed closed_days")
		return out
	}
	for _, v := range values {
		day, ok := weekdayFromJSON(v)
		if !ok {
			l.Warn().RawJSON("value", v).Msg("skipping invalid closed_days entry")
			continue
		}
		out[day] = struct{}{}
	}
	return out
}

// weekdayFromJSON accepts 3 or "3".
func weekdayFromJSON(v json.RawMessage) (time.Weekday, bool) {
	var n int
	if err := json.Unmarshal(v, &n); err != nil {
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return 0, false
		}
		parsed, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return 0, false
		}
		n = parsed
	}
	if n < 0 || n > 6 {
		return 0, false
	}
	return time.Weekday(n), true
}

func decodeDateSet(l *zerolog.Logger, raw string) map[civil.Date]struct{} {
	out := make(map[civil.Date]struct{})
	if strings.TrimSpace(raw) == "" {
		return out
	}
	var values []string
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		l.Warn().Err(err).Msg("ignoring malformed temporary_closed_days")
		return out
	}
	for _, v := range values {
		d, err := civil.ParseDate(v)
		if err != nil {
			l.Warn().Str("value", v).Msg("skipping invalid temporary_closed_days entry")
			continue
		}
		out[d] = struct{}{}
	}
	return out
}

func decodeSpecialHours(l *zerolog.Logger, raw string) map[civil.Date]DayHours {
	out := make(map[civil.Date]DayHours)
	if strings.TrimSpace(raw) == "" {
		return out
	}
	var values map[string]DayHours
	if err := json.Unmarshal([]byte(raw), &values); err != nil {
		l.Warn().Err(err).Msg("ignoring malformed special_business_hours")
		return out
	}
	for k, v := range values {
		d, err := civil.ParseDate(k)
		if err != nil {
			l.Warn().Str("value", k).Msg("skipping invalid special_business_hours key")
			continue
		}
		out[d] = v
	}
	return out
}

// EncodeCalendar renders calendar settings back to the JSON text stored for a tenant.
func EncodeCalendar(hours map[string]DayHours, closedDays []int, temporary []string, special map[string]DayHours) (hoursJSON, closedJSON, tempJSON, specialJSON string, err error) {
	if hours == nil {
		hours = map[string]DayHours{}
	}
	if closedDays == nil {
		closedDays = []int{}
	}
	if temporary == nil {
		temporary = []string{}
	}
	if special == nil {
		special = map[string]DayHours{}
	}
	var b []byte
	if b, err = json.Marshal(hours); err != nil {
		return
	}
	hoursJSON = string(b)
	if b, err = json.Marshal(closedDays); err != nil {
		return
	}
	closedJSON = string(b)
	if b, err = json.Marshal(temporary); err != nil {
		return
	}
	tempJSON = string(b)
	if b, err = json.Marshal(special); err != nil {
		return
	}
	specialJSON = string(b)
	return
}
