package civil

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLocalTime(t *testing.T) {
	tests := []struct {
		in      string
		want    LocalTime
		wantErr bool
	}{
		{in: "10:00", want: 600},
		{in: "09:30", want: 570},
		{in: "9:30", want: 570},
		{in: "14:30:45", want: 870},
		{in: "00:00", want: Midnight},
		{in: "24:00", want: EndOfDay},
		{in: "24:30", wantErr: true},
		{in: "10:60", wantErr: true},
		{in: "10", wantErr: true},
		{in: "ab:cd", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLocalTime(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLocalTimeFormatting(t *testing.T) {
	assert.Equal(t, "15:30", MustParseLocalTime("14:00").Add(90).String())
	assert.Equal(t, "24:00", EndOfDay.String())
	assert.Equal(t, "19:15", MustParseLocalTime("18:45").Add(30).String())

	raw, err := json.Marshal(MustParseLocalTime("08:05"))
	require.NoError(t, err)
	assert.JSONEq(t, `"08:05"`, string(raw))

	var lt LocalTime
	require.NoError(t, json.Unmarshal([]byte(`"11:15"`), &lt))
	assert.Equal(t, NewLocalTime(11, 15), lt)
}

func TestDateWeekdayAndArithmetic(t *testing.T) {
	d := MustParseDate("2025-01-19")
	assert.Equal(t, time.Sunday, d.Weekday())
	assert.Equal(t, "2025-01-20", d.AddDays(1).String())
	assert.Equal(t, "2024-12-31", MustParseDate("2025-01-01").AddDays(-1).String())
	assert.True(t, d.Before(d.AddDays(1)))
	assert.Equal(t, 7, d.AddDays(7).DaysSince(d))

	_, err := ParseDate("19-01-2025")
	assert.Error(t, err)
}

func TestParseDateTime(t *testing.T) {
	dt, err := ParseDateTime("2025-01-15T14:30:00")
	require.NoError(t, err)
	assert.Equal(t, MustParseDate("2025-01-15"), dt.Date)
	assert.Equal(t, MustParseLocalTime("14:30"), dt.Time)

	dt, err = ParseDateTime("2025-01-15 09:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15T09:00:00", dt.String())

	for _, bad := range []string{"2025-01-15T14:30:00Z", "2025-01-15T14:30:00+09:00", "2025-01-15", "2025-01-15T24:00"} {
		_, err := ParseDateTime(bad)
		assert.Error(t, err, bad)
	}
}

func TestDateTimeConversionKeepsWallClock(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	dt := MustParseDate("2025-03-01")
	local := DateTime{Date: dt, Time: MustParseLocalTime("10:30")}

	instant := local.In(tokyo)
	assert.Equal(t, 1, instant.UTC().Hour())
	assert.Equal(t, local, DateTimeOf(instant))
	assert.Equal(t, DateTimeOf(instant.UTC()).Time, MustParseLocalTime("01:30"))
}

func TestScan(t *testing.T) {
	var d Date
	require.NoError(t, d.Scan("2025-02-03"))
	assert.Equal(t, MustParseDate("2025-02-03"), d)
	require.NoError(t, d.Scan([]byte("2025-02-04T00:00:00Z")))
	assert.Equal(t, MustParseDate("2025-02-04"), d)

	var dt DateTime
	require.NoError(t, dt.Scan("2025-02-03 14:00:00"))
	assert.Equal(t, "2025-02-03T14:00:00", dt.String())
	require.NoError(t, dt.Scan(time.Date(2025, 2, 3, 16, 45, 0, 0, time.UTC)))
	assert.Equal(t, "2025-02-03T16:45:00", dt.String())

	v, err := dt.Value()
	require.NoError(t, err)
	assert.Equal(t, "2025-02-03 16:45:00", v)

	assert.Error(t, dt.Scan(42))
}
