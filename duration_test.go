package bind_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/bind"
)

func TestParseDuration(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input  string
		expect time.Duration
		ok     bool
	}{
		"hours and minutes":  {input: "PT1H30M", expect: 90 * time.Minute, ok: true},
		"days and time":      {input: "P1DT2H", expect: 26 * time.Hour, ok: true},
		"weeks":              {input: "P2W", expect: 14 * 24 * time.Hour, ok: true},
		"fractional seconds": {input: "PT0.5S", expect: 500 * time.Millisecond, ok: true},
		"nanoseconds":        {input: "PT0.000000001S", expect: time.Nanosecond, ok: true},
		"negative":           {input: "-PT15M", expect: -15 * time.Minute, ok: true},
		"explicit plus":      {input: "+PT1S", expect: time.Second, ok: true},
		"zero":               {input: "PT0S", expect: 0, ok: true},
		"empty":              {input: "", ok: false},
		"bare P":             {input: "P", ok: false},
		"bare PT":            {input: "PT", ok: false},
		"dangling T":         {input: "P1DT", ok: false},
		"months":             {input: "P1M", ok: false},
		"years":              {input: "P1Y", ok: false},
		"units out of order": {input: "PT1M1H", ok: false},
		"repeated unit":      {input: "PT1H1H", ok: false},
		"fractional minutes": {input: "PT1.5M", ok: false},
		"missing number":     {input: "PTH", ok: false},
		"missing unit":       {input: "PT5", ok: false},
		"go syntax":          {input: "1h", ok: false},
		"overflow":           {input: "PT9999999999999H", ok: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			got, ok := bind.ParseDuration(tc.input)
			require.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.expect, got)
		})
	}
}

func TestFormatDuration(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		input  time.Duration
		expect string
	}{
		"zero":          {input: 0, expect: "PT0S"},
		"seconds":       {input: 45 * time.Second, expect: "PT45S"},
		"hours minutes": {input: 90 * time.Minute, expect: "PT1H30M"},
		"whole days":    {input: 48 * time.Hour, expect: "P2D"},
		"day and time":  {input: 26*time.Hour + 5*time.Second, expect: "P1DT2H5S"},
		"fraction":      {input: 1500 * time.Millisecond, expect: "PT1.5S"},
		"negative":      {input: -15 * time.Minute, expect: "-PT15M"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.expect, bind.FormatDuration(tc.input))
		})
	}
}

func TestDuration_round_trip(t *testing.T) {
	t.Parallel()

	for _, d := range []time.Duration{
		0,
		time.Nanosecond,
		time.Second,
		59*time.Minute + 59*time.Second + 999*time.Millisecond,
		7*24*time.Hour + 3*time.Hour,
		-36 * time.Hour,
	} {
		got, ok := bind.ParseDuration(bind.FormatDuration(d))
		require.True(t, ok, d.String())
		assert.Equal(t, d, got)
	}
}

func TestFormatDateTime_round_trip(t *testing.T) {
	t.Parallel()

	for _, s := range []string{
		"2024-01-15T10:30:00Z",
		"2024-01-15T10:30:00.5Z",
		"2024-01-15T10:30:00+02:00",
		"2024-01-15T10:30:00",
		"2024-01-15T10:30:00.25",
		"2024-01-15T10:30:00+00:00",
		"2024-01-15T10:30:00-00:00",
		"2024-01-15T10:30:00.120Z",
		"2024-01-15T10:30:00.500+05:30",
		"2024-01-15T10:30:00.000000000Z",
	} {
		v, msg := bind.CoerceText(bind.DateTime(), s)
		require.Empty(t, msg)
		assert.Equal(t, s, bind.FormatDateTime(v.(time.Time)))
	}

	naive, msg := bind.CoerceText(bind.DateTime(), "2024-01-15T10:30:00")
	require.Empty(t, msg)
	assert.True(t, time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC).Equal(naive.(time.Time)))

	d, msg := bind.CoerceText(bind.Date(), "2024-02-29")
	require.Empty(t, msg)
	assert.Equal(t, "2024-02-29", bind.FormatDate(d.(time.Time)))

	tm, msg := bind.CoerceText(bind.Time(), "08:15:30")
	require.Empty(t, msg)
	assert.Equal(t, "08:15:30", bind.FormatTime(tm.(time.Time)))
}
