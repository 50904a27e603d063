package bind

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// Canonical layouts for the date and time kinds. Values parsed from these
// forms format back to the identical string.
const (
	layoutDate     = "2006-01-02"
	layoutTime     = "15:04:05.999999999"
	layoutTimeHM   = "15:04"
	layoutDateTime = time.RFC3339Nano
	layoutNaive    = "2006-01-02T15:04:05.999999999"
)

func parseDate(s string) (time.Time, bool) {
	if len(s) != len(layoutDate) {
		return time.Time{}, false
	}
	t, err := time.Parse(layoutDate, s)
	return t, err == nil
}

func parseTimeOfDay(s string) (time.Time, bool) {
	if t, err := time.Parse(layoutTime, s); err == nil {
		return t, true
	}
	if len(s) == len(layoutTimeHM) {
		if t, err := time.Parse(layoutTimeHM, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Zone names starting with formZonePrefix record how a datetime was
// written when RFC 3339 output would not reproduce it.
const formZonePrefix = "bind:"

const zoneNaive = "naive"

// parseDateTime accepts RFC 3339 with an offset, or a naive timestamp
// which denotes the same instant as UTC. The written form is kept on the
// value's location so FormatDateTime can reproduce the input.
func parseDateTime(s string) (time.Time, bool) {
	zone := ""
	t, err := time.Parse(layoutDateTime, s)
	if err != nil {
		if t, err = time.Parse(layoutNaive, s); err != nil {
			return time.Time{}, false
		}
		zone = zoneNaive
	} else if strings.HasSuffix(s, "+00:00") || strings.HasSuffix(s, "-00:00") {
		zone = s[len(s)-len("+00:00"):]
	}

	digits := fracDigits(s)
	trailingZero := digits > 0 && s[strings.IndexAny(s, ".,")+digits] == '0'
	if zone == "" && !trailingZero {
		return t, true
	}

	_, offset := t.Zone()
	name := formZonePrefix + zone + ":" + strconv.Itoa(digits)
	return t.In(time.FixedZone(name, offset)), true
}

// fracDigits counts the fractional second digits of a datetime string,
// capped at nanosecond precision.
func fracDigits(s string) int {
	i := strings.IndexAny(s, ".,")
	if i < 0 {
		return 0
	}
	n := 0
	for _, c := range s[i+1:] {
		if c < '0' || c > '9' {
			break
		}
		n++
	}
	return min(n, 9)
}

// FormatDate renders t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(layoutDate) }

// FormatTime renders the time of day of t as HH:MM:SS with any fractional
// seconds, trailing zeros trimmed.
func FormatTime(t time.Time) string { return t.Format(layoutTime) }

// FormatDateTime renders t as RFC 3339 with nanosecond precision, trailing
// zeros trimmed. A value parsed by the binder formats back to the string
// it was read from, including naive timestamps and "+00:00" offsets.
func FormatDateTime(t time.Time) string {
	name, _ := t.Zone()
	form, ok := strings.CutPrefix(name, formZonePrefix)
	i := strings.LastIndexByte(form, ':')
	if !ok || i < 0 {
		return t.Format(layoutDateTime)
	}
	zone := form[:i]
	digits, _ := strconv.Atoi(form[i+1:])

	layout := "2006-01-02T15:04:05"
	if digits > 0 {
		layout += "." + strings.Repeat("0", digits)
	}
	switch zone {
	case zoneNaive:
		return t.Format(layout)
	case "":
		return t.Format(layout + "Z07:00")
	default:
		return t.Format(layout) + zone
	}
}

// ParseDuration parses an ISO-8601 duration. Weeks and days are fixed at
// 7 and 24 hours; years and months are rejected because their length
// depends on the calendar. Only the seconds component may be fractional.
//
//	P1DT2H30M  PT0.5S  -PT15M  P2W
func ParseDuration(s string) (time.Duration, bool) {
	if s == "" {
		return 0, false
	}

	neg := false
	switch s[0] {
	case '-':
		neg = true
		s = s[1:]
	case '+':
		s = s[1:]
	}
	if len(s) < 2 || s[0] != 'P' {
		return 0, false
	}

	datePart, timePart, hasT := strings.Cut(s[1:], "T")
	if hasT && timePart == "" {
		return 0, false
	}

	var sc durationScanner
	if !sc.scan(datePart, dateUnits) {
		return 0, false
	}
	if hasT && !sc.scan(timePart, timeUnits) {
		return 0, false
	}
	if sc.components == 0 {
		return 0, false
	}

	if neg {
		return -sc.total, true
	}
	return sc.total, true
}

type durationUnit struct {
	symbol byte
	size   time.Duration
}

var (
	dateUnits = []durationUnit{{'W', 7 * 24 * time.Hour}, {'D', 24 * time.Hour}}
	timeUnits = []durationUnit{{'H', time.Hour}, {'M', time.Minute}, {'S', time.Second}}
)

type durationScanner struct {
	total      time.Duration
	components int
}

// scan reads "<number><unit>" pairs whose units appear in the given order.
// Only seconds may carry a fraction.
func (sc *durationScanner) scan(s string, units []durationUnit) bool {
	next := 0
	for s != "" {
		i := 0
		for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
			i++
		}
		if i == 0 || i == len(s) {
			return false
		}
		num, symbol := s[:i], s[i]
		s = s[i+1:]

		u := -1
		for j := next; j < len(units); j++ {
			if units[j].symbol == symbol {
				u = j
				break
			}
		}
		if u < 0 {
			return false
		}
		next = u + 1

		whole, frac, hasFrac := strings.Cut(num, ".")
		if hasFrac && (symbol != 'S' || frac == "" || len(frac) > 9 || strings.Contains(frac, ".")) {
			return false
		}
		n, err := strconv.ParseInt(whole, 10, 64)
		if err != nil || n > math.MaxInt64/int64(units[u].size) {
			return false
		}
		d := time.Duration(n) * units[u].size
		if hasFrac {
			nanos, err := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
			if err != nil {
				return false
			}
			d += time.Duration(nanos)
		}
		if sc.total > math.MaxInt64-d {
			return false
		}
		sc.total += d
		sc.components++
	}
	return true
}

// FormatDuration renders d in canonical ISO-8601 form: whole days, then a
// time part with hours, minutes and seconds, each omitted when zero.
// Zero renders as PT0S.
func FormatDuration(d time.Duration) string {
	if d == 0 {
		return "PT0S"
	}

	var b strings.Builder
	if d < 0 {
		b.WriteByte('-')
		d = -d
	}
	b.WriteByte('P')

	day := 24 * time.Hour
	if days := d / day; days > 0 {
		b.WriteString(strconv.FormatInt(int64(days), 10))
		b.WriteByte('D')
		d -= days * day
	}
	if d == 0 {
		return b.String()
	}

	b.WriteByte('T')
	if h := d / time.Hour; h > 0 {
		b.WriteString(strconv.FormatInt(int64(h), 10))
		b.WriteByte('H')
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 {
		b.WriteString(strconv.FormatInt(int64(m), 10))
		b.WriteByte('M')
		d -= m * time.Minute
	}
	if d > 0 {
		sec := d / time.Second
		frac := d % time.Second
		b.WriteString(strconv.FormatInt(int64(sec), 10))
		if frac > 0 {
			f := strconv.FormatInt(int64(frac)+int64(time.Second), 10)[1:]
			b.WriteByte('.')
			b.WriteString(strings.TrimRight(f, "0"))
		}
		b.WriteByte('S')
	}
	return b.String()
}
