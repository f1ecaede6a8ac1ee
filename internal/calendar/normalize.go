package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidDate is matched (errors.Is) by every *InvalidDateError.
var ErrInvalidDate = errors.New("invalid date")

// InvalidDateError reports a value that cannot be read as a calendar date.
type InvalidDateError struct {
	Input string
	Err   error
}

func (e *InvalidDateError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid date %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("invalid date %q", e.Input)
}

func (e *InvalidDateError) Unwrap() error { return e.Err }

func (e *InvalidDateError) Is(target error) bool { return target == ErrInvalidDate }

// Timestamp layouts accepted by Normalize, tried in order.
// Layouts without an offset are read as wall-clock time in the reference zone.
var (
	offsetLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05.999999999Z07:00",
		"2006-01-02 15:04:05.999999999 -0700 MST",
	}
	wallLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
	}
)

// Normalizer turns date values into DayKeys in one fixed reference timezone.
//
// It is a small value type; copies share nothing mutable and are safe for
// concurrent use.
type Normalizer struct {
	loc *time.Location
}

// New returns a Normalizer for loc. A nil loc means UTC.
func New(loc *time.Location) Normalizer {
	if loc == nil {
		loc = time.UTC
	}
	return Normalizer{loc: loc}
}

// LoadNormalizer resolves an IANA zone name ("" means UTC).
func LoadNormalizer(tz string) (Normalizer, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return New(time.UTC), nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Normalizer{}, fmt.Errorf("calendar: load timezone %q: %w", tz, err)
	}
	return New(loc), nil
}

// Location returns the reference timezone.
func (n Normalizer) Location() *time.Location {
	if n.loc == nil {
		return time.UTC
	}
	return n.loc
}

// Normalize converts v into a DayKey.
//
// Supported inputs: DayKey, *DayKey, time.Time, *time.Time and string.
// Date-only strings (YYYY-MM-DD) keep their components as written.
// Timestamps are converted into the reference timezone first.
func (n Normalizer) Normalize(v any) (DayKey, error) {
	switch x := v.(type) {
	case DayKey:
		if x.IsZero() {
			return DayKey{}, &InvalidDateError{Input: "", Err: errors.New("zero day")}
		}
		return x, nil
	case *DayKey:
		if x == nil {
			return DayKey{}, &InvalidDateError{Input: "<nil>"}
		}
		return n.Normalize(*x)
	case time.Time:
		if x.IsZero() {
			return DayKey{}, &InvalidDateError{Input: "", Err: errors.New("zero time")}
		}
		return n.FromTime(x), nil
	case *time.Time:
		if x == nil {
			return DayKey{}, &InvalidDateError{Input: "<nil>"}
		}
		return n.Normalize(*x)
	case string:
		return n.ParseString(x)
	case nil:
		return DayKey{}, &InvalidDateError{Input: "<nil>"}
	default:
		return DayKey{}, &InvalidDateError{Input: fmt.Sprint(v), Err: fmt.Errorf("unsupported type %T", v)}
	}
}

// FromTime extracts the calendar day of t as seen in the reference timezone.
func (n Normalizer) FromTime(t time.Time) DayKey {
	y, m, d := t.In(n.Location()).Date()
	return DayKey{Year: y, Month: m, Day: d}
}

// ParseString reads a date-only or timestamp string.
func (n Normalizer) ParseString(s string) (DayKey, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DayKey{}, &InvalidDateError{Input: s, Err: errors.New("empty")}
	}
	if isDateOnly(s) {
		return ParseDay(s)
	}
	t, ok := n.parseTimestamp(s)
	if !ok {
		return DayKey{}, &InvalidDateError{Input: s, Err: errors.New("unrecognized format")}
	}
	return n.FromTime(t), nil
}

// ParseTime reads s as an instant. Date-only strings resolve to midnight in the
// reference timezone.
func (n Normalizer) ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if isDateOnly(s) {
		k, err := ParseDay(s)
		if err != nil {
			return time.Time{}, err
		}
		return k.Time(n.Location()), nil
	}
	t, ok := n.parseTimestamp(s)
	if !ok {
		return time.Time{}, &InvalidDateError{Input: s, Err: errors.New("unrecognized format")}
	}
	return t, nil
}

// Today returns the current day in the reference timezone.
func (n Normalizer) Today(now func() time.Time) DayKey {
	if now == nil {
		now = time.Now
	}
	return n.FromTime(now())
}

func (n Normalizer) parseTimestamp(s string) (time.Time, bool) {
	for _, layout := range offsetLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	for _, layout := range wallLayouts {
		if t, err := time.ParseInLocation(layout, s, n.Location()); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseDay parses a strict YYYY-MM-DD string by components. It never goes
// through an instant, so no timezone can shift the result.
func ParseDay(s string) (DayKey, error) {
	s = strings.TrimSpace(s)
	if !isDateOnly(s) {
		return DayKey{}, &InvalidDateError{Input: s, Err: errors.New("want YYYY-MM-DD")}
	}
	y, _ := strconv.Atoi(s[0:4])
	m, _ := strconv.Atoi(s[5:7])
	d, _ := strconv.Atoi(s[8:10])
	if m < 1 || m > 12 || d < 1 || d > daysIn(time.Month(m), y) {
		return DayKey{}, &InvalidDateError{Input: s, Err: errors.New("day out of range")}
	}
	return DayKey{Year: y, Month: time.Month(m), Day: d}, nil
}

// IsDateOnly reports whether s is written as a bare YYYY-MM-DD.
func IsDateOnly(s string) bool { return isDateOnly(strings.TrimSpace(s)) }

func isDateOnly(s string) bool {
	if len(s) != 10 || s[4] != '-' || s[7] != '-' {
		return false
	}
	for i := 0; i < len(s); i++ {
		if i == 4 || i == 7 {
			continue
		}
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func daysIn(m time.Month, year int) int {
	return time.Date(year, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
