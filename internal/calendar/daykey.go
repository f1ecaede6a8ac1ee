package calendar

import (
	"fmt"
	"time"
)

// DayKey identifies one calendar day in the reference timezone.
//
// Two keys are equal when their components are equal; compare with ==.
// The zero value is not a valid day.
type DayKey struct {
	Year  int
	Month time.Month
	Day   int
}

// Date builds a key from explicit components. Out-of-range components are
// normalized the way time.Date does (e.g. April 31 becomes May 1).
func Date(year int, month time.Month, day int) DayKey {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return DayKey{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (k DayKey) IsZero() bool { return k == DayKey{} }

// String renders the key as YYYY-MM-DD.
func (k DayKey) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", k.Year, int(k.Month), k.Day)
}

// AddDays returns the key n calendar days later (earlier when n < 0).
//
// The arithmetic runs on a UTC midnight so DST transitions in the
// reference zone can never skip or repeat a day.
func (k DayKey) AddDays(n int) DayKey {
	return Date(k.Year, k.Month, k.Day+n)
}

// Before reports whether k is strictly earlier than o.
func (k DayKey) Before(o DayKey) bool { return k.Compare(o) < 0 }

// After reports whether k is strictly later than o.
func (k DayKey) After(o DayKey) bool { return k.Compare(o) > 0 }

// Compare returns -1, 0 or +1.
func (k DayKey) Compare(o DayKey) int {
	switch {
	case k.Year != o.Year:
		return cmpInt(k.Year, o.Year)
	case k.Month != o.Month:
		return cmpInt(int(k.Month), int(o.Month))
	default:
		return cmpInt(k.Day, o.Day)
	}
}

// Time returns midnight of the day in loc (UTC when loc is nil).
func (k DayKey) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return time.Date(k.Year, k.Month, k.Day, 0, 0, 0, 0, loc)
}

// MarshalText encodes the key as YYYY-MM-DD so it can be used in JSON bodies and map keys.
func (k DayKey) MarshalText() ([]byte, error) {
	if k.IsZero() {
		return []byte{}, nil
	}
	return []byte(k.String()), nil
}

func (k *DayKey) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = DayKey{}
		return nil
	}
	v, err := ParseDay(string(b))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
