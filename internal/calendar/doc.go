// Package calendar normalizes date values into DayKeys.
//
// Every due-date comparison in plantcare goes through a Normalizer configured
// with a single reference timezone (calendar.timezone). Date-only strings are
// taken component by component; timestamps are projected into the reference
// zone. No code path formats a localized string to decide which day a value
// falls on.
package calendar
