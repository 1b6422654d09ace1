// Package datefmt is the single place where ledger dates are parsed and
// rendered.
//
// Grammar (whitespace around tokens is ignored):
//
//	datetime = date [sep time] | time sep date
//	date     = D "/" M "/" YYYY        1-2 digit day and month, 4 digit year
//	time     = H ":" MM [":" SS]       1-2 digit hour
//	sep      = "," | " " | ", "
//
// Day, month, hour, minute and second must be in calendar range and years
// before MinYear are rejected. Anything else fails with ErrInvalidDate.
// Dates are written as "D/M/YYYY" and datetimes as "D/M/YYYY HH:MM:SS".
package datefmt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// MinYear is the earliest year accepted.
const MinYear = 2000

// ErrInvalidDate is returned for input outside the grammar.
var ErrInvalidDate = errors.New("invalid date")

// Parsed is the result of parsing a date or datetime cell.
type Parsed struct {
	Time    time.Time
	HasTime bool
}

// Parse parses a date or datetime in loc.
func Parse(s string, loc *time.Location) (Parsed, error) {
	if loc == nil {
		loc = time.Local
	}
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})

	var datePart, timePart string
	switch len(fields) {
	case 1:
		datePart = fields[0]
	case 2:
		if strings.Contains(fields[0], "/") {
			datePart, timePart = fields[0], fields[1]
		} else {
			timePart, datePart = fields[0], fields[1]
		}
	default:
		return Parsed{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}

	y, m, d, err := parseDate(datePart)
	if err != nil {
		return Parsed{}, fmt.Errorf("%w: %q", err, s)
	}
	var hh, mm, ss int
	if timePart != "" {
		if hh, mm, ss, err = parseClock(timePart); err != nil {
			return Parsed{}, fmt.Errorf("%w: %q", err, s)
		}
	}
	return Parsed{
		Time:    time.Date(y, time.Month(m), d, hh, mm, ss, 0, loc),
		HasTime: timePart != "",
	}, nil
}

// ParseDate parses a day-granularity date; a time part, if present, is dropped.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	p, err := Parse(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return Day(p.Time), nil
}

// ParseDateTime parses a datetime; a bare date is midnight.
func ParseDateTime(s string, loc *time.Location) (time.Time, error) {
	p, err := Parse(s, loc)
	if err != nil {
		return time.Time{}, err
	}
	return p.Time, nil
}

// FormatDate renders a date as D/M/YYYY.
func FormatDate(t time.Time) string {
	return t.Format("2/1/2006")
}

// FormatDateTime renders a datetime as D/M/YYYY HH:MM:SS.
func FormatDateTime(t time.Time) string {
	return t.Format("2/1/2006 15:04:05")
}

// Day truncates t to midnight in its own location.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// WithDate keeps the clock of t and replaces its calendar date with that of day.
func WithDate(t, day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), t.Second(), 0, t.Location())
}

// ParseMonth parses "YYYY-MM" into the first day of that month.
func ParseMonth(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01", strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: month %q", ErrInvalidDate, s)
	}
	return t, nil
}

func parseDate(s string) (year, month, day int, err error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || len(parts[2]) != 4 {
		return 0, 0, 0, ErrInvalidDate
	}
	if day, err = number(parts[0], 1, 2); err != nil {
		return
	}
	if month, err = number(parts[1], 1, 2); err != nil {
		return
	}
	if year, err = number(parts[2], 4, 4); err != nil {
		return
	}
	if year < MinYear || month < 1 || month > 12 || day < 1 || day > daysIn(year, month) {
		return 0, 0, 0, ErrInvalidDate
	}
	return year, month, day, nil
}

func parseClock(s string) (hh, mm, ss int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, 0, 0, ErrInvalidDate
	}
	if hh, err = number(parts[0], 1, 2); err != nil {
		return
	}
	if mm, err = number(parts[1], 2, 2); err != nil {
		return
	}
	if len(parts) == 3 {
		if ss, err = number(parts[2], 2, 2); err != nil {
			return
		}
	}
	if hh > 23 || mm > 59 || ss > 59 {
		return 0, 0, 0, ErrInvalidDate
	}
	return hh, mm, ss, nil
}

func number(s string, minLen, maxLen int) (int, error) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, ErrInvalidDate
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, ErrInvalidDate
		}
	}
	return strconv.Atoi(s)
}

func daysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
