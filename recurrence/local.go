package recurrence

import (
	"fmt"
	"time"
)

const (
	localLayout     = "20060102T150405"
	localDateLayout = "20060102"
)

// LocalDateTime is a wall-clock date and time with no zone attached.
// Services happen at a fixed local hour wherever the data is read, so
// stored rules never carry zone information and are never converted.
//
// Internally the value is kept on a UTC carrier; the zero value is "unset".
type LocalDateTime struct {
	t time.Time
}

// NewLocalDateTime builds a local date-time from its fields. Out-of-range
// values are normalized the way time.Date does.
func NewLocalDateTime(year int, month time.Month, day, hour, min, sec int) LocalDateTime {
	return LocalDateTime{t: time.Date(year, month, day, hour, min, sec, 0, time.UTC)}
}

// LocalDate returns midnight of the given date
func LocalDate(year int, month time.Month, day int) LocalDateTime {
	return NewLocalDateTime(year, month, day, 0, 0, 0)
}

// LocalOf reads the wall clock of t in its own location
func LocalOf(t time.Time) LocalDateTime {
	if t.IsZero() {
		return LocalDateTime{}
	}
	return NewLocalDateTime(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second())
}

// ParseLocal parses "20060102T150405", "20060102", "2006-01-02T15:04[:05]" or
// "2006-01-02". A trailing "Z" is ignored: the digits are read as wall clock.
func ParseLocal(s string) (LocalDateTime, error) {
	if n := len(s); n > 0 && (s[n-1] == 'Z' || s[n-1] == 'z') {
		s = s[:n-1]
	}
	for _, layout := range []string{localLayout, localDateLayout, "2006-01-02T15:04:05", "2006-01-02T15:04", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return LocalDateTime{t: t}, nil
		}
	}
	return LocalDateTime{}, fmt.Errorf("invalid local date-time %q", s)
}

// ParseLocalUntil parses an inclusive upper bound. A bare date covers the
// whole day; an explicit time is kept as given.
func ParseLocalUntil(s string) (LocalDateTime, error) {
	l, err := ParseLocal(s)
	if err != nil {
		return l, err
	}
	for _, layout := range []string{localDateLayout, "2006-01-02"} {
		if _, err := time.Parse(layout, s); err == nil {
			return l.EndOfDay(), nil
		}
	}
	return l, nil
}

// In places the wall clock into loc
func (l LocalDateTime) In(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), 0, loc)
}

// Carrier returns the UTC carrier time; only the wall fields are meaningful
func (l LocalDateTime) Carrier() time.Time { return l.t }

func (l LocalDateTime) IsZero() bool { return l.t.IsZero() }

func (l LocalDateTime) Year() int             { return l.t.Year() }
func (l LocalDateTime) Month() time.Month     { return l.t.Month() }
func (l LocalDateTime) Day() int              { return l.t.Day() }
func (l LocalDateTime) Hour() int             { return l.t.Hour() }
func (l LocalDateTime) Minute() int           { return l.t.Minute() }
func (l LocalDateTime) Second() int           { return l.t.Second() }
func (l LocalDateTime) Weekday() time.Weekday { return l.t.Weekday() }

func (l LocalDateTime) Before(o LocalDateTime) bool { return l.t.Before(o.t) }
func (l LocalDateTime) After(o LocalDateTime) bool  { return l.t.After(o.t) }
func (l LocalDateTime) Equal(o LocalDateTime) bool  { return l.t.Equal(o.t) }
func (l LocalDateTime) Compare(o LocalDateTime) int { return l.t.Compare(o.t) }

// Sub returns the wall-clock duration l-o
func (l LocalDateTime) Sub(o LocalDateTime) time.Duration { return l.t.Sub(o.t) }

func (l LocalDateTime) Add(d time.Duration) LocalDateTime { return LocalDateTime{t: l.t.Add(d)} }

func (l LocalDateTime) AddDate(years, months, days int) LocalDateTime {
	return LocalDateTime{t: l.t.AddDate(years, months, days)}
}

// StartOfDay returns 00:00:00 of the same date
func (l LocalDateTime) StartOfDay() LocalDateTime {
	return LocalDate(l.Year(), l.Month(), l.Day())
}

// EndOfDay returns 23:59:59 of the same date
func (l LocalDateTime) EndOfDay() LocalDateTime {
	return NewLocalDateTime(l.Year(), l.Month(), l.Day(), 23, 59, 59)
}

// Clock returns the time of day
func (l LocalDateTime) Clock() TimeOfDay {
	return TimeOfDay{Hour: l.Hour(), Minute: l.Minute()}
}

// Format formats the wall clock with a time layout; zone verbs print UTC
func (l LocalDateTime) Format(layout string) string { return l.t.Format(layout) }

// String renders the transport form, e.g. 20250318T190000
func (l LocalDateTime) String() string {
	if l.IsZero() {
		return ""
	}
	return l.t.Format(localLayout)
}
