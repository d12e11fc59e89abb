package agenda

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyp0633/libagenda/recurrence"
)

// Window is an inclusive range of local time a calendar view displays
type Window struct {
	Start recurrence.LocalDateTime
	End   recurrence.LocalDateTime
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t recurrence.LocalDateTime) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]", w.Start, w.End)
}

// View is a calendar granularity
type View string

const (
	ViewDay   View = "day"
	ViewWeek  View = "week"
	ViewMonth View = "month"
	ViewYear  View = "year"
)

// ParseView accepts "day", "week", "month" or "year"
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewDay, ViewWeek, ViewMonth, ViewYear:
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown view %q", ErrInvalidInput, s)
}

// WindowFor returns the window of view containing date
func WindowFor(view View, date recurrence.LocalDateTime) Window {
	switch view {
	case ViewWeek:
		return WeekWindow(date)
	case ViewMonth:
		return MonthWindow(date)
	case ViewYear:
		return YearWindow(date)
	default:
		return DayWindow(date)
	}
}

// DayWindow covers the date of d
func DayWindow(d recurrence.LocalDateTime) Window {
	return Window{Start: d.StartOfDay(), End: d.EndOfDay()}
}

// WeekWindow covers the Sunday-to-Saturday week containing d
func WeekWindow(d recurrence.LocalDateTime) Window {
	start := d.StartOfDay().AddDate(0, 0, -int(d.Weekday()))
	return Window{Start: start, End: start.AddDate(0, 0, 6).EndOfDay()}
}

// MonthWindow covers the calendar month containing d
func MonthWindow(d recurrence.LocalDateTime) Window {
	start := recurrence.LocalDate(d.Year(), d.Month(), 1)
	return Window{Start: start, End: start.AddDate(0, 1, -1).EndOfDay()}
}

// YearWindow covers the calendar year containing d
func YearWindow(d recurrence.LocalDateTime) Window {
	return Window{
		Start: recurrence.LocalDate(d.Year(), time.January, 1),
		End:   recurrence.NewLocalDateTime(d.Year(), time.December, 31, 23, 59, 59),
	}
}
