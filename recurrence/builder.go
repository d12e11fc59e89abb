package recurrence

import (
	"slices"
	"time"

	"github.com/samber/mo"
)

// Selection is the set of discrete choices a schedule form offers. It is a
// plain value: every mutator returns a modified copy, so any number of forms
// can build rules independently.
type Selection struct {
	Date      LocalDateTime // only the date part is used
	StartTime TimeOfDay
	EndTime   mo.Option[TimeOfDay]
	AllDay    bool

	Recurring   bool
	Frequency   Frequency
	Interval    int
	Weekdays    []time.Weekday
	MonthlyMode MonthlyMode // ByMonthDay or ByWeekdayPosition

	EndKind   BoundKind
	Count     int
	UntilDate LocalDateTime // only the date part is used
}

// DefaultStartTime is the start time preselected by new forms
var DefaultStartTime = TimeOfDay{Hour: 19}

// NewSelection returns the initial form state for date
func NewSelection(date LocalDateTime) Selection {
	return Selection{
		Date:        date.StartOfDay(),
		StartTime:   DefaultStartTime,
		EndTime:     mo.None[TimeOfDay](),
		Frequency:   Weekly,
		Interval:    1,
		MonthlyMode: ByMonthDay,
		EndKind:     Unbounded,
		Count:       10,
	}
}

// SelectionFromRule reconstructs form state from a stored rule, for editing
func SelectionFromRule(r Rule, endTime mo.Option[TimeOfDay]) Selection {
	s := NewSelection(r.Anchor)
	s.StartTime = r.Anchor.Clock()
	s.EndTime = endTime
	s.AllDay = r.Anchor.Equal(r.Anchor.StartOfDay()) && endTime.IsAbsent()
	s.Recurring = !r.IsSingle()
	if !s.Recurring {
		return s
	}

	s.Frequency = r.Frequency
	s.Interval = max(1, r.Interval)
	s.Weekdays = slices.Clone(r.ByWeekday)
	if r.MonthlyMode == ByWeekdayPosition {
		s.MonthlyMode = ByWeekdayPosition
	}
	s.EndKind = r.Bound.Kind
	switch r.Bound.Kind {
	case Count:
		s.Count = r.Bound.Count
	case Until:
		s.UntilDate = r.Bound.Until.StartOfDay()
	}
	return s
}

// Anchor returns the first occurrence implied by the selection
func (s Selection) Anchor() LocalDateTime {
	if s.AllDay {
		return s.Date.StartOfDay()
	}
	return s.StartTime.On(s.Date)
}

// EndTimeOfDay returns the end-time marker to store next to the rule
func (s Selection) EndTimeOfDay() mo.Option[TimeOfDay] {
	if s.AllDay {
		return mo.None[TimeOfDay]()
	}
	return s.EndTime
}

// WithAllDay toggles all-day mode. Turning it on forces 00:00 and clears the end time.
func (s Selection) WithAllDay(on bool) Selection {
	s.AllDay = on
	if on {
		s.StartTime = TimeOfDay{}
		s.EndTime = mo.None[TimeOfDay]()
	}
	return s
}

// WithDate changes the anchor date. Monthly weekday positions follow the new date.
func (s Selection) WithDate(d LocalDateTime) Selection {
	s.Date = d.StartOfDay()
	return s
}

// WithStartTime sets the start time; ignored in all-day mode
func (s Selection) WithStartTime(t TimeOfDay) Selection {
	if !s.AllDay {
		s.StartTime = t
	}
	return s
}

// WithEndTime sets or clears the end time; ignored in all-day mode
func (s Selection) WithEndTime(t mo.Option[TimeOfDay]) Selection {
	if !s.AllDay {
		s.EndTime = t
	}
	return s
}

func (s Selection) WithRecurring(on bool) Selection {
	s.Recurring = on
	return s
}

func (s Selection) WithFrequency(f Frequency) Selection {
	s.Recurring = true
	s.Frequency = f
	return s
}

func (s Selection) WithInterval(n int) Selection {
	s.Interval = max(1, n)
	return s
}

// ToggleWeekday adds or removes d from the weekly day set
func (s Selection) ToggleWeekday(d time.Weekday) Selection {
	days := slices.Clone(s.Weekdays)
	if i := slices.Index(days, d); i >= 0 {
		days = slices.Delete(days, i, i+1)
	} else {
		days = append(days, d)
	}
	s.Weekdays = sortWeekdays(days)
	return s
}

func (s Selection) WithMonthlyMode(m MonthlyMode) Selection {
	s.MonthlyMode = m
	return s
}

// WithCount ends the recurrence after n occurrences
func (s Selection) WithCount(n int) Selection {
	s.EndKind = Count
	s.Count = max(1, n)
	return s
}

// WithUntil ends the recurrence at the end of date d
func (s Selection) WithUntil(d LocalDateTime) Selection {
	s.EndKind = Until
	s.UntilDate = d.StartOfDay()
	return s
}

// WithoutEnd makes the recurrence unbounded
func (s Selection) WithoutEnd() Selection {
	s.EndKind = Unbounded
	return s
}

// Build composes the rule. A non-recurring selection always yields a
// COUNT=1 rule anchored at the selected date and time.
func (s Selection) Build() Rule {
	anchor := s.Anchor()
	if !s.Recurring {
		return Single(anchor)
	}

	rule := Rule{
		Frequency: s.Frequency,
		Interval:  max(1, s.Interval),
		Anchor:    anchor,
		Bound:     NoBound(),
	}

	switch s.Frequency {
	case Weekly:
		if len(s.Weekdays) > 0 {
			rule.ByWeekday = slices.Compact(sortWeekdays(slices.Clone(s.Weekdays)))
		}
	case Monthly:
		if s.MonthlyMode == ByWeekdayPosition {
			rule.MonthlyMode = ByWeekdayPosition
			rule.Position = PositionOf(anchor)
		} else {
			rule.MonthlyMode = ByMonthDay
		}
	}

	switch s.EndKind {
	case Count:
		rule.Bound = CountBound(max(1, s.Count))
	case Until:
		if !s.UntilDate.IsZero() {
			rule.Bound = UntilBound(s.UntilDate.EndOfDay())
		}
	}

	return rule.Normalize()
}

// sortWeekdays orders days Monday first, the way week rows are shown
func sortWeekdays(days []time.Weekday) []time.Weekday {
	slices.SortFunc(days, func(a, b time.Weekday) int {
		return mondayIndex(a) - mondayIndex(b)
	})
	return days
}

func mondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
