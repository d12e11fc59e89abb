package recurrence

import (
	"fmt"
	"strings"
	"time"
)

var shortWeekdays = [...]string{
	time.Sunday:    "Sun",
	time.Monday:    "Mon",
	time.Tuesday:   "Tue",
	time.Wednesday: "Wed",
	time.Thursday:  "Thu",
	time.Friday:    "Fri",
	time.Saturday:  "Sat",
}

// Describe renders a short human-readable summary for confirmation screens, e.g.
// "Weekly: Mon, Wed, for 10 occurrences" or "Monthly on the 3rd Tuesday, until 2025-12-31".
func Describe(r Rule) string {
	if r.IsSingle() {
		if r.Anchor.Clock() == (TimeOfDay{}) {
			return "Once on " + r.Anchor.Format("2006-01-02")
		}
		return fmt.Sprintf("Once on %s at %s", r.Anchor.Format("2006-01-02"), r.Anchor.Clock())
	}

	var b strings.Builder
	b.WriteString(describeFrequency(r))

	switch r.Bound.Kind {
	case Count:
		if r.Bound.Count == 1 {
			b.WriteString(", for 1 occurrence")
		} else {
			fmt.Fprintf(&b, ", for %d occurrences", r.Bound.Count)
		}
	case Until:
		b.WriteString(", until " + r.Bound.Until.Format("2006-01-02"))
	}

	switch n := len(r.ExcludeDates); n {
	case 0:
	case 1:
		b.WriteString(", except 1 date")
	default:
		fmt.Fprintf(&b, ", except %d dates", n)
	}

	return b.String()
}

func describeFrequency(r Rule) string {
	n := max(1, r.Interval)

	switch r.Frequency {
	case Daily:
		if n == 1 {
			return "Daily"
		}
		return fmt.Sprintf("Every %d days", n)

	case Weekly:
		days := r.ByWeekday
		if len(days) == 0 {
			days = []time.Weekday{r.Anchor.Weekday()}
		}
		names := make([]string, len(days))
		for i, d := range days {
			names[i] = shortWeekdays[d]
		}
		if n == 1 {
			return "Weekly: " + strings.Join(names, ", ")
		}
		return fmt.Sprintf("Every %d weeks: %s", n, strings.Join(names, ", "))

	case Monthly:
		var on string
		if r.MonthlyMode == ByWeekdayPosition {
			on = fmt.Sprintf("on the %s %s", positionName(r.EffectivePosition()), r.Anchor.Weekday())
		} else {
			on = fmt.Sprintf("on day %d", r.Anchor.Day())
		}
		if n == 1 {
			return "Monthly " + on
		}
		return fmt.Sprintf("Every %d months %s", n, on)

	case Yearly:
		on := fmt.Sprintf("on %s %d", r.Anchor.Month(), r.Anchor.Day())
		if n == 1 {
			return "Yearly " + on
		}
		return fmt.Sprintf("Every %d years %s", n, on)
	}

	return r.Frequency.String()
}

func positionName(p int) string {
	switch p {
	case 1:
		return "1st"
	case 2:
		return "2nd"
	case 3:
		return "3rd"
	case 4:
		return "4th"
	default:
		return "last"
	}
}
