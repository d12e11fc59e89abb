package recurrence

import (
	"fmt"
	"time"
)

// Frequency is the step unit of a recurrence rule
type Frequency int

const (
	Daily Frequency = iota
	Weekly
	Monthly
	Yearly
)

// String returns the RRULE token for the frequency
func (f Frequency) String() string {
	switch f {
	case Daily:
		return "DAILY"
	case Weekly:
		return "WEEKLY"
	case Monthly:
		return "MONTHLY"
	case Yearly:
		return "YEARLY"
	default:
		return fmt.Sprintf("Frequency(%d)", int(f))
	}
}

// ParseFrequency maps an RRULE FREQ token to a Frequency
func ParseFrequency(s string) (Frequency, error) {
	switch s {
	case "DAILY":
		return Daily, nil
	case "WEEKLY":
		return Weekly, nil
	case "MONTHLY":
		return Monthly, nil
	case "YEARLY":
		return Yearly, nil
	}
	return 0, fmt.Errorf("unsupported frequency %q", s)
}

// MonthlyMode selects how a MONTHLY rule picks its day
type MonthlyMode int

const (
	// MonthlyDefault repeats on the anchor's day of month, like ByMonthDay,
	// but without an explicit BYMONTHDAY part in the transport string.
	MonthlyDefault MonthlyMode = iota
	// ByMonthDay repeats on the anchor's day of month; months lacking it are skipped.
	ByMonthDay
	// ByWeekdayPosition repeats on the Nth weekday of the month, N taken from the anchor.
	ByWeekdayPosition
)

func (m MonthlyMode) String() string {
	switch m {
	case ByMonthDay:
		return "BY_MONTH_DAY"
	case ByWeekdayPosition:
		return "BY_WEEKDAY_POSITION"
	default:
		return "DEFAULT"
	}
}

// LastPosition marks "the last <weekday> of the month"
const LastPosition = -1

// BoundKind is the termination condition of a rule
type BoundKind int

const (
	Unbounded BoundKind = iota
	Count
	Until
)

// Bound holds exactly one termination condition
type Bound struct {
	Kind  BoundKind
	Count int           // valid when Kind == Count
	Until LocalDateTime // valid when Kind == Until, inclusive
}

// NoBound returns an unbounded termination
func NoBound() Bound { return Bound{Kind: Unbounded} }

// CountBound stops after n occurrences in total
func CountBound(n int) Bound { return Bound{Kind: Count, Count: n} }

// UntilBound stops after the given local date-time (inclusive)
func UntilBound(t LocalDateTime) Bound { return Bound{Kind: Until, Until: t} }

// Rule is the compact description of when a scheduled item happens.
// The anchor is both the first occurrence and the time-of-day template.
type Rule struct {
	Frequency Frequency
	Interval  int
	Anchor    LocalDateTime

	// ByWeekday is used only for Weekly rules; empty means the anchor's weekday.
	ByWeekday []time.Weekday

	// MonthlyMode and Position are used only for Monthly rules.
	// Position is 1..4 or LastPosition; zero means "derive from the anchor".
	MonthlyMode MonthlyMode
	Position    int

	Bound Bound

	// Rule-set extras: explicit extra dates and excluded dates.
	IncludeDates []LocalDateTime
	ExcludeDates []LocalDateTime
}

// Single returns the non-recurring rule anchored at t
func Single(t LocalDateTime) Rule {
	return Rule{
		Frequency: Daily,
		Interval:  1,
		Anchor:    t,
		Bound:     CountBound(1),
	}
}

// IsSingle reports whether the rule is the canonical "single occurrence" form
func (r Rule) IsSingle() bool {
	return r.Bound.Kind == Count && r.Bound.Count == 1 &&
		len(r.ByWeekday) == 0 && r.MonthlyMode == MonthlyDefault &&
		len(r.IncludeDates) == 0
}

// EffectivePosition returns the weekday position used by ByWeekdayPosition rules
func (r Rule) EffectivePosition() int {
	if r.Position != 0 {
		return r.Position
	}
	return PositionOf(r.Anchor)
}

// Normalize fills the implicit parts of a rule: a zero interval becomes 1,
// a ByWeekdayPosition rule gets its anchor-derived position, and the
// position is cleared for every other mode. Decode(Encode(r)) equals
// r.Normalize() for every valid r.
func (r Rule) Normalize() Rule {
	r.Interval = max(1, r.Interval)
	if r.MonthlyMode == ByWeekdayPosition {
		r.Position = r.EffectivePosition()
	} else {
		r.Position = 0
	}
	return r
}

// Validate checks structural invariants of the rule
func (r Rule) Validate() error {
	if r.Anchor.IsZero() {
		return fmt.Errorf("rule has no anchor")
	}
	if r.Frequency < Daily || r.Frequency > Yearly {
		return fmt.Errorf("invalid frequency %d", int(r.Frequency))
	}
	if r.Interval < 0 {
		return fmt.Errorf("interval must be positive, got %d", r.Interval)
	}
	switch r.Bound.Kind {
	case Unbounded:
	case Count:
		if r.Bound.Count < 1 {
			return fmt.Errorf("count must be at least 1, got %d", r.Bound.Count)
		}
	case Until:
		if r.Bound.Until.IsZero() {
			return fmt.Errorf("until bound has no date")
		}
	default:
		return fmt.Errorf("invalid bound kind %d", int(r.Bound.Kind))
	}
	if len(r.ByWeekday) > 0 && r.Frequency != Weekly {
		return fmt.Errorf("weekday set is only valid for WEEKLY rules")
	}
	if r.MonthlyMode != MonthlyDefault && r.Frequency != Monthly {
		return fmt.Errorf("monthly mode is only valid for MONTHLY rules")
	}
	if r.MonthlyMode == ByWeekdayPosition {
		if p := r.EffectivePosition(); p != LastPosition && (p < 1 || p > 4) {
			return fmt.Errorf("weekday position must be 1-4 or last, got %d", p)
		}
	}
	return nil
}

// PositionOf returns which occurrence of its weekday t is within its month:
// 1..4, or LastPosition for the fifth.
func PositionOf(t LocalDateTime) int {
	n := (t.Day()-1)/7 + 1
	if n >= 5 {
		return LastPosition
	}
	return n
}

// TimeOfDay is an HH:MM marker, used for end times
type TimeOfDay struct {
	Hour   int
	Minute int
}

// ParseTimeOfDay parses "HH:MM"
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return TimeOfDay{}, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}, nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

func (t TimeOfDay) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TimeOfDay) UnmarshalText(b []byte) error {
	parsed, err := ParseTimeOfDay(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// On places the time of day on the date of d
func (t TimeOfDay) On(d LocalDateTime) LocalDateTime {
	return NewLocalDateTime(d.Year(), d.Month(), d.Day(), t.Hour, t.Minute, 0)
}
