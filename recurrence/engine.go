package recurrence

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/teambition/rrule-go"
)

// "All time" for questions such as "how many occurrences does this rule ever have".
var (
	BeginningOfTime = LocalDate(1900, time.January, 1)
	EndOfTime       = NewLocalDateTime(2200, time.December, 31, 23, 59, 59)
)

const opExpand = "expand"

// Engine expands recurrence rules into concrete local occurrences.
// It holds no per-call state and is safe for concurrent use.
type Engine struct {
	cache  *RecurrenceCache
	config EngineConfig
	logger zerolog.Logger
}

// NewEngine creates an engine without a result cache
func NewEngine(opts ...Option) *Engine {
	return NewEngineWithConfig(DisabledCacheConfig, opts...)
}

// Horizon returns the configured lookahead horizon
func (e *Engine) Horizon() time.Duration { return e.config.Horizon }

// Close releases the cache goroutine, if any
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// Decode is Decode with logging of fallback and failure
func (e *Engine) Decode(s string) (Rule, error) {
	rule, lenient, err := decode(s)
	if err != nil {
		e.logger.Debug().Err(err).Str("rrule", s).Msg("failed to decode recurrence rule")
		return Rule{}, err
	}
	if lenient {
		e.logger.Debug().Str("rrule", s).Msg("recurrence rule decoded by lenient parser")
	}
	return rule, nil
}

// Expand returns the occurrences of rule within [start, end], ascending.
// Invalid rules and empty windows yield an empty result, never an error.
func (e *Engine) Expand(rule Rule, start, end LocalDateTime) []LocalDateTime {
	if end.Before(start) {
		return nil
	}
	if err := rule.Validate(); err != nil {
		e.logger.Debug().Err(err).Msg("skipping invalid recurrence rule")
		return nil
	}

	var key string
	if e.cache != nil {
		key = Encode(rule)
		if occ, ok := e.cache.Get(opExpand, key, start, end); ok {
			return occ
		}
	}

	set, err := buildSet(rule)
	if err != nil {
		e.logger.Debug().Err(err).Str("rrule", Encode(rule)).Msg("failed to build recurrence set")
		return nil
	}

	times := set.Between(start.Carrier(), end.Carrier(), true)
	if len(times) > e.config.MaxOccurrences {
		e.logger.Warn().
			Str("rrule", Encode(rule)).
			Int("cap", e.config.MaxOccurrences).
			Int("found", len(times)).
			Msg("expansion truncated to occurrence cap")
		times = times[:e.config.MaxOccurrences]
	}

	occ := make([]LocalDateTime, len(times))
	for i, t := range times {
		occ[i] = LocalOf(t)
	}

	if e.cache != nil {
		e.cache.Set(opExpand, key, start, end, occ)
	}
	return occ
}

// ExpandString decodes s and expands it; a malformed string yields nothing
// so one bad item never breaks a calendar view.
func (e *Engine) ExpandString(s string, start, end LocalDateTime) []LocalDateTime {
	rule, err := e.Decode(s)
	if err != nil {
		return nil
	}
	return e.Expand(rule, start, end)
}

// HasOccurrenceInRange checks whether rule has any occurrence in [start, end]
// without expanding the whole window.
func (e *Engine) HasOccurrenceInRange(rule Rule, start, end LocalDateTime) bool {
	if end.Before(start) || rule.Validate() != nil {
		return false
	}
	set, err := buildSet(rule)
	if err != nil {
		return false
	}
	next := set.After(start.Carrier(), true)
	return !next.IsZero() && !next.After(end.Carrier())
}

// Next returns the first occurrence strictly after t
func (e *Engine) Next(rule Rule, t LocalDateTime) (LocalDateTime, bool) {
	if rule.Validate() != nil {
		return LocalDateTime{}, false
	}
	set, err := buildSet(rule)
	if err != nil {
		return LocalDateTime{}, false
	}
	next := set.After(t.Carrier(), false)
	if next.IsZero() || next.After(EndOfTime.Carrier()) {
		return LocalDateTime{}, false
	}
	return LocalOf(next), true
}

// Previous returns the last occurrence at or before t
func (e *Engine) Previous(rule Rule, t LocalDateTime) (LocalDateTime, bool) {
	if rule.Validate() != nil {
		return LocalDateTime{}, false
	}
	set, err := buildSet(rule)
	if err != nil {
		return LocalDateTime{}, false
	}
	prev := set.Before(t.Carrier(), true)
	if prev.IsZero() || prev.Before(BeginningOfTime.Carrier()) {
		return LocalDateTime{}, false
	}
	return LocalOf(prev), true
}

// IsSingle reports whether rule has at most one occurrence over all time.
// This is the operational definition of "non-recurring".
func (e *Engine) IsSingle(rule Rule) bool {
	first, ok := e.firstOccurrence(rule)
	if !ok {
		return true
	}
	_, more := e.Next(rule, first)
	return !more
}

// IsEmpty reports whether rule never occurs. An empty rule is valid and
// simply renders nothing.
func (e *Engine) IsEmpty(rule Rule) bool {
	_, ok := e.firstOccurrence(rule)
	return !ok
}

func (e *Engine) firstOccurrence(rule Rule) (LocalDateTime, bool) {
	if rule.Validate() != nil {
		return LocalDateTime{}, false
	}
	set, err := buildSet(rule)
	if err != nil {
		return LocalDateTime{}, false
	}
	first := set.After(BeginningOfTime.Carrier(), true)
	if first.IsZero() || first.After(EndOfTime.Carrier()) {
		return LocalDateTime{}, false
	}
	return LocalOf(first), true
}

var rruleWeekdays = [...]rrule.Weekday{
	time.Sunday:    rrule.SU,
	time.Monday:    rrule.MO,
	time.Tuesday:   rrule.TU,
	time.Wednesday: rrule.WE,
	time.Thursday:  rrule.TH,
	time.Friday:    rrule.FR,
	time.Saturday:  rrule.SA,
}

var rruleFrequencies = [...]rrule.Frequency{
	Daily:   rrule.DAILY,
	Weekly:  rrule.WEEKLY,
	Monthly: rrule.MONTHLY,
	Yearly:  rrule.YEARLY,
}

// toROption maps the rule onto rrule-go options. All times travel on the
// UTC carrier so no zone or DST conversion can shift an occurrence.
func toROption(rule Rule) rrule.ROption {
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	opt := rrule.ROption{
		Freq:     rruleFrequencies[rule.Frequency],
		Interval: interval,
		Dtstart:  rule.Anchor.Carrier(),
	}

	switch rule.Frequency {
	case Weekly:
		for _, d := range rule.ByWeekday {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[d])
		}
	case Monthly:
		switch rule.MonthlyMode {
		case ByMonthDay:
			opt.Bymonthday = []int{rule.Anchor.Day()}
		case ByWeekdayPosition:
			opt.Byweekday = []rrule.Weekday{rruleWeekdays[rule.Anchor.Weekday()]}
			opt.Bysetpos = []int{rule.EffectivePosition()}
		}
	}

	switch rule.Bound.Kind {
	case Count:
		opt.Count = rule.Bound.Count
	case Until:
		opt.Until = rule.Bound.Until.Carrier()
	}

	return opt
}

func buildSet(rule Rule) (*rrule.Set, error) {
	r, err := rrule.NewRRule(toROption(rule))
	if err != nil {
		return nil, fmt.Errorf("failed to build rule: %w", err)
	}

	set := &rrule.Set{}
	set.RRule(r)
	for _, t := range rule.IncludeDates {
		set.RDate(t.Carrier())
	}
	for _, t := range rule.ExcludeDates {
		set.ExDate(t.Carrier())
	}
	return set, nil
}
