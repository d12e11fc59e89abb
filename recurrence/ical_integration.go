package recurrence

import (
	"strings"

	"github.com/emersion/go-ical"
)

// ApplyToComponent writes the rule onto an iCalendar component as floating
// DTSTART, RRULE, EXDATE and RDATE properties. A single-occurrence rule gets
// no RRULE.
func ApplyToComponent(rule Rule, comp *ical.Component) {
	setFloating(comp.Props, ical.PropDateTimeStart, []LocalDateTime{rule.Anchor})

	delete(comp.Props, ical.PropRecurrenceRule)
	if !rule.IsSingle() {
		encoded := Encode(Rule{
			Frequency:   rule.Frequency,
			Interval:    rule.Interval,
			Anchor:      rule.Anchor,
			ByWeekday:   rule.ByWeekday,
			MonthlyMode: rule.MonthlyMode,
			Position:    rule.Position,
			Bound:       rule.Bound,
		})
		// Drop the leading "DTSTART:...;RRULE:" to keep the bare rule body.
		_, body, _ := strings.Cut(encoded, "RRULE:")
		prop := ical.NewProp(ical.PropRecurrenceRule)
		prop.Value = body
		comp.Props.Set(prop)
	}

	delete(comp.Props, ical.PropExceptionDates)
	if len(rule.ExcludeDates) > 0 {
		setFloating(comp.Props, ical.PropExceptionDates, rule.ExcludeDates)
	}
	delete(comp.Props, ical.PropRecurrenceDates)
	if len(rule.IncludeDates) > 0 {
		setFloating(comp.Props, ical.PropRecurrenceDates, rule.IncludeDates)
	}
}

// FromComponent reads a rule back from an iCalendar component. Zone
// information on any of the date properties is discarded.
func FromComponent(comp *ical.Component) (Rule, error) {
	dtstart := comp.Props.Get(ical.PropDateTimeStart)
	if dtstart == nil || dtstart.Value == "" {
		return Rule{}, malformed("", "component has no DTSTART", nil)
	}

	var b strings.Builder
	b.WriteString("DTSTART:" + dtstart.Value)
	if rr := comp.Props.Get(ical.PropRecurrenceRule); rr != nil && rr.Value != "" {
		b.WriteString("\nRRULE:" + rr.Value)
	} else {
		b.WriteString("\nRRULE:FREQ=DAILY;COUNT=1")
	}
	for _, p := range comp.Props.Values(ical.PropExceptionDates) {
		b.WriteString("\nEXDATE:" + p.Value)
	}
	for _, p := range comp.Props.Values(ical.PropRecurrenceDates) {
		b.WriteString("\nRDATE:" + p.Value)
	}

	return Decode(b.String())
}

func setFloating(props ical.Props, name string, ts []LocalDateTime) {
	prop := ical.NewProp(name)
	prop.Value = joinLocal(ts)
	props.Set(prop)
}
