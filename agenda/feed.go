package agenda

import (
	"fmt"
	"io"
	"time"

	"github.com/beevik/etree"
	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/recurrence"
	"github.com/emersion/go-ical"
	"github.com/rs/zerolog"
)

const (
	productID = "-//libagenda//Agenda Feed//EN"
	// local wall clock, no zone
	xmlTimeLayout = "2006-01-02T15:04:05"
)

// FeedWriter renders public feeds. Items with malformed rules are skipped.
type FeedWriter struct {
	engine *recurrence.Engine
	name   string
	logger zerolog.Logger
	now    func() time.Time
}

// NewFeedWriter creates a feed writer; name becomes the calendar name
func NewFeedWriter(engine *recurrence.Engine, name string, logger zerolog.Logger) *FeedWriter {
	return &FeedWriter{engine: engine, name: name, logger: logger, now: time.Now}
}

// WriteICal writes a VCALENDAR with one VEVENT per item, carrying the
// item's recurrence as floating DTSTART/RRULE/EXDATE/RDATE.
func (f *FeedWriter) WriteICal(w io.Writer, items []lifecycle.Item) error {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropProductID, productID)
	cal.Props.SetText(ical.PropVersion, "2.0")
	if f.name != "" {
		cal.Props.SetText("X-WR-CALNAME", f.name)
	}

	for _, item := range items {
		rule, err := f.engine.Decode(item.RuleString)
		if err != nil {
			f.logger.Warn().Err(err).Str("item", item.ID).Msg("skipping item with malformed rule in ical feed")
			continue
		}
		cal.Children = append(cal.Children, f.event(item, rule))
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

func (f *FeedWriter) event(item lifecycle.Item, rule recurrence.Rule) *ical.Component {
	event := ical.NewEvent()
	event.Props.SetText(ical.PropUID, item.ID)

	stamp := item.UpdatedAt
	if stamp.IsZero() {
		stamp = f.now()
	}
	event.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	event.Props.SetText(ical.PropSummary, item.Title)
	if item.Content != "" {
		event.Props.SetText(ical.PropDescription, item.Content)
	}
	event.Props.SetText(ical.PropCategories, string(item.Kind))

	recurrence.ApplyToComponent(rule, event.Component)

	if end, ok := item.EndTime.Get(); ok {
		if dtend := end.On(rule.Anchor); dtend.After(rule.Anchor) {
			prop := ical.NewProp(ical.PropDateTimeEnd)
			prop.Value = dtend.String()
			event.Props.Set(prop)
		}
	}
	return event.Component
}

// WriteXML writes the occurrences of a window as an <agenda> document
func (f *FeedWriter) WriteXML(w io.Writer, win Window, occurrences []Occurrence) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	root := doc.CreateElement("agenda")
	if f.name != "" {
		root.CreateAttr("name", f.name)
	}
	root.CreateAttr("start", win.Start.Format(xmlTimeLayout))
	root.CreateAttr("end", win.End.Format(xmlTimeLayout))

	for _, occ := range occurrences {
		el := root.CreateElement("occurrence")
		el.CreateAttr("item", occ.ItemID)
		el.CreateAttr("kind", string(occ.Kind))
		el.CreateAttr("state", string(occ.State))
		el.CreateElement("title").SetText(occ.Title)
		el.CreateElement("start").SetText(occ.Start.Format(xmlTimeLayout))
		if end, ok := occ.End.Get(); ok {
			el.CreateElement("end").SetText(end.Format(xmlTimeLayout))
		}
	}

	doc.Indent(2)
	if _, err := doc.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write agenda xml: %w", err)
	}
	return nil
}
