package server

import (
	"fmt"
	"strings"
	"time"

	"github.com/cyp0633/libagenda/agenda"
	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/recurrence"
	"github.com/samber/mo"
)

// wall-clock layout used for every local date-time in JSON
const jsonTimeLayout = "2006-01-02T15:04:05"

type createItemRequest struct {
	Kind    string `json:"kind" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Content string `json:"content"`
	Rule    string `json:"rule" binding:"required"`
	EndTime string `json:"end_time"`
}

func (r createItemRequest) toNewItem() (agenda.NewItem, error) {
	end, err := parseEndTime(r.EndTime)
	if err != nil {
		return agenda.NewItem{}, err
	}
	return agenda.NewItem{
		Kind:       lifecycle.Kind(strings.ToLower(r.Kind)),
		Title:      r.Title,
		Content:    r.Content,
		RuleString: r.Rule,
		EndTime:    end,
	}, nil
}

// patchItemRequest uses pointers so absent fields stay untouched.
// An empty end_time clears the end time.
type patchItemRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
	Rule    *string `json:"rule"`
	EndTime *string `json:"end_time"`
}

func (r patchItemRequest) toPatch() (lifecycle.Patch, error) {
	var p lifecycle.Patch
	if r.Title != nil {
		p.Title = mo.Some(*r.Title)
	}
	if r.Content != nil {
		p.Content = mo.Some(*r.Content)
	}
	if r.Rule != nil {
		p.RuleString = mo.Some(*r.Rule)
	}
	if r.EndTime != nil {
		if strings.TrimSpace(*r.EndTime) == "" {
			p.ClearEndTime = true
		} else {
			end, err := recurrence.ParseTimeOfDay(*r.EndTime)
			if err != nil {
				return lifecycle.Patch{}, err
			}
			p.EndTime = mo.Some(end)
		}
	}
	if p.IsEmpty() {
		return p, fmt.Errorf("patch has no fields")
	}
	return p, nil
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

func parseEndTime(s string) (mo.Option[recurrence.TimeOfDay], error) {
	if strings.TrimSpace(s) == "" {
		return mo.None[recurrence.TimeOfDay](), nil
	}
	t, err := recurrence.ParseTimeOfDay(s)
	if err != nil {
		return mo.None[recurrence.TimeOfDay](), err
	}
	return mo.Some(t), nil
}

type itemResponse struct {
	ID               string    `json:"id"`
	Kind             string    `json:"kind"`
	Title            string    `json:"title"`
	Content          string    `json:"content,omitempty"`
	Rule             string    `json:"rule"`
	EndTime          string    `json:"end_time,omitempty"`
	AuthorID         string    `json:"author_id"`
	Author           string    `json:"author"`
	Status           string    `json:"status"`
	RestoreRequested bool      `json:"restore_requested"`
	Revision         int64     `json:"revision"`
	State            string    `json:"state"`
	Next             string    `json:"next,omitempty"`
	Summary          string    `json:"summary,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func newItemResponse(v agenda.ItemView) itemResponse {
	resp := itemResponse{
		ID:               v.ID,
		Kind:             string(v.Kind),
		Title:            v.Title,
		Content:          v.Content,
		Rule:             v.RuleString,
		AuthorID:         v.AuthorID,
		Author:           v.Author,
		Status:           string(v.Status),
		RestoreRequested: v.RestoreRequested,
		Revision:         v.Revision,
		State:            string(v.State),
		Summary:          v.Summary,
		CreatedAt:        v.CreatedAt,
		UpdatedAt:        v.UpdatedAt,
	}
	if end, ok := v.EndTime.Get(); ok {
		resp.EndTime = end.String()
	}
	if next, ok := v.Next.Get(); ok {
		resp.Next = next.Format(jsonTimeLayout)
	}
	return resp
}

type occurrenceResponse struct {
	ItemID string `json:"item_id"`
	Kind   string `json:"kind"`
	Title  string `json:"title"`
	Start  string `json:"start"`
	End    string `json:"end,omitempty"`
	State  string `json:"state"`
}

type agendaResponse struct {
	View        string               `json:"view"`
	Start       string               `json:"start"`
	End         string               `json:"end"`
	Occurrences []occurrenceResponse `json:"occurrences"`
}

func newAgendaResponse(view agenda.View, w agenda.Window, occ []agenda.Occurrence) agendaResponse {
	resp := agendaResponse{
		View:        string(view),
		Start:       w.Start.Format(jsonTimeLayout),
		End:         w.End.Format(jsonTimeLayout),
		Occurrences: make([]occurrenceResponse, 0, len(occ)),
	}
	for _, o := range occ {
		r := occurrenceResponse{
			ItemID: o.ItemID,
			Kind:   string(o.Kind),
			Title:  o.Title,
			Start:  o.Start.Format(jsonTimeLayout),
			State:  string(o.State),
		}
		if end, ok := o.End.Get(); ok {
			r.End = end.Format(jsonTimeLayout)
		}
		resp.Occurrences = append(resp.Occurrences, r)
	}
	return resp
}

// selectionRequest mirrors the schedule form
type selectionRequest struct {
	Date        string   `json:"date" binding:"required"`
	StartTime   string   `json:"start_time"`
	EndTime     string   `json:"end_time"`
	AllDay      bool     `json:"all_day"`
	Recurring   bool     `json:"recurring"`
	Frequency   string   `json:"frequency"`
	Interval    int      `json:"interval"`
	Weekdays    []string `json:"weekdays"`
	MonthlyMode string   `json:"monthly_mode"` // month_day or weekday_position
	Count       int      `json:"count"`
	Until       string   `json:"until"`
}

func (r selectionRequest) toSelection() (recurrence.Selection, error) {
	date, err := recurrence.ParseLocal(r.Date)
	if err != nil {
		return recurrence.Selection{}, err
	}
	sel := recurrence.NewSelection(date).WithAllDay(r.AllDay)

	if r.StartTime != "" {
		start, err := recurrence.ParseTimeOfDay(r.StartTime)
		if err != nil {
			return recurrence.Selection{}, err
		}
		sel = sel.WithStartTime(start)
	}
	end, err := parseEndTime(r.EndTime)
	if err != nil {
		return recurrence.Selection{}, err
	}
	sel = sel.WithEndTime(end)

	if !r.Recurring {
		return sel, nil
	}
	sel = sel.WithRecurring(true)

	if r.Frequency != "" {
		freq, err := recurrence.ParseFrequency(strings.ToUpper(r.Frequency))
		if err != nil {
			return recurrence.Selection{}, err
		}
		sel = sel.WithFrequency(freq)
	}
	if r.Interval > 0 {
		sel = sel.WithInterval(r.Interval)
	}
	for _, tok := range r.Weekdays {
		d, err := recurrence.ParseWeekdayToken(tok)
		if err != nil {
			return recurrence.Selection{}, err
		}
		sel = sel.ToggleWeekday(d)
	}

	switch strings.ToLower(r.MonthlyMode) {
	case "", "month_day":
		sel = sel.WithMonthlyMode(recurrence.ByMonthDay)
	case "weekday_position":
		sel = sel.WithMonthlyMode(recurrence.ByWeekdayPosition)
	default:
		return recurrence.Selection{}, fmt.Errorf("invalid monthly mode %q", r.MonthlyMode)
	}

	switch {
	case r.Count > 0 && r.Until != "":
		return recurrence.Selection{}, fmt.Errorf("count and until are mutually exclusive")
	case r.Count > 0:
		sel = sel.WithCount(r.Count)
	case r.Until != "":
		until, err := recurrence.ParseLocal(r.Until)
		if err != nil {
			return recurrence.Selection{}, err
		}
		sel = sel.WithUntil(until)
	}
	return sel, nil
}

type ruleResponse struct {
	Rule    string `json:"rule"`
	Summary string `json:"summary"`
	Single  bool   `json:"single"`
	EndTime string `json:"end_time,omitempty"`
	Next    string `json:"next,omitempty"`
}

type ruleRequest struct {
	Rule string `json:"rule" binding:"required"`
}

type expandRequest struct {
	Rule string `json:"rule" binding:"required"`
	From string `json:"from" binding:"required"`
	To   string `json:"to" binding:"required"`
}

type expandResponse struct {
	Occurrences []string `json:"occurrences"`
}
