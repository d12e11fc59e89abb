package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cyp0633/libagenda/agenda"
	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/recurrence"
	"github.com/cyp0633/libagenda/storage/memory"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	admin  = agenda.Actor{ID: "admin-1", Name: "Pastor João", Role: lifecycle.RoleAdmin}
	leader = agenda.Actor{ID: "leader-1", Name: "Maria", Role: lifecycle.RoleLeader}
	other  = agenda.Actor{ID: "leader-2", Name: "Paulo", Role: lifecycle.RoleLeader}
)

const weeklyRule = "DTSTART:20250304T190000;RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=TU"

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store := memory.New()
	t.Cleanup(func() { _ = store.Close() })

	engine := recurrence.NewEngine()
	ids := 0
	svc := agenda.NewService(store, lifecycle.NewMachine(engine),
		agenda.WithClock(func() time.Time { return time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC) }),
		agenda.WithLocation(time.UTC),
		agenda.WithIDGenerator(func() string {
			ids++
			return fmt.Sprintf("item-%d", ids)
		}))
	return New(svc, agenda.NewFeedWriter(engine, "Igreja Central", zerolog.Nop()))
}

func do(t *testing.T, s *Server, method, path string, body any, actor *agenda.Actor) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set(HeaderActorID, actor.ID)
		req.Header.Set(HeaderActorName, actor.Name)
		req.Header.Set(HeaderActorRole, string(actor.Role))
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func createItem(t *testing.T, s *Server, actor agenda.Actor, body map[string]any) itemResponse {
	t.Helper()
	w := do(t, s, http.MethodPost, "/api/v1/items", body, &actor)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[itemResponse](t, w)
}

func TestActorMiddleware(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/v1/items", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	bad := agenda.Actor{ID: "x", Role: "superuser"}
	w = do(t, s, http.MethodGet, "/api/v1/items", nil, &bad)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// public routes stay open
	w = do(t, s, http.MethodGet, "/api/v1/agenda", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestItemWorkflow(t *testing.T) {
	s := newTestServer(t)

	item := createItem(t, s, leader, map[string]any{
		"kind":     "culto",
		"title":    "Culto de terça",
		"rule":     weeklyRule,
		"end_time": "21:00",
	})
	assert.Equal(t, "item-1", item.ID)
	assert.Equal(t, "pending", item.Status)
	assert.Equal(t, "upcoming", item.State)
	assert.Equal(t, "2025-06-03T19:00:00", item.Next)
	assert.Equal(t, "Weekly: Tue", item.Summary)
	assert.Equal(t, "21:00", item.EndTime)
	assert.Equal(t, leader.Name, item.Author)

	agendaPath := "/api/v1/agenda?view=month&date=2025-06-01"
	resp := decode[agendaResponse](t, do(t, s, http.MethodGet, agendaPath, nil, nil))
	assert.Empty(t, resp.Occurrences)

	// leaders cannot moderate
	w := do(t, s, http.MethodPut, "/api/v1/items/item-1/status", map[string]string{"status": "approved"}, &leader)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, s, http.MethodPut, "/api/v1/items/item-1/status", map[string]string{"status": "approved"}, &admin)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "approved", decode[itemResponse](t, w).Status)

	resp = decode[agendaResponse](t, do(t, s, http.MethodGet, agendaPath, nil, nil))
	assert.Equal(t, "month", resp.View)
	assert.Equal(t, "2025-06-01T00:00:00", resp.Start)
	require.Len(t, resp.Occurrences, 4)
	assert.Equal(t, "2025-06-03T19:00:00", resp.Occurrences[0].Start)
	assert.Equal(t, "2025-06-03T21:00:00", resp.Occurrences[0].End)

	w = do(t, s, http.MethodPatch, "/api/v1/items/item-1", map[string]any{"title": "Culto de oração", "end_time": ""}, &leader)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[itemResponse](t, w)
	assert.Equal(t, "Culto de oração", updated.Title)
	assert.Empty(t, updated.EndTime)
	assert.Equal(t, int64(3), updated.Revision)

	w = do(t, s, http.MethodDelete, "/api/v1/items/item-1", nil, &other)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, s, http.MethodDelete, "/api/v1/items/item-1", nil, &leader)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/items/item-1", nil, &admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRefusedEdit(t *testing.T) {
	s := newTestServer(t)

	createItem(t, s, leader, map[string]any{
		"kind":  "announcement",
		"title": "Bazar",
		"rule":  "DTSTART:20250318T190000;RRULE:FREQ=DAILY;INTERVAL=1;COUNT=1",
	})
	w := do(t, s, http.MethodPut, "/api/v1/items/item-1/status", map[string]string{"status": "rejected"}, &admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, s, http.MethodPatch, "/api/v1/items/item-1", map[string]any{
		"rule": "DTSTART:20250701T190000;RRULE:FREQ=DAILY;INTERVAL=1;COUNT=1",
	}, &leader)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, lifecycle.ReasonRejectedReactivation, decode[errorResponse](t, w).Reason)
}

func TestItemErrors(t *testing.T) {
	s := newTestServer(t)
	createItem(t, s, leader, map[string]any{"kind": "culto", "title": "Culto", "rule": weeklyRule})

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		actor  agenda.Actor
		want   int
	}{
		{"malformed rule", http.MethodPost, "/api/v1/items", map[string]any{"kind": "culto", "title": "x", "rule": "weekly"}, leader, http.StatusBadRequest},
		{"unknown kind", http.MethodPost, "/api/v1/items", map[string]any{"kind": "party", "title": "x", "rule": weeklyRule}, leader, http.StatusBadRequest},
		{"missing title", http.MethodPost, "/api/v1/items", map[string]any{"kind": "culto", "rule": weeklyRule}, leader, http.StatusBadRequest},
		{"bad end time", http.MethodPost, "/api/v1/items", map[string]any{"kind": "culto", "title": "x", "rule": weeklyRule, "end_time": "25:99"}, leader, http.StatusBadRequest},
		{"empty patch", http.MethodPatch, "/api/v1/items/item-1", map[string]any{}, leader, http.StatusBadRequest},
		{"unknown status", http.MethodPut, "/api/v1/items/item-1/status", map[string]string{"status": "archived"}, admin, http.StatusBadRequest},
		{"missing item", http.MethodGet, "/api/v1/items/nope", nil, admin, http.StatusNotFound},
		{"pending item hidden from others", http.MethodGet, "/api/v1/items/item-1", nil, other, http.StatusNotFound},
		{"edit by another leader", http.MethodPatch, "/api/v1/items/item-1", map[string]any{"title": "x"}, other, http.StatusForbidden},
		{"bad list filter", http.MethodGet, "/api/v1/items?status=lost", nil, admin, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, tt.method, tt.path, tt.body, &tt.actor)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
		})
	}
}

func TestListItems(t *testing.T) {
	s := newTestServer(t)
	createItem(t, s, leader, map[string]any{"kind": "culto", "title": "A", "rule": weeklyRule})
	createItem(t, s, other, map[string]any{"kind": "announcement", "title": "B", "rule": weeklyRule})

	all := decode[[]itemResponse](t, do(t, s, http.MethodGet, "/api/v1/items", nil, &admin))
	assert.Len(t, all, 2)

	own := decode[[]itemResponse](t, do(t, s, http.MethodGet, "/api/v1/items", nil, &leader))
	require.Len(t, own, 1)
	assert.Equal(t, "A", own[0].Title)

	cultos := decode[[]itemResponse](t, do(t, s, http.MethodGet, "/api/v1/items?kind=culto", nil, &admin))
	require.Len(t, cultos, 1)
	assert.Equal(t, "culto", cultos[0].Kind)
}

func TestFeeds(t *testing.T) {
	s := newTestServer(t)
	createItem(t, s, admin, map[string]any{"kind": "culto", "title": "Culto", "rule": weeklyRule, "end_time": "21:00"})
	createItem(t, s, leader, map[string]any{"kind": "culto", "title": "Pending", "rule": weeklyRule})

	w := do(t, s, http.MethodGet, "/api/v1/agenda.ics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/calendar"))
	body := w.Body.String()
	assert.Contains(t, body, "BEGIN:VCALENDAR")
	assert.Contains(t, body, "UID:item-1")
	assert.NotContains(t, body, "UID:item-2")

	w = do(t, s, http.MethodGet, "/api/v1/agenda.xml?view=week&date=2025-06-03", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `<occurrence item="item-1"`)

	w = do(t, s, http.MethodGet, "/api/v1/agenda?view=decade", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodGet, "/api/v1/agenda.xml?date=someday", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRules(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/api/v1/rules/build", map[string]any{
		"date":       "2025-03-04",
		"start_time": "19:30",
		"end_time":   "21:00",
		"recurring":  true,
		"frequency":  "weekly",
		"weekdays":   []string{"TU", "TH"},
		"count":      10,
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	built := decode[ruleResponse](t, w)
	assert.Equal(t, "Weekly: Tue, Thu, for 10 occurrences", built.Summary)
	assert.Equal(t, "21:00", built.EndTime)
	assert.False(t, built.Single)

	rule, err := recurrence.Decode(built.Rule)
	require.NoError(t, err)
	assert.Equal(t, recurrence.NewLocalDateTime(2025, time.March, 4, 19, 30, 0), rule.Anchor)

	w = do(t, s, http.MethodPost, "/api/v1/rules/build", map[string]any{
		"date": "2025-06-15", "start_time": "10:00",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	once := decode[ruleResponse](t, w)
	assert.True(t, once.Single)
	assert.Equal(t, "Once on 2025-06-15 at 10:00", once.Summary)
	assert.Equal(t, "2025-06-15T10:00:00", once.Next)

	w = do(t, s, http.MethodPost, "/api/v1/rules/describe", map[string]string{"rule": weeklyRule}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Weekly: Tue", decode[ruleResponse](t, w).Summary)

	w = do(t, s, http.MethodPost, "/api/v1/rules/describe", map[string]string{"rule": "whenever"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/rules/expand", map[string]string{
		"rule": weeklyRule, "from": "2025-03-01", "to": "2025-03-18",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"2025-03-04T19:00:00", "2025-03-11T19:00:00", "2025-03-18T19:00:00"},
		decode[expandResponse](t, w).Occurrences)

	// an explicit time bounds the window exactly
	w = do(t, s, http.MethodPost, "/api/v1/rules/expand", map[string]string{
		"rule": weeklyRule, "from": "2025-03-01", "to": "2025-03-18T10:00",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"2025-03-04T19:00:00", "2025-03-11T19:00:00"},
		decode[expandResponse](t, w).Occurrences)

	w = do(t, s, http.MethodPost, "/api/v1/rules/build", map[string]any{
		"date": "2025-03-04", "recurring": true, "count": 3, "until": "2025-12-31",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
