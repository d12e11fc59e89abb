package lifecycle

import (
	"errors"
	"testing"
	"time"

	"github.com/cyp0633/libagenda/recurrence"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = recurrence.NewLocalDateTime(2025, time.June, 1, 12, 0, 0)

func at(month time.Month, day, hour, min int) recurrence.LocalDateTime {
	return recurrence.NewLocalDateTime(2025, month, day, hour, min, 0)
}

func single(t recurrence.LocalDateTime) string {
	return recurrence.Encode(recurrence.Single(t))
}

func weeklyTuesdays() string {
	return recurrence.Encode(recurrence.Rule{
		Frequency: recurrence.Weekly,
		Interval:  1,
		Anchor:    at(time.March, 4, 19, 0),
	})
}

func newMachine() *Machine {
	return NewMachine(recurrence.NewEngine())
}

func TestMachine_Decide(t *testing.T) {
	expired := single(at(time.March, 18, 19, 0))
	future := single(at(time.July, 1, 19, 0))
	// started at 11:00 today and runs until 13:00, nothing after it
	running := single(at(time.June, 1, 11, 0))
	until13 := mo.Some(recurrence.TimeOfDay{Hour: 13})

	tests := []struct {
		name             string
		current          Item
		patch            Patch
		role             Role
		wantRefused      bool
		wantStatus       Status
		wantRestore      bool
		wantRestoredFlag bool
	}{
		{
			name:        "rejected expired item cannot be rescheduled into the future",
			current:     Item{ID: "a", RuleString: expired, Status: StatusRejected},
			patch:       Patch{RuleString: mo.Some(future)},
			role:        RoleAdmin,
			wantRefused: true,
		},
		{
			name:             "admin restore is auto-approved",
			current:          Item{ID: "a", RuleString: expired, Status: StatusApproved},
			patch:            Patch{RuleString: mo.Some(future)},
			role:             RoleAdmin,
			wantStatus:       StatusApproved,
			wantRestore:      false,
			wantRestoredFlag: true,
		},
		{
			name:             "leader restore goes back to moderation",
			current:          Item{ID: "a", RuleString: expired, Status: StatusApproved},
			patch:            Patch{RuleString: mo.Some(future)},
			role:             RoleLeader,
			wantStatus:       StatusPending,
			wantRestore:      true,
			wantRestoredFlag: true,
		},
		{
			name:             "restore overrides a pending status too",
			current:          Item{ID: "a", RuleString: expired, Status: StatusPending},
			patch:            Patch{RuleString: mo.Some(future), Title: mo.Some("new title")},
			role:             RoleEditor,
			wantStatus:       StatusPending,
			wantRestore:      true,
			wantRestoredFlag: true,
		},
		{
			name:             "leader moving an expired item to a running slot restores it",
			current:          Item{ID: "a", RuleString: expired, EndTime: until13, Status: StatusApproved},
			patch:            Patch{RuleString: mo.Some(running)},
			role:             RoleLeader,
			wantStatus:       StatusPending,
			wantRestore:      true,
			wantRestoredFlag: true,
		},
		{
			name:             "admin moving an expired item to a running slot restores it approved",
			current:          Item{ID: "a", RuleString: expired, EndTime: until13, Status: StatusPending},
			patch:            Patch{RuleString: mo.Some(running)},
			role:             RoleAdmin,
			wantStatus:       StatusApproved,
			wantRestoredFlag: true,
		},
		{
			name:        "rejected expired item cannot be moved to a running slot",
			current:     Item{ID: "a", RuleString: expired, EndTime: until13, Status: StatusRejected},
			patch:       Patch{RuleString: mo.Some(running)},
			role:        RoleLeader,
			wantRefused: true,
		},
		{
			name:       "rejected item that is still upcoming may be edited",
			current:    Item{ID: "a", RuleString: future, Status: StatusRejected},
			patch:      Patch{RuleString: mo.Some(single(at(time.August, 1, 19, 0)))},
			role:       RoleLeader,
			wantStatus: StatusRejected,
		},
		{
			name:       "expired item edited but still in the past keeps its status",
			current:    Item{ID: "a", RuleString: expired, Status: StatusRejected},
			patch:      Patch{RuleString: mo.Some(single(at(time.April, 1, 19, 0)))},
			role:       RoleLeader,
			wantStatus: StatusRejected,
		},
		{
			name:       "moderation clears the restore flag",
			current:    Item{ID: "a", RuleString: future, Status: StatusPending, RestoreRequested: true},
			patch:      Patch{Status: mo.Some(StatusApproved)},
			role:       RoleAdmin,
			wantStatus: StatusApproved,
		},
		{
			name:        "content edit keeps the restore flag",
			current:     Item{ID: "a", RuleString: future, Status: StatusPending, RestoreRequested: true},
			patch:       Patch{Content: mo.Some("updated")},
			role:        RoleLeader,
			wantStatus:  StatusPending,
			wantRestore: true,
		},
		{
			name:       "malformed current rule counts as expired",
			current:    Item{ID: "a", RuleString: "garbage", Status: StatusApproved},
			patch:      Patch{RuleString: mo.Some(future)},
			role:       RoleLeader,
			wantStatus: StatusPending, wantRestore: true, wantRestoredFlag: true,
		},
	}

	m := newMachine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision, err := m.Decide(tt.current, tt.patch, now, tt.role)

			if tt.wantRefused {
				require.Error(t, err)
				var refused *RefusedEditError
				require.True(t, errors.As(err, &refused))
				assert.Equal(t, tt.current.ID, refused.ItemID)
				assert.Equal(t, ReasonRejectedReactivation, refused.Reason)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, decision.Item.Status)
			assert.Equal(t, tt.wantRestore, decision.Item.RestoreRequested)
			assert.Equal(t, tt.wantRestoredFlag, decision.Restored)
		})
	}
}

func TestMachine_DecideAppliesPatch(t *testing.T) {
	current := Item{
		ID:         "a",
		Title:      "Culto de domingo",
		RuleString: weeklyTuesdays(),
		EndTime:    mo.Some(recurrence.TimeOfDay{Hour: 21}),
		Status:     StatusApproved,
	}

	decision, err := newMachine().Decide(current, Patch{Title: mo.Some("Culto de terça"), ClearEndTime: true}, now, RoleLeader)
	require.NoError(t, err)
	assert.Equal(t, "Culto de terça", decision.Item.Title)
	assert.True(t, decision.Item.EndTime.IsAbsent())
	assert.Equal(t, StatusApproved, decision.Item.Status)
	assert.False(t, decision.Restored)

	// the input is not modified
	assert.Equal(t, "Culto de domingo", current.Title)
}

func TestMachine_Facts(t *testing.T) {
	until2h := mo.Some(recurrence.TimeOfDay{Hour: 21})
	tuesday := func(hour, min int) recurrence.LocalDateTime { return at(time.June, 3, hour, min) }

	tests := []struct {
		name     string
		item     Item
		now      recurrence.LocalDateTime
		expected EffectiveState
	}{
		{"before today's occurrence", Item{RuleString: weeklyTuesdays(), EndTime: until2h}, tuesday(18, 59), StateUpcoming},
		{"at the start", Item{RuleString: weeklyTuesdays(), EndTime: until2h}, tuesday(19, 0), StateInProgress},
		{"during", Item{RuleString: weeklyTuesdays(), EndTime: until2h}, tuesday(20, 0), StateInProgress},
		{"at the end", Item{RuleString: weeklyTuesdays(), EndTime: until2h}, tuesday(21, 0), StateInProgress},
		{"after the end, next week ahead", Item{RuleString: weeklyTuesdays(), EndTime: until2h}, tuesday(21, 1), StateUpcoming},
		{"no end time is never in progress", Item{RuleString: weeklyTuesdays()}, tuesday(20, 0), StateUpcoming},
		{"end before start is never in progress",
			Item{RuleString: single(tuesday(19, 0)), EndTime: mo.Some(recurrence.TimeOfDay{Hour: 18})}, tuesday(19, 30), StateExpired},
		{"one-off in progress", Item{RuleString: single(tuesday(19, 0)), EndTime: until2h}, tuesday(19, 30), StateInProgress},
		{"one-off at exactly now is not upcoming", Item{RuleString: single(tuesday(19, 0))}, tuesday(19, 0), StateExpired},
		{"one-off finished", Item{RuleString: single(tuesday(19, 0)), EndTime: until2h}, tuesday(22, 0), StateExpired},
		{"beyond the horizon", Item{RuleString: single(recurrence.LocalDate(2027, time.January, 1))}, now, StateExpired},
		{"malformed rule", Item{RuleString: "FREQ=NEVER"}, now, StateExpired},
	}

	m := newMachine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.EffectiveState(tt.item, tt.now))
		})
	}
}

func TestMachine_FactsDetails(t *testing.T) {
	m := newMachine()
	item := Item{RuleString: weeklyTuesdays(), EndTime: mo.Some(recurrence.TimeOfDay{Hour: 21})}

	f := m.Facts(item, at(time.June, 3, 20, 0))
	assert.True(t, f.InProgress)
	assert.True(t, f.HasUpcoming)
	assert.False(t, f.Expired())
	assert.Equal(t, at(time.June, 3, 19, 0), f.Current)
	assert.Equal(t, at(time.June, 10, 19, 0), f.Next)
}

func TestMachine_DefaultHorizonIsOneCalendarYear(t *testing.T) {
	m := newMachine()
	// 2028 is a leap year, so the same date next year is 366 days away
	leapNow := recurrence.NewLocalDateTime(2027, time.March, 1, 12, 0, 0)

	sameDate := Item{RuleString: single(recurrence.NewLocalDateTime(2028, time.March, 1, 12, 0, 0))}
	assert.Equal(t, StateUpcoming, m.EffectiveState(sameDate, leapNow))

	justPast := Item{RuleString: single(recurrence.NewLocalDateTime(2028, time.March, 1, 12, 0, 1))}
	assert.Equal(t, StateExpired, m.EffectiveState(justPast, leapNow))
}

func TestMachine_WithHorizon(t *testing.T) {
	item := Item{RuleString: single(recurrence.LocalDate(2027, time.January, 1))}

	m := NewMachine(recurrence.NewEngine(), WithHorizon(3*365*24*time.Hour))
	assert.Equal(t, StateUpcoming, m.EffectiveState(item, now))
	assert.Equal(t, 3*365*24*time.Hour, m.Horizon())
}

func TestMachine_InitialStatus(t *testing.T) {
	m := newMachine()
	assert.Equal(t, StatusApproved, m.InitialStatus(RoleAdmin))
	assert.Equal(t, StatusPending, m.InitialStatus(RoleLeader))
	assert.Equal(t, StatusPending, m.InitialStatus(RoleEditor))
}

func TestMachine_CleanupEligible(t *testing.T) {
	cleanupNow := recurrence.NewLocalDateTime(2025, time.June, 1, 21, 0, 0)

	tests := []struct {
		name     string
		item     Item
		expected bool
	}{
		{"one-off finished long ago", Item{RuleString: single(at(time.April, 1, 19, 0))}, true},
		{"one-off finished recently", Item{RuleString: single(at(time.May, 10, 19, 0))}, false},
		{"start past retention without end time", Item{RuleString: single(at(time.May, 2, 19, 0))}, true},
		{"end time keeps it within retention",
			Item{RuleString: single(at(time.May, 2, 19, 0)), EndTime: mo.Some(recurrence.TimeOfDay{Hour: 23})}, false},
		{"future one-off", Item{RuleString: single(at(time.July, 1, 19, 0))}, false},
		{"recurring items are never eligible", Item{RuleString: recurrence.Encode(recurrence.Rule{
			Frequency: recurrence.Weekly,
			Interval:  1,
			Anchor:    at(time.January, 7, 19, 0),
			Bound:     recurrence.CountBound(2),
		})}, false},
		{"malformed rule", Item{RuleString: "garbage"}, false},
	}

	m := newMachine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, m.CleanupEligible(tt.item, cleanupNow, DefaultRetention))
		})
	}
}

func TestPatch(t *testing.T) {
	item := Item{
		Title:   "old",
		Content: "body",
		EndTime: mo.Some(recurrence.TimeOfDay{Hour: 21}),
		Status:  StatusPending,
	}

	assert.True(t, Patch{}.IsEmpty())
	assert.Equal(t, item, Patch{}.Apply(item))

	p := Patch{Title: mo.Some("new"), EndTime: mo.Some(recurrence.TimeOfDay{Hour: 22, Minute: 30})}
	assert.False(t, p.IsEmpty())
	assert.True(t, p.ChangesSchedule())

	got := p.Apply(item)
	assert.Equal(t, "new", got.Title)
	assert.Equal(t, "body", got.Content)
	assert.Equal(t, recurrence.TimeOfDay{Hour: 22, Minute: 30}, got.EndTime.MustGet())

	assert.False(t, Patch{Title: mo.Some("x")}.ChangesSchedule())
}

func TestParse(t *testing.T) {
	s, err := ParseStatus("approved")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, s)
	_, err = ParseStatus("archived")
	assert.Error(t, err)

	r, err := ParseRole("admin")
	require.NoError(t, err)
	assert.True(t, r.IsAdmin())
	_, err = ParseRole("root")
	assert.Error(t, err)

	k, err := ParseKind("culto")
	require.NoError(t, err)
	assert.Equal(t, KindCulto, k)
}
