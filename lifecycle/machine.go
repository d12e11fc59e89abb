package lifecycle

import (
	"time"

	"github.com/cyp0633/libagenda/recurrence"
	"github.com/rs/zerolog"
)

// DefaultRetention is how long a finished one-off item is kept before cleanup
const DefaultRetention = 30 * 24 * time.Hour

// Facts are the time-derived facts about an item at a given instant.
// They are recomputed on every call and never stored.
type Facts struct {
	// HasUpcoming: at least one occurrence strictly after now, within the horizon
	HasUpcoming bool
	// InProgress: today's first occurrence has started and its end time has not passed
	InProgress bool
	// Next is the first upcoming occurrence, when HasUpcoming
	Next recurrence.LocalDateTime
	// Current is the running occurrence, when InProgress
	Current recurrence.LocalDateTime
}

// Expired reports whether the item has nothing running and nothing ahead
func (f Facts) Expired() bool { return !f.HasUpcoming && !f.InProgress }

// State collapses the facts into the display state
func (f Facts) State() EffectiveState {
	switch {
	case f.InProgress:
		return StateInProgress
	case f.HasUpcoming:
		return StateUpcoming
	default:
		return StateExpired
	}
}

// Decision is the outcome of an accepted edit
type Decision struct {
	// Item is the merged item carrying the decided status
	Item Item
	// Restored is set when the edit brought an expired item back
	Restored bool
}

// Machine decides lifecycle transitions. It is stateless apart from its
// configuration and safe for concurrent use; callers must make the
// read-decide-write cycle atomic per item.
type Machine struct {
	engine  *recurrence.Engine
	horizon time.Duration
	logger  zerolog.Logger
}

// Option configures a Machine
type Option func(*Machine)

// WithLogger sets the logger for the machine
func WithLogger(logger zerolog.Logger) Option {
	return func(m *Machine) {
		m.logger = logger
	}
}

// WithHorizon overrides the "upcoming" lookahead
func WithHorizon(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.horizon = d
		}
	}
}

// NewMachine creates a machine over engine. The horizon defaults to the engine's.
func NewMachine(engine *recurrence.Engine, opts ...Option) *Machine {
	m := &Machine{
		engine:  engine,
		horizon: engine.Horizon(),
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Engine returns the recurrence engine the machine expands with
func (m *Machine) Engine() *recurrence.Engine { return m.engine }

// Horizon returns the lookahead used for HasUpcoming
func (m *Machine) Horizon() time.Duration { return m.horizon }

// Rule decodes the item's recurrence rule
func (m *Machine) Rule(item Item) (recurrence.Rule, error) {
	return m.engine.Decode(item.RuleString)
}

// Facts computes the time-derived facts for item at now. An item whose rule
// cannot be decoded has no occurrences and is therefore expired.
func (m *Machine) Facts(item Item, now recurrence.LocalDateTime) Facts {
	rule, err := m.Rule(item)
	if err != nil {
		return Facts{}
	}

	var f Facts
	if next, ok := m.engine.Next(rule, now); ok && !next.After(recurrence.HorizonEnd(now, m.horizon)) {
		f.HasUpcoming = true
		f.Next = next
	}

	if end, ok := item.EndTime.Get(); ok {
		today := m.engine.Expand(rule, now.StartOfDay(), now.EndOfDay())
		if len(today) > 0 {
			start := today[0]
			if !now.Before(start) && !now.After(end.On(start)) {
				f.InProgress = true
				f.Current = start
			}
		}
	}

	return f
}

// EffectiveState returns the display state of item at now
func (m *Machine) EffectiveState(item Item, now recurrence.LocalDateTime) EffectiveState {
	return m.Facts(item, now).State()
}

// InitialStatus is the status of a newly created item
func (m *Machine) InitialStatus(role Role) Status {
	if role.IsAdmin() {
		return StatusApproved
	}
	return StatusPending
}

// Decide applies patch to current and decides the resulting status.
//
// When the edit gives an expired item an upcoming or running occurrence it
// is a restoration: admins restore straight to approved, anyone else sends the
// item back to moderation with RestoreRequested set. A rejected item can
// never be restored this way and the edit is refused with *RefusedEditError.
// An explicit status change clears RestoreRequested.
func (m *Machine) Decide(current Item, patch Patch, now recurrence.LocalDateTime, role Role) (Decision, error) {
	next := patch.Apply(current)

	wasExpired := m.Facts(current, now).Expired()
	nf := m.Facts(next, now)
	nowHasFuture := nf.HasUpcoming || nf.InProgress

	switch {
	case current.Status == StatusRejected && wasExpired && nowHasFuture:
		m.logger.Info().
			Str("item", current.ID).
			Str("role", string(role)).
			Msg("refused reactivation of rejected item")
		return Decision{}, &RefusedEditError{ItemID: current.ID, Reason: ReasonRejectedReactivation}

	case wasExpired && nowHasFuture:
		if role.IsAdmin() {
			next.Status = StatusApproved
			next.RestoreRequested = false
		} else {
			next.Status = StatusPending
			next.RestoreRequested = true
		}
		m.logger.Info().
			Str("item", current.ID).
			Str("role", string(role)).
			Str("status", string(next.Status)).
			Msg("expired item restored")
		return Decision{Item: next, Restored: true}, nil

	case patch.Status.IsPresent():
		next.RestoreRequested = false
	}

	return Decision{Item: next}, nil
}

// CleanupEligible reports whether item is a one-off whose only occurrence
// ended more than retention ago. Recurring items are never eligible.
func (m *Machine) CleanupEligible(item Item, now recurrence.LocalDateTime, retention time.Duration) bool {
	rule, err := m.Rule(item)
	if err != nil || !m.engine.IsSingle(rule) {
		return false
	}

	last, ok := m.engine.Previous(rule, now)
	if !ok {
		return false
	}

	end := last
	if t, ok := item.EndTime.Get(); ok {
		if e := t.On(last); e.After(end) {
			end = e
		}
	}
	return now.Sub(end) > retention
}
