package lifecycle

import (
	"fmt"
	"time"

	"github.com/cyp0633/libagenda/recurrence"
	"github.com/samber/mo"
)

// Status is the persisted moderation status of a scheduled item
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// ParseStatus validates a status string
func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", fmt.Errorf("invalid status %q", s)
}

// Role is the actor role supplied by the session layer
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleLeader Role = "leader"
	RoleEditor Role = "editor"
)

// ParseRole validates a role string
func ParseRole(s string) (Role, error) {
	switch r := Role(s); r {
	case RoleAdmin, RoleLeader, RoleEditor:
		return r, nil
	}
	return "", fmt.Errorf("invalid role %q", s)
}

func (r Role) IsAdmin() bool { return r == RoleAdmin }

// Kind distinguishes announcements from services; both share one shape
type Kind string

const (
	KindAnnouncement Kind = "announcement"
	KindCulto        Kind = "culto"
)

func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindAnnouncement, KindCulto:
		return k, nil
	}
	return "", fmt.Errorf("invalid kind %q", s)
}

// EffectiveState is the time-derived display state, independent of Status
type EffectiveState string

const (
	StateUpcoming   EffectiveState = "upcoming"
	StateInProgress EffectiveState = "in_progress"
	StateExpired    EffectiveState = "expired"
)

// Item is a scheduled announcement or service. Occurrences are never
// stored; they are derived from RuleString on demand.
type Item struct {
	ID      string
	Kind    Kind
	Title   string
	Content string

	// RuleString is the encoded recurrence rule, stored verbatim
	RuleString string
	// EndTime is a time-of-day duration marker, not a date
	EndTime mo.Option[recurrence.TimeOfDay]

	AuthorID string
	Author   string

	Status           Status
	RestoreRequested bool

	// Revision increments on every write; used for optimistic concurrency
	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Patch is a partial update. Absent fields are left unchanged.
type Patch struct {
	Title        mo.Option[string]
	Content      mo.Option[string]
	RuleString   mo.Option[string]
	EndTime      mo.Option[recurrence.TimeOfDay]
	ClearEndTime bool
	Status       mo.Option[Status]
}

// IsEmpty reports whether the patch changes nothing
func (p Patch) IsEmpty() bool {
	return p.Title.IsAbsent() && p.Content.IsAbsent() && p.RuleString.IsAbsent() &&
		p.EndTime.IsAbsent() && !p.ClearEndTime && p.Status.IsAbsent()
}

// ChangesSchedule reports whether the patch touches the rule or the end time
func (p Patch) ChangesSchedule() bool {
	return p.RuleString.IsPresent() || p.EndTime.IsPresent() || p.ClearEndTime
}

// Apply returns item with the patch merged in. Lifecycle fields other than
// Status are not touched.
func (p Patch) Apply(item Item) Item {
	if v, ok := p.Title.Get(); ok {
		item.Title = v
	}
	if v, ok := p.Content.Get(); ok {
		item.Content = v
	}
	if v, ok := p.RuleString.Get(); ok {
		item.RuleString = v
	}
	if p.ClearEndTime {
		item.EndTime = mo.None[recurrence.TimeOfDay]()
	}
	if v, ok := p.EndTime.Get(); ok {
		item.EndTime = mo.Some(v)
	}
	if v, ok := p.Status.Get(); ok {
		item.Status = v
	}
	return item
}
