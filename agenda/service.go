package agenda

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/recurrence"
	"github.com/cyp0633/libagenda/storage"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/mo"
)

// DefaultUpdateRetries bounds the read-decide-write loop on revision conflicts
const DefaultUpdateRetries = 3

// Actor is the identity and role the session layer vouches for
type Actor struct {
	ID   string
	Name string
	Role lifecycle.Role
}

// NewItem is the input of Create
type NewItem struct {
	Kind       lifecycle.Kind
	Title      string
	Content    string
	RuleString string
	EndTime    mo.Option[recurrence.TimeOfDay]
}

// ItemView is an item with its time-derived state at a given instant
type ItemView struct {
	lifecycle.Item
	State   lifecycle.EffectiveState
	Next    mo.Option[recurrence.LocalDateTime]
	Summary string
}

// Service runs the scheduled-item workflows over a store
type Service struct {
	store     storage.Store
	machine   *lifecycle.Machine
	logger    zerolog.Logger
	now       func() time.Time
	loc       *time.Location
	retention time.Duration
	retries   int
	newID     func() string
}

// Option configures a Service
type Option func(*Service)

// WithLogger sets the logger for the service
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithClock overrides the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLocation sets the location whose wall clock "now" is read in
func WithLocation(loc *time.Location) Option {
	return func(s *Service) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithRetention sets how long finished one-off items are kept
func WithRetention(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retention = d
		}
	}
}

// WithIDGenerator overrides item id generation
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// NewService creates a service
func NewService(store storage.Store, machine *lifecycle.Machine, opts ...Option) *Service {
	s := &Service{
		store:     store,
		machine:   machine,
		logger:    zerolog.Nop(),
		now:       time.Now,
		loc:       time.Local,
		retention: lifecycle.DefaultRetention,
		retries:   DefaultUpdateRetries,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Now returns the current local wall clock
func (s *Service) Now() recurrence.LocalDateTime {
	return recurrence.LocalOf(s.now().In(s.loc))
}

// Location returns the location "now" is read in
func (s *Service) Location() *time.Location { return s.loc }

// Machine returns the lifecycle machine
func (s *Service) Machine() *lifecycle.Machine { return s.machine }

func (s *Service) validateRule(rule string) error {
	if _, err := s.machine.Engine().Decode(rule); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Create stores a new item; admins publish directly, anyone else goes to moderation
func (s *Service) Create(ctx context.Context, actor Actor, in NewItem) (*lifecycle.Item, error) {
	if _, err := lifecycle.ParseKind(string(in.Kind)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if err := s.validateRule(in.RuleString); err != nil {
		return nil, err
	}

	item := &lifecycle.Item{
		ID:         s.newID(),
		Kind:       in.Kind,
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		RuleString: in.RuleString,
		EndTime:    in.EndTime,
		AuthorID:   actor.ID,
		Author:     actor.Name,
		Status:     s.machine.InitialStatus(actor.Role),
	}
	if err := s.store.Create(ctx, item); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	s.logger.Info().
		Str("item", item.ID).
		Str("kind", string(item.Kind)).
		Str("actor", actor.ID).
		Str("status", string(item.Status)).
		Msg("item created")
	return item, nil
}

// Get returns an item by id
func (s *Service) Get(ctx context.Context, id string) (*lifecycle.Item, error) {
	return s.store.Get(ctx, id)
}

// List returns the items matching opts
func (s *Service) List(ctx context.Context, opts storage.ListOptions) ([]lifecycle.Item, error) {
	return s.store.List(ctx, opts)
}

// View annotates item with its state at the current time
func (s *Service) View(item lifecycle.Item) ItemView {
	now := s.Now()
	facts := s.machine.Facts(item, now)

	v := ItemView{Item: item, State: facts.State(), Next: mo.None[recurrence.LocalDateTime]()}
	if facts.HasUpcoming {
		v.Next = mo.Some(facts.Next)
	}
	if rule, err := s.machine.Rule(item); err == nil {
		v.Summary = recurrence.Describe(rule)
	}
	return v
}

// Update applies patch through the lifecycle decision. The read, decision
// and write form one optimistic transaction, retried on revision conflicts.
// A refused edit returns *lifecycle.RefusedEditError and changes nothing.
func (s *Service) Update(ctx context.Context, actor Actor, id string, patch lifecycle.Patch) (*lifecycle.Item, error) {
	if patch.Status.IsPresent() && !actor.Role.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators can change the status", ErrPermissionDenied)
	}
	if st, ok := patch.Status.Get(); ok {
		if _, err := lifecycle.ParseStatus(string(st)); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
	}
	if rule, ok := patch.RuleString.Get(); ok {
		if err := s.validateRule(rule); err != nil {
			return nil, err
		}
	}
	if title, ok := patch.Title.Get(); ok && strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("%w: title is required", ErrInvalidInput)
	}

	var lastErr error
	for attempt := 0; attempt < s.retries; attempt++ {
		current, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if !actor.Role.IsAdmin() && current.AuthorID != actor.ID {
			return nil, fmt.Errorf("%w: only the author or an administrator can edit this item", ErrPermissionDenied)
		}

		decision, err := s.machine.Decide(*current, patch, s.Now(), actor.Role)
		if err != nil {
			return nil, err
		}

		next := decision.Item
		if err := s.store.Update(ctx, &next); err != nil {
			if storage.IsConflict(err) {
				s.logger.Debug().Str("item", id).Int("attempt", attempt+1).Msg("revision conflict, retrying update")
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("failed to update item: %w", err)
		}

		s.logger.Info().
			Str("item", id).
			Str("actor", actor.ID).
			Str("status", string(next.Status)).
			Bool("restored", decision.Restored).
			Msg("item updated")
		return &next, nil
	}

	return nil, fmt.Errorf("failed to update item after %d attempts: %w", s.retries, lastErr)
}

// Moderate sets the status of an item; administrators only
func (s *Service) Moderate(ctx context.Context, actor Actor, id string, status lifecycle.Status) (*lifecycle.Item, error) {
	if !actor.Role.IsAdmin() {
		return nil, fmt.Errorf("%w: only administrators can moderate", ErrPermissionDenied)
	}
	return s.Update(ctx, actor, id, lifecycle.Patch{Status: mo.Some(status)})
}

// Delete removes an item; administrators or the author only
func (s *Service) Delete(ctx context.Context, actor Actor, id string) error {
	current, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !actor.Role.IsAdmin() && current.AuthorID != actor.ID {
		return fmt.Errorf("%w: only the author or an administrator can delete this item", ErrPermissionDenied)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete item: %w", err)
	}
	s.logger.Info().Str("item", id).Str("actor", actor.ID).Msg("item deleted")
	return nil
}

// Occurrence is one concrete instance of an approved item in a window
type Occurrence struct {
	ItemID string
	Kind   lifecycle.Kind
	Title  string
	Start  recurrence.LocalDateTime
	End    mo.Option[recurrence.LocalDateTime]
	// State is the item's effective state, not the occurrence's
	State lifecycle.EffectiveState
}

// Occurrences expands every approved item over w, ordered by start. Items
// with malformed rules contribute nothing.
func (s *Service) Occurrences(ctx context.Context, w Window, kind lifecycle.Kind) ([]Occurrence, error) {
	items, err := s.store.List(ctx, storage.ListOptions{
		Kind:     kind,
		Statuses: []lifecycle.Status{lifecycle.StatusApproved},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	now := s.Now()
	engine := s.machine.Engine()

	var out []Occurrence
	for _, item := range items {
		starts := engine.ExpandString(item.RuleString, w.Start, w.End)
		if len(starts) == 0 {
			continue
		}
		state := s.machine.EffectiveState(item, now)
		for _, start := range starts {
			occ := Occurrence{
				ItemID: item.ID,
				Kind:   item.Kind,
				Title:  item.Title,
				Start:  start,
				End:    mo.None[recurrence.LocalDateTime](),
				State:  state,
			}
			if end, ok := item.EndTime.Get(); ok {
				occ.End = mo.Some(end.On(start))
			}
			out = append(out, occ)
		}
	}

	slices.SortStableFunc(out, func(a, b Occurrence) int {
		if c := a.Start.Compare(b.Start); c != 0 {
			return c
		}
		return strings.Compare(a.Title, b.Title)
	})
	return out, nil
}

// Sweep deletes one-off items whose occurrence ended more than the retention
// period ago and returns their ids. Recurring items are never swept.
func (s *Service) Sweep(ctx context.Context) ([]string, error) {
	items, err := s.store.List(ctx, storage.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}

	now := s.Now()
	var deleted []string
	var errs []error
	for _, item := range items {
		if !s.machine.CleanupEligible(item, now, s.retention) {
			continue
		}
		if err := s.store.Delete(ctx, item.ID); err != nil {
			if storage.IsNotFound(err) {
				continue
			}
			errs = append(errs, fmt.Errorf("item %s: %w", item.ID, err))
			continue
		}
		deleted = append(deleted, item.ID)
	}

	s.logger.Info().
		Int("scanned", len(items)).
		Strs("deleted", deleted).
		Int("failed", len(errs)).
		Msg("cleanup sweep finished")
	return deleted, errors.Join(errs...)
}
