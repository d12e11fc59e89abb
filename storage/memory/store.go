// memory based implementation for testing and single-process deployments
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/storage"
	"github.com/rs/zerolog"
)

// Store implements storage.Store using an in-memory map
type Store struct {
	mu     sync.RWMutex
	items  map[string]*lifecycle.Item
	hub    *storage.Hub
	now    func() time.Time
	logger zerolog.Logger
}

// Option configures a Store
type Option func(*Store)

// WithLogger sets the logger for the store
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithClock overrides the clock used for CreatedAt/UpdatedAt
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a new in-memory store
func New(opts ...Option) *Store {
	s := &Store{
		items:  make(map[string]*lifecycle.Item),
		now:    time.Now,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.hub = storage.NewHub(0, s.logger)
	return s
}

func (s *Store) Create(_ context.Context, item *lifecycle.Item) error {
	if item == nil || item.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "item id is required"}
	}

	s.mu.Lock()
	if _, exists := s.items[item.ID]; exists {
		s.mu.Unlock()
		return &storage.Error{Type: storage.ErrAlreadyExists, Message: "item already exists"}
	}

	now := s.now()
	item.Revision = 1
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	stored := *item
	s.items[item.ID] = &stored
	// publish under the lock so watchers see writes in order
	s.hub.Publish(storage.Change{Type: storage.ChangeCreated, Item: stored})
	s.mu.Unlock()

	s.logger.Debug().Str("item", item.ID).Msg("item created")
	return nil
}

func (s *Store) Get(_ context.Context, id string) (*lifecycle.Item, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.items[id]
	if !ok {
		return nil, &storage.Error{Type: storage.ErrNotFound, Message: "item not found"}
	}

	copied := *item
	return &copied, nil
}

func (s *Store) Update(_ context.Context, item *lifecycle.Item) error {
	if item == nil || item.ID == "" {
		return &storage.Error{Type: storage.ErrInvalidInput, Message: "item id is required"}
	}

	s.mu.Lock()
	existing, ok := s.items[item.ID]
	if !ok {
		s.mu.Unlock()
		return &storage.Error{Type: storage.ErrNotFound, Message: "item not found"}
	}
	if existing.Revision != item.Revision {
		s.mu.Unlock()
		return &storage.Error{Type: storage.ErrConflict, Message: "item was modified concurrently"}
	}

	item.Revision++
	item.CreatedAt = existing.CreatedAt
	item.UpdatedAt = s.now()

	stored := *item
	s.items[item.ID] = &stored
	s.hub.Publish(storage.Change{Type: storage.ChangeUpdated, Item: stored})
	s.mu.Unlock()
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	item, ok := s.items[id]
	if !ok {
		s.mu.Unlock()
		return &storage.Error{Type: storage.ErrNotFound, Message: "item not found"}
	}
	delete(s.items, id)
	s.hub.Publish(storage.Change{Type: storage.ChangeDeleted, Item: *item})
	s.mu.Unlock()

	s.logger.Debug().Str("item", id).Msg("item deleted")
	return nil
}

func (s *Store) List(_ context.Context, opts storage.ListOptions) ([]lifecycle.Item, error) {
	s.mu.RLock()
	items := make([]lifecycle.Item, 0, len(s.items))
	for _, item := range s.items {
		if opts.Matches(*item) {
			items = append(items, *item)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(items, func(a, b lifecycle.Item) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})
	return items, nil
}

func (s *Store) Watch(ctx context.Context) (<-chan storage.Change, error) {
	return s.hub.Subscribe(ctx), nil
}

func (s *Store) Close() error {
	s.hub.Close()
	return nil
}
