package storage

import (
	"context"

	"github.com/cyp0633/libagenda/lifecycle"
)

// Store is the document store holding scheduled items. Please use the error types provided.
type Store interface {
	// Create inserts a new item. The store sets Revision to 1.
	Create(ctx context.Context, item *lifecycle.Item) error
	// Get retrieves an item by id.
	Get(ctx context.Context, id string) (*lifecycle.Item, error)
	// Update replaces an existing item. item.Revision must equal the stored
	// revision, otherwise ErrConflict is returned; on success the store
	// increments it.
	Update(ctx context.Context, item *lifecycle.Item) error
	// Delete removes an item by id.
	Delete(ctx context.Context, id string) error
	// List returns the items matching opts, ordered by creation time.
	List(ctx context.Context, opts ListOptions) ([]lifecycle.Item, error)
	// Watch subscribes to changes until ctx is done; the channel is then closed.
	Watch(ctx context.Context) (<-chan Change, error)
	// Close releases the store.
	Close() error
}
