package storage

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Change) Change {
	t.Helper()
	select {
	case c, ok := <-ch:
		require.True(t, ok, "channel closed")
		return c
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
	}
	return Change{}
}

func TestHub_PublishToAllWatchers(t *testing.T) {
	hub := NewHub(4, zerolog.Nop())
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := hub.Subscribe(ctx)
	b := hub.Subscribe(ctx)

	hub.Publish(Change{Type: ChangeCreated, Item: lifecycle.Item{ID: "1"}})

	assert.Equal(t, "1", receive(t, a).Item.ID)
	assert.Equal(t, ChangeCreated, receive(t, b).Type)
}

func TestHub_FullBufferDropsChange(t *testing.T) {
	hub := NewHub(1, zerolog.Nop())
	defer hub.Close()

	ch := hub.Subscribe(context.Background())
	hub.Publish(Change{Type: ChangeCreated, Item: lifecycle.Item{ID: "1"}})
	hub.Publish(Change{Type: ChangeUpdated, Item: lifecycle.Item{ID: "1"}})

	assert.Equal(t, ChangeCreated, receive(t, ch).Type)
	select {
	case c := <-ch:
		t.Fatalf("unexpected change %v", c)
	default:
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub(0, zerolog.Nop())
	defer hub.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch := hub.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestHub_Close(t *testing.T) {
	hub := NewHub(0, zerolog.Nop())
	ch := hub.Subscribe(context.Background())
	hub.Close()
	hub.Close()

	_, ok := <-ch
	assert.False(t, ok)

	_, ok = <-hub.Subscribe(context.Background())
	assert.False(t, ok)
}

func TestHub_CloseStopsWatcherGoroutines(t *testing.T) {
	before := runtime.NumGoroutine()

	hub := NewHub(0, zerolog.Nop())
	for range 10 {
		hub.Subscribe(context.Background())
	}
	hub.Close()

	require.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, time.Second, 10*time.Millisecond)
}

func TestListOptions_Matches(t *testing.T) {
	item := lifecycle.Item{Kind: lifecycle.KindCulto, Status: lifecycle.StatusApproved, AuthorID: "u1"}

	tests := []struct {
		name     string
		opts     ListOptions
		expected bool
	}{
		{"empty filter", ListOptions{}, true},
		{"kind match", ListOptions{Kind: lifecycle.KindCulto}, true},
		{"kind mismatch", ListOptions{Kind: lifecycle.KindAnnouncement}, false},
		{"status in set", ListOptions{Statuses: []lifecycle.Status{lifecycle.StatusPending, lifecycle.StatusApproved}}, true},
		{"status not in set", ListOptions{Statuses: []lifecycle.Status{lifecycle.StatusRejected}}, false},
		{"author mismatch", ListOptions{AuthorID: "u2"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.opts.Matches(item))
		})
	}
}

func TestErrorHelpers(t *testing.T) {
	err := &Error{Type: ErrNotFound, Message: "item not found"}
	wrapped := errors.Join(errors.New("context"), err)

	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsConflict(wrapped))
	assert.Equal(t, "not_found: item not found", err.Error())

	cause := errors.New("disk full")
	withCause := &Error{Type: ErrConflict, Message: "write failed", Err: cause}
	assert.ErrorIs(t, withCause, cause)
}
