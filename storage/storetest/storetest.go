// Package storetest holds behaviour tests every storage.Store backend must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/cyp0633/libagenda/lifecycle"
	"github.com/cyp0633/libagenda/recurrence"
	"github.com/cyp0633/libagenda/storage"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store; the store is closed by the suite
type Factory func(t *testing.T) storage.Store

// Run runs the suite against stores from newStore
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CreateAndGet", testCreateAndGet},
		{"CreateRejectsDuplicates", testCreateRejectsDuplicates},
		{"CreateRequiresID", testCreateRequiresID},
		{"GetMissing", testGetMissing},
		{"UpdateRevision", testUpdateRevision},
		{"Delete", testDelete},
		{"ListFilterAndOrder", testListFilterAndOrder},
		{"Watch", testWatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

// Item returns a populated test item
func Item(id string, created time.Time) *lifecycle.Item {
	return &lifecycle.Item{
		ID:         id,
		Kind:       lifecycle.KindCulto,
		Title:      "Culto " + id,
		Content:    "Louvor e palavra",
		RuleString: "DTSTART:20250303T190000;RRULE:FREQ=WEEKLY;INTERVAL=1;BYDAY=MO,WE;COUNT=10",
		EndTime:    mo.Some(recurrence.TimeOfDay{Hour: 21}),
		AuthorID:   "u1",
		Author:     "Maria",
		Status:     lifecycle.StatusPending,
		CreatedAt:  created,
	}
}

var base = time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)

func testCreateAndGet(t *testing.T, s storage.Store) {
	ctx := context.Background()
	item := Item("a", base)
	item.RestoreRequested = true
	require.NoError(t, s.Create(ctx, item))
	assert.Equal(t, int64(1), item.Revision)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, item.ID, got.ID)
	assert.Equal(t, item.Kind, got.Kind)
	assert.Equal(t, item.Title, got.Title)
	assert.Equal(t, item.Content, got.Content)
	assert.Equal(t, item.RuleString, got.RuleString)
	assert.Equal(t, recurrence.TimeOfDay{Hour: 21}, got.EndTime.MustGet())
	assert.Equal(t, item.AuthorID, got.AuthorID)
	assert.Equal(t, item.Author, got.Author)
	assert.Equal(t, lifecycle.StatusPending, got.Status)
	assert.True(t, got.RestoreRequested)
	assert.Equal(t, int64(1), got.Revision)
	assert.True(t, base.Equal(got.CreatedAt), "created at %v", got.CreatedAt)
	assert.False(t, got.UpdatedAt.IsZero())

	noEnd := Item("b", base)
	noEnd.EndTime = mo.None[recurrence.TimeOfDay]()
	require.NoError(t, s.Create(ctx, noEnd))
	got, err = s.Get(ctx, "b")
	require.NoError(t, err)
	assert.True(t, got.EndTime.IsAbsent())
}

func testCreateRejectsDuplicates(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, Item("a", base)))

	err := s.Create(ctx, Item("a", base))
	assert.True(t, storage.IsType(err, storage.ErrAlreadyExists), "got %v", err)
}

func testCreateRequiresID(t *testing.T, s storage.Store) {
	err := s.Create(context.Background(), Item("", base))
	assert.True(t, storage.IsType(err, storage.ErrInvalidInput), "got %v", err)
}

func testGetMissing(t *testing.T, s storage.Store) {
	_, err := s.Get(context.Background(), "missing")
	assert.True(t, storage.IsNotFound(err), "got %v", err)
}

func testUpdateRevision(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, Item("a", base)))

	first, err := s.Get(ctx, "a")
	require.NoError(t, err)
	second, err := s.Get(ctx, "a")
	require.NoError(t, err)

	first.Status = lifecycle.StatusApproved
	first.EndTime = mo.None[recurrence.TimeOfDay]()
	require.NoError(t, s.Update(ctx, first))
	assert.Equal(t, int64(2), first.Revision)

	// second still carries revision 1
	second.Title = "stale"
	err = s.Update(ctx, second)
	assert.True(t, storage.IsConflict(err), "got %v", err)

	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusApproved, got.Status)
	assert.Equal(t, "Culto a", got.Title)
	assert.True(t, got.EndTime.IsAbsent())
	assert.Equal(t, int64(2), got.Revision)
	assert.True(t, base.Equal(got.CreatedAt))

	err = s.Update(ctx, Item("missing", base))
	assert.True(t, storage.IsNotFound(err), "got %v", err)
}

func testDelete(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Create(ctx, Item("a", base)))

	require.NoError(t, s.Delete(ctx, "a"))
	_, err := s.Get(ctx, "a")
	assert.True(t, storage.IsNotFound(err))

	err = s.Delete(ctx, "a")
	assert.True(t, storage.IsNotFound(err), "got %v", err)
}

func testListFilterAndOrder(t *testing.T, s storage.Store) {
	ctx := context.Background()

	c := Item("c", base.Add(2*time.Hour))
	a := Item("a", base)
	b := Item("b", base.Add(time.Hour))
	b.Kind = lifecycle.KindAnnouncement
	b.Status = lifecycle.StatusApproved
	b.AuthorID = "u2"
	for _, item := range []*lifecycle.Item{c, a, b} {
		require.NoError(t, s.Create(ctx, item))
	}

	ids := func(items []lifecycle.Item) []string {
		out := make([]string, len(items))
		for i, item := range items {
			out[i] = item.ID
		}
		return out
	}

	all, err := s.List(ctx, storage.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(all))

	cultos, err := s.List(ctx, storage.ListOptions{Kind: lifecycle.KindCulto})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(cultos))

	approved, err := s.List(ctx, storage.ListOptions{Statuses: []lifecycle.Status{lifecycle.StatusApproved}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, ids(approved))

	byAuthor, err := s.List(ctx, storage.ListOptions{AuthorID: "u1", Statuses: []lifecycle.Status{lifecycle.StatusPending}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c"}, ids(byAuthor))
}

func testWatch(t *testing.T, s storage.Store) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := s.Watch(ctx)
	require.NoError(t, err)

	item := Item("a", base)
	require.NoError(t, s.Create(ctx, item))
	item.Status = lifecycle.StatusApproved
	require.NoError(t, s.Update(ctx, item))
	require.NoError(t, s.Delete(ctx, "a"))

	expected := []storage.ChangeType{storage.ChangeCreated, storage.ChangeUpdated, storage.ChangeDeleted}
	for _, want := range expected {
		select {
		case c := <-changes:
			assert.Equal(t, want, c.Type)
			assert.Equal(t, "a", c.Item.ID)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s", want)
		}
	}

	cancel()
	select {
	case _, ok := <-changes:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("watch channel not closed after cancel")
	}
}
