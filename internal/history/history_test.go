package history

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/example/rotabot/internal/testfixtures"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "history.db")
	store, err := Open(dsn, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestStore_RecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	store.now = clock.Now
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, Event{Kind: KindAnnounced, Incoming: "U1"}))
	clock.Advance(time.Minute)
	require.NoError(t, store.Record(ctx, Event{Kind: KindConfirmed, Actor: "U1", Incoming: "U2"}))
	clock.Advance(time.Minute)
	require.NoError(t, store.Record(ctx, Event{Kind: KindSkipped, Actor: "U2", Outgoing: "U2", Incoming: "U3"}))

	events, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 3)

	// Most recent first.
	require.Equal(t, KindSkipped, events[0].Kind)
	require.Equal(t, KindConfirmed, events[1].Kind)
	require.Equal(t, KindAnnounced, events[2].Kind)

	require.Equal(t, "U2", events[0].Actor)
	require.Equal(t, "U3", events[0].Incoming)
	require.NotEmpty(t, events[0].ID)
	require.Equal(t, testfixtures.ReferenceTime().Add(2*time.Minute), events[0].At)
}

func TestStore_RecentLimit(t *testing.T) {
	store := newTestStore(t)
	clock := testfixtures.NewClock(testfixtures.ReferenceTime())
	store.now = clock.Now
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.Record(ctx, Event{Kind: KindAnnounced, Incoming: fmt.Sprintf("U%d", i)}))
		clock.Advance(time.Second)
	}

	events, err := store.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "U4", events[0].Incoming)
	require.Equal(t, "U3", events[1].Incoming)

	// Non-positive limits fall back to the default.
	events, err = store.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 5)
}

func TestStore_RecentEmpty(t *testing.T) {
	store := newTestStore(t)

	events, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Empty(t, events)
}

func TestStore_RecordKeepsProvidedFields(t *testing.T) {
	store := newTestStore(t)
	at := testfixtures.ReferenceTime().Add(time.Hour)

	require.NoError(t, store.Record(context.Background(), Event{
		ID:       "event-1",
		Kind:     KindMemberAdded,
		Actor:    "U1",
		Incoming: "U9",
		At:       at,
	}))

	events, err := store.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, events, 1)
	require.Equal(t, "event-1", events[0].ID)
	require.Equal(t, at.UTC(), events[0].At)
}

func TestStore_MigrateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}
