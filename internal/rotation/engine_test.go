package rotation

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/example/rotabot/internal/state"
)

type recordingSink struct {
	events []Event
}

func (s *recordingSink) RecordRotation(_ context.Context, event Event) {
	s.events = append(s.events, event)
}

type recordingObserver struct {
	records []state.Record
}

func (o *recordingObserver) RotationState(rec state.Record) {
	o.records = append(o.records, rec)
}

func newTestEngine(t *testing.T, members ...string) (*Engine, *state.Store) {
	t.Helper()
	store := state.New(t.TempDir(), members, slog.Default())
	return NewEngine(store, slog.Default()), store
}

func requireInBounds(t *testing.T, rec state.Record) {
	t.Helper()
	if len(rec.Members) == 0 {
		require.Equal(t, 0, rec.Cursor)
		require.Equal(t, 0, rec.Assignee)
		return
	}
	require.GreaterOrEqual(t, rec.Cursor, 0)
	require.Less(t, rec.Cursor, len(rec.Members))
	require.GreaterOrEqual(t, rec.Assignee, 0)
	require.Less(t, rec.Assignee, len(rec.Members))
}

func TestEngine_Announce(t *testing.T) {
	t.Run("names the member at the cursor", func(t *testing.T) {
		engine, store := newTestEngine(t, "U1", "U2", "U3")

		got, err := engine.Announce(context.Background())
		require.NoError(t, err)
		require.Equal(t, "U1", got.Member)

		rec := store.Load()
		require.Equal(t, 0, rec.Cursor)
		require.Equal(t, 0, rec.Assignee)
	})

	t.Run("re-announcing is idempotent", func(t *testing.T) {
		engine, _ := newTestEngine(t, "U1", "U2")

		first, err := engine.Announce(context.Background())
		require.NoError(t, err)
		second, err := engine.Announce(context.Background())
		require.NoError(t, err)
		require.Equal(t, first.Member, second.Member)
	})

	t.Run("re-affirms the assignee after a skip left pointers apart", func(t *testing.T) {
		engine, store := newTestEngine(t, "U1", "U2", "U3")

		// Confirm moves the cursor ahead of the assignee.
		_, err := engine.Announce(context.Background())
		require.NoError(t, err)
		_, err = engine.Confirm(context.Background(), "U1", "U1")
		require.NoError(t, err)
		require.NotEqual(t, store.Load().Cursor, store.Load().Assignee)

		got, err := engine.Announce(context.Background())
		require.NoError(t, err)
		require.Equal(t, "U2", got.Member)
		rec := store.Load()
		require.Equal(t, rec.Cursor, rec.Assignee)
	})

	t.Run("empty roster", func(t *testing.T) {
		engine, _ := newTestEngine(t)

		_, err := engine.Announce(context.Background())
		require.ErrorIs(t, err, ErrRosterEmpty)
	})
}

func TestEngine_Confirm(t *testing.T) {
	t.Run("advances the cursor but keeps the assignee", func(t *testing.T) {
		engine, store := newTestEngine(t, "U1", "U2", "U3")
		_, err := engine.Announce(context.Background())
		require.NoError(t, err)

		res, err := engine.Confirm(context.Background(), "U1", "U1")
		require.NoError(t, err)
		require.Equal(t, "U1", res.Assignee)
		require.Equal(t, "U2", res.NextUp)

		rec := store.Load()
		require.Equal(t, 1, rec.Cursor)
		require.Equal(t, 0, rec.Assignee)
	})

	t.Run("rejects anyone but the assignee", func(t *testing.T) {
		engine, store := newTestEngine(t, "U1", "U2", "U3")
		_, err := engine.Announce(context.Background())
		require.NoError(t, err)
		before := store.Load()

		res, err := engine.Confirm(context.Background(), "U2", "U1")
		require.ErrorIs(t, err, ErrNotAssignee)
		require.Equal(t, "U1", res.Assignee)
		require.Equal(t, before, store.Load())
	})

	t.Run("wraps the cursor past the last member", func(t *testing.T) {
		engine, store := newTestEngine(t, "U1", "U2")
		_, err := engine.Skip(context.Background(), "U1")
		require.NoError(t, err)

		res, err := engine.Confirm(context.Background(), "U2", "U2")
		require.NoError(t, err)
		require.Equal(t, "U1", res.NextUp)
		require.Equal(t, 0, store.Load().Cursor)
	})

	t.Run("empty roster", func(t *testing.T) {
		engine, _ := newTestEngine(t)

		_, err := engine.Confirm(context.Background(), "U1", "U1")
		require.ErrorIs(t, err, ErrRosterEmpty)
	})
}

func TestEngine_Skip(t *testing.T) {
	t.Run("moves cursor and assignee together", func(t *testing.T) {
		engine, store := newTestEngine(t, "U1", "U2", "U3")
		_, err := engine.Announce(context.Background())
		require.NoError(t, err)

		res, err := engine.Skip(context.Background(), "U5")
		require.NoError(t, err)
		require.Equal(t, "U1", res.Outgoing)
		require.Equal(t, "U2", res.Incoming)

		rec := store.Load()
		require.Equal(t, 1, rec.Cursor)
		require.Equal(t, 1, rec.Assignee)
	})

	t.Run("wraps at the end of the roster", func(t *testing.T) {
		engine, store := newTestEngine(t, "U1", "U2")
		_, err := engine.Skip(context.Background(), "U1")
		require.NoError(t, err)

		res, err := engine.Skip(context.Background(), "U2")
		require.NoError(t, err)
		require.Equal(t, "U2", res.Outgoing)
		require.Equal(t, "U1", res.Incoming)
		require.Equal(t, 0, store.Load().Cursor)
	})

	t.Run("empty roster", func(t *testing.T) {
		engine, _ := newTestEngine(t)

		_, err := engine.Skip(context.Background(), "U1")
		require.ErrorIs(t, err, ErrRosterEmpty)
	})
}

func TestEngine_Overview(t *testing.T) {
	t.Run("empty roster", func(t *testing.T) {
		engine, _ := newTestEngine(t)

		ov := engine.Overview(context.Background())
		require.Empty(t, ov.Current)
		require.Equal(t, -1, ov.CurrentIndex)
		require.Equal(t, -1, ov.NextIndex)
	})

	t.Run("pointers together", func(t *testing.T) {
		engine, _ := newTestEngine(t, "U1", "U2", "U3")

		ov := engine.Overview(context.Background())
		require.Equal(t, "U1", ov.Current)
		require.Equal(t, 0, ov.CurrentIndex)
		require.Equal(t, "U2", ov.Next)
		require.Equal(t, 1, ov.NextIndex)
	})

	t.Run("pointers apart after a confirm", func(t *testing.T) {
		engine, _ := newTestEngine(t, "U1", "U2", "U3")
		_, err := engine.Confirm(context.Background(), "U1", "U1")
		require.NoError(t, err)

		ov := engine.Overview(context.Background())
		require.Equal(t, "U1", ov.Current)
		require.Equal(t, 0, ov.CurrentIndex)
		require.Equal(t, "U2", ov.Next)
		require.Equal(t, 1, ov.NextIndex)
	})

	t.Run("single member points at itself", func(t *testing.T) {
		engine, _ := newTestEngine(t, "U1")

		ov := engine.Overview(context.Background())
		require.Equal(t, "U1", ov.Current)
		require.Equal(t, "U1", ov.Next)
		require.Equal(t, 0, ov.NextIndex)
	})
}

func TestEngine_EventsAndObserver(t *testing.T) {
	engine, _ := newTestEngine(t, "U1", "U2")
	sink := &recordingSink{}
	observer := &recordingObserver{}
	engine.SetEventSink(sink)
	engine.SetObserver(observer)
	ctx := context.Background()

	_, err := engine.Announce(ctx)
	require.NoError(t, err)
	_, err = engine.Confirm(ctx, "U2", "U1")
	require.ErrorIs(t, err, ErrNotAssignee)
	_, err = engine.Confirm(ctx, "U1", "U1")
	require.NoError(t, err)
	_, err = engine.Skip(ctx, "U2")
	require.NoError(t, err)

	require.Len(t, sink.events, 4)
	require.Equal(t, EventAnnounced, sink.events[0].Kind)
	require.Equal(t, "U1", sink.events[0].Incoming)
	require.Equal(t, EventDenied, sink.events[1].Kind)
	require.Equal(t, "U2", sink.events[1].Actor)
	require.Equal(t, "U1", sink.events[1].Incoming)
	require.Equal(t, EventConfirmed, sink.events[2].Kind)
	require.Equal(t, EventSkipped, sink.events[3].Kind)

	// The denied confirm mutates nothing and notifies no observer.
	require.Len(t, observer.records, 3)
	for _, rec := range observer.records {
		requireInBounds(t, rec)
	}
}

func TestEngine_PointersStayInBounds(t *testing.T) {
	engine, store := newTestEngine(t, "U1", "U2", "U3")
	ctx := context.Background()

	steps := []func() error{
		func() error { _, err := engine.Announce(ctx); return err },
		func() error { _, err := engine.Skip(ctx, "U9"); return err },
		func() error { _, err := engine.Skip(ctx, "U9"); return err },
		func() error { _, err := engine.Skip(ctx, "U9"); return err },
		func() error { _, err := engine.AddMember(ctx, "U9", "U4"); return err },
		func() error { rec := store.Load(); _, err := engine.Confirm(ctx, rec.Members[rec.Assignee], ""); return err },
		func() error { _, err := engine.RemoveMember(ctx, "U9", "U2"); return err },
		func() error { _, err := engine.RemoveMember(ctx, "U9", "U4"); return err },
		func() error { _, err := engine.Announce(ctx); return err },
		func() error { _, err := engine.RemoveMember(ctx, "U9", "U1"); return err },
	}
	for i, step := range steps {
		require.NoError(t, step(), "step %d", i)
		requireInBounds(t, store.Load())
	}
}
