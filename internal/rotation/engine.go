// Package rotation implements the on-call rotation state machine: the
// cursor/assignee pointer pair, the Announce/Confirm/Skip transitions, and
// roster edits with pointer rebasing. Every operation is a single
// read-modify-write against the durable state store; nothing is cached
// across calls.
package rotation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/example/rotabot/internal/state"
)

// EventKind classifies rotation events for the audit trail.
type EventKind string

const (
	EventAnnounced     EventKind = "announced"
	EventConfirmed     EventKind = "confirmed"
	EventDenied        EventKind = "denied"
	EventSkipped       EventKind = "skipped"
	EventMemberAdded   EventKind = "member_added"
	EventMemberRemoved EventKind = "member_removed"
)

// Event describes a completed transition for audit purposes.
type Event struct {
	Kind     EventKind
	Actor    string
	Outgoing string
	Incoming string
}

// EventSink receives rotation events. Sink failures must not affect
// rotation state; implementations log and move on.
type EventSink interface {
	RecordRotation(ctx context.Context, event Event)
}

// Observer is notified with the persisted record after every successful
// mutation, so gauges never lag the on-disk state.
type Observer interface {
	RotationState(rec state.Record)
}

// Engine is the rotation state machine. All state lives in the store; the
// engine holds only collaborators.
type Engine struct {
	store    *state.Store
	logger   *slog.Logger
	sink     EventSink
	observer Observer
}

// NewEngine wires the state machine to its durable store.
func NewEngine(store *state.Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, logger: logger}
}

// SetEventSink installs an audit sink. Must be called before the engine is
// shared across goroutines.
func (e *Engine) SetEventSink(sink EventSink) { e.sink = sink }

// SetObserver installs a state observer. Must be called before the engine
// is shared across goroutines.
func (e *Engine) SetObserver(observer Observer) { e.observer = observer }

// Assignment names the member announced as responsible.
type Assignment struct {
	Member string
	Record state.Record
}

// Announce re-affirms that the member at the cursor holds the assignment
// and returns who to announce. The cursor itself does not move, so calling
// Announce again after a failed delivery is safe.
func (e *Engine) Announce(ctx context.Context) (Assignment, error) {
	rec, err := e.store.Mutate(func(r *state.Record) error {
		if len(r.Members) == 0 {
			return ErrRosterEmpty
		}
		r.Assignee = r.Cursor
		return nil
	})
	if err != nil {
		return Assignment{}, err
	}

	member := rec.Members[rec.Cursor]
	e.emit(ctx, Event{Kind: EventAnnounced, Incoming: member})
	e.observe(rec)
	return Assignment{Member: member, Record: rec}, nil
}

// ConfirmResult reports the outcome of a Confirm transition. On
// ErrNotAssignee, Assignee still names the member who may confirm so the
// caller can compose a denial message.
type ConfirmResult struct {
	Assignee string
	NextUp   string
	Record   state.Record
}

// Confirm records that actor accepted the assignment. Only the current
// assignee may confirm; on success the cursor advances while the assignee
// pointer keeps naming the confirmer until the next reminder cycle.
func (e *Engine) Confirm(ctx context.Context, actor, claimed string) (ConfirmResult, error) {
	var res ConfirmResult
	rec, err := e.store.Mutate(func(r *state.Record) error {
		n := len(r.Members)
		if n == 0 {
			return ErrRosterEmpty
		}
		res.Assignee = r.Members[r.Assignee]
		if res.Assignee != actor {
			return ErrNotAssignee
		}
		r.Cursor = (r.Cursor + 1) % n
		res.NextUp = r.Members[r.Cursor]
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNotAssignee) {
			e.logger.Info("confirm denied", "actor", actor, "claimed", claimed, "assignee", res.Assignee)
			e.emit(ctx, Event{Kind: EventDenied, Actor: actor, Incoming: res.Assignee})
		}
		return res, err
	}

	res.Record = rec
	e.emit(ctx, Event{Kind: EventConfirmed, Actor: actor, Incoming: res.NextUp})
	e.observe(rec)
	return res, nil
}

// SkipResult names the member who handed off and the member who took over.
type SkipResult struct {
	Outgoing string
	Incoming string
	Record   state.Record
}

// Skip hands the assignment to the next member. Any caller may skip; it
// represents "the current member is unavailable". Cursor and assignee move
// together.
func (e *Engine) Skip(ctx context.Context, actor string) (SkipResult, error) {
	var res SkipResult
	rec, err := e.store.Mutate(func(r *state.Record) error {
		n := len(r.Members)
		if n == 0 {
			return ErrRosterEmpty
		}
		res.Outgoing = r.Members[r.Cursor]
		next := (r.Cursor + 1) % n
		r.Cursor = next
		r.Assignee = next
		res.Incoming = r.Members[next]
		return nil
	})
	if err != nil {
		return res, err
	}

	res.Record = rec
	e.emit(ctx, Event{Kind: EventSkipped, Actor: actor, Outgoing: res.Outgoing, Incoming: res.Incoming})
	e.observe(rec)
	return res, nil
}

// Overview is a read-only view for display. Current is the member at the
// assignee pointer; Next is the member at the cursor unless the pointers
// coincide, in which case Next is the member after the cursor. Indexes are
// -1 when the roster is empty.
type Overview struct {
	Record       state.Record
	Current      string
	CurrentIndex int
	Next         string
	NextIndex    int
}

// Overview returns the current rotation state for display.
func (e *Engine) Overview(_ context.Context) Overview {
	rec := e.store.Load()
	ov := Overview{Record: rec, CurrentIndex: -1, NextIndex: -1}
	n := len(rec.Members)
	if n == 0 {
		return ov
	}
	ov.CurrentIndex = rec.Assignee
	ov.Current = rec.Members[rec.Assignee]
	next := rec.Cursor
	if rec.Cursor == rec.Assignee {
		next = (rec.Cursor + 1) % n
	}
	ov.NextIndex = next
	ov.Next = rec.Members[next]
	return ov
}

func (e *Engine) emit(ctx context.Context, event Event) {
	if e.sink != nil {
		e.sink.RecordRotation(ctx, event)
	}
}

func (e *Engine) observe(rec state.Record) {
	if e.observer != nil {
		e.observer.RotationState(rec)
	}
}
