package rotation

import (
	"context"
	"strings"

	"github.com/example/rotabot/internal/state"
)

// AddMember appends a member to the end of the rotation order. The roster
// and pointers are persisted together in one write.
func (e *Engine) AddMember(ctx context.Context, actor, member string) (state.Record, error) {
	member = strings.TrimSpace(member)
	if member == "" {
		return state.Record{}, ErrInvalidMember
	}

	rec, err := e.store.Mutate(func(r *state.Record) error {
		for _, existing := range r.Members {
			if existing == member {
				return ErrAlreadyPresent
			}
		}
		r.Members = append(r.Members, member)
		return nil
	})
	if err != nil {
		return rec, err
	}

	e.emit(ctx, Event{Kind: EventMemberAdded, Actor: actor, Incoming: member})
	e.observe(rec)
	return rec, nil
}

// RemoveMember deletes a member and rebases both pointers. Removal fails
// closed when it would empty the roster: an empty rotation has no valid
// pointer targets.
func (e *Engine) RemoveMember(ctx context.Context, actor, member string) (state.Record, error) {
	member = strings.TrimSpace(member)
	if member == "" {
		return state.Record{}, ErrInvalidMember
	}

	rec, err := e.store.Mutate(func(r *state.Record) error {
		removed := -1
		for i, existing := range r.Members {
			if existing == member {
				removed = i
				break
			}
		}
		if removed < 0 {
			return ErrNotFound
		}
		if len(r.Members) == 1 {
			return ErrLastMember
		}

		r.Members = append(r.Members[:removed], r.Members[removed+1:]...)
		r.Cursor = rebaseCursor(r.Cursor, removed, len(r.Members))
		r.Assignee = rebasePointer(r.Assignee, removed, r.Cursor)
		return nil
	})
	if err != nil {
		return rec, err
	}

	e.emit(ctx, Event{Kind: EventMemberRemoved, Actor: actor, Outgoing: member})
	e.observe(rec)
	return rec, nil
}

// rebaseCursor adjusts the cursor after removing the member at index
// removed, with n members remaining. When the cursor's own member was
// removed, the slot is kept: the member who slid into it was next in order
// anyway. The slot wraps to 0 when it falls off the end.
func rebaseCursor(cursor, removed, n int) int {
	switch {
	case cursor > removed:
		return cursor - 1
	case cursor == removed && cursor >= n:
		return 0
	default:
		return cursor
	}
}

// rebasePointer adjusts a non-cursor pointer after a removal. A pointer to
// the removed member can no longer refer to anyone, so it falls back to
// the already-rebased cursor.
func rebasePointer(p, removed, cursor int) int {
	switch {
	case p > removed:
		return p - 1
	case p == removed:
		return cursor
	default:
		return p
	}
}
