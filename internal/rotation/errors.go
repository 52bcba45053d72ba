package rotation

import "errors"

var (
	// ErrRosterEmpty is reported when an operation needs at least one member.
	ErrRosterEmpty = errors.New("rotation: no members configured")
	// ErrNotAssignee is reported when a confirming actor is not the current assignee.
	ErrNotAssignee = errors.New("rotation: actor is not the current assignee")
	// ErrAlreadyPresent is reported when adding a member that is already in the roster.
	ErrAlreadyPresent = errors.New("rotation: member already present")
	// ErrNotFound is reported when removing a member that is not in the roster.
	ErrNotFound = errors.New("rotation: member not found")
	// ErrLastMember is reported when a removal would empty the roster.
	ErrLastMember = errors.New("rotation: cannot remove the last member")
	// ErrInvalidMember is reported when a member identity is blank.
	ErrInvalidMember = errors.New("rotation: invalid member identity")
)
