package chat

import "errors"

// Rejections surfaced to callers. Each one leaves no side effects behind:
// nothing is partially written when a submit or join is refused.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrNotAMember        = errors.New("not an active member of this room")
	ErrRoomInactive      = errors.New("room is no longer active")
	ErrSubjectClosed     = errors.New("subject does not accept new chat rooms")
	ErrSelfJoinForbidden = errors.New("cannot open a chat with yourself")
)

// ErrDuplicateRoom signals that a concurrent creation won the race for the
// same (subject, counterpart) pair. Stores return it so the directory can
// re-fetch the winner; it is never surfaced to callers.
var ErrDuplicateRoom = errors.New("room already exists for this subject")
