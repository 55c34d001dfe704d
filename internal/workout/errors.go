package workout

import "errors"

var (
	// ErrUnauthenticated is returned when no current user can be resolved.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound is returned when a plan, session, or exercise does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrNoActiveSession is returned by operations that need a session in progress.
	ErrNoActiveSession = errors.New("no active session")
	// ErrIndexOutOfRange is returned for a set index outside the planned set count.
	ErrIndexOutOfRange = errors.New("set index out of range")
	// ErrIncompleteExercise is returned when an exercise is marked done with sets still open.
	ErrIncompleteExercise = errors.New("exercise has incomplete sets")
	// ErrPersistence wraps a sink failure during finalize. The session stays active.
	ErrPersistence = errors.New("persistence failed")
)
