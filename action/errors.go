package action

import "errors"

const Namespace = "goalwire"

var (
	// ErrInactiveHandle reports an operation on a handle that has been
	// shut down. Callers that ignore it are safe: the operation is a
	// no-op and reads return defaults.
	ErrInactiveHandle = errors.New(Namespace + ": operation on an inactive goal handle")
	// ErrInvalidSpec reports construction of a client or manager from an
	// action specification that failed to resolve its message types.
	ErrInvalidSpec = errors.New(Namespace + ": action specification is not valid")
	// ErrNoGoal reports a resend on a handle whose goal envelope is
	// missing.
	ErrNoGoal = errors.New(Namespace + ": no goal envelope retained for resend")
)
