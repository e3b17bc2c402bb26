package alloc

import (
	"errors"
	"fmt"
)

var (
	// ErrExhausted indicates no free interval or unit large enough remains.
	ErrExhausted = errors.New("alloc: exhausted")

	// ErrInUse indicates a specific range or unit collides with an existing allocation.
	ErrInUse = errors.New("alloc: in use")

	// ErrOutOfRange indicates a specific request falls outside the allocator's bound.
	ErrOutOfRange = errors.New("alloc: out of range")

	// ErrInvalidArgument indicates a malformed request (zero size, bad attribute).
	ErrInvalidArgument = errors.New("alloc: invalid argument")
)

// PreconditionError is the panic value raised when a caller breaks a contract
// that indicates a programming error rather than a resource condition: double
// free, destroying a pool with live allocations, deriving a non-root pool with
// no parent, or a misaligned page base.
type PreconditionError struct {
	Op  string
	Msg string
}

func (e *PreconditionError) Error() string {
	return "alloc: " + e.Op + ": " + e.Msg
}

// Fail panics with a *PreconditionError. It never returns.
func Fail(op, format string, args ...any) {
	panic(&PreconditionError{Op: op, Msg: fmt.Sprintf(format, args...)})
}
