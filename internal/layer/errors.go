package layer

import "errors"

var (
	// ErrShapeMismatch reports a map, kernel or pool size that does not fit
	// the arithmetic it was used in.
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrInvalidOperation reports a kernel or bias operation on a layer kind
	// that carries no parameters, or a layer wired twice.
	ErrInvalidOperation = errors.New("invalid layer operation")

	// ErrIndexOutOfRange reports a record, map or cell index outside the
	// allocated grid.
	ErrIndexOutOfRange = errors.New("index out of range")
)
