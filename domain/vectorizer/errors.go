package vectorizer

import "errors"

// The closed set of user-visible failure kinds. Services wrap these with
// %w so callers can branch on the condition without parsing messages.
var (
	// ErrInvalidConfig indicates a pipeline configuration failed validation:
	// bad stage tag, unknown implementation, out-of-range field, or an
	// incompatible stage combination.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidArgument indicates a malformed operation argument outside
	// the configuration documents (bad name, unknown id, missing table).
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicate indicates a name collision: the vectorizer name is taken
	// or a destination object already exists.
	ErrDuplicate = errors.New("duplicate object")
)
