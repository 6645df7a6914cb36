package types

import "errors"

// Domain error taxonomy. Services wrap these with context via fmt.Errorf and
// %w; the HTTP layer maps them to status codes in pkg/response.
var (
	// ErrNotFound means a referenced order or record id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidArgument means the input is malformed or incomplete and the
	// caller must correct it before retrying.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidState means the operation is not permitted in the order's
	// current status/sub-status. The caller should re-query state first.
	ErrInvalidState = errors.New("invalid state")

	// ErrSerialization means an amendment snapshot failed to encode or
	// decode. Not user-correctable.
	ErrSerialization = errors.New("serialization failure")
)
