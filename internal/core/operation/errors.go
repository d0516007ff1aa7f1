package operation

import "errors"

var (
	ErrKindMismatch       = errors.New("operations have different kinds")
	ErrUnregisteredEntity = errors.New("entity is not registered")
	ErrNilEntity          = errors.New("nil entity")
)
