package users

import "errors"

var (
	ErrUserExists  = errors.New("user already joined")
	ErrUnknownUser = errors.New("unknown user")
	ErrNotActive   = errors.New("user is not active")
)
