package environment

import "errors"

var (
	ErrClosed        = errors.New("environment is closed")
	ErrNodeExists    = errors.New("node already in environment")
	ErrNodeNotFound  = errors.New("node not found")
	ErrInvalidConfig = errors.New("invalid environment configuration")
)
