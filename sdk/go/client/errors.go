package client

import "errors"

// Client-specific errors
var (
	ErrClientClosed     = errors.New("client is closed")
	ErrNotConnected     = errors.New("client is not connected")
	ErrAlreadyConnected = errors.New("client is already connected")
	ErrInvalidConfig    = errors.New("invalid client configuration")
	ErrNotJSON          = errors.New("frame is not a JSON transaction")
	ErrNotBinary        = errors.New("frame is not a binary transaction")
)
