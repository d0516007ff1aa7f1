package websocket

import "errors"

var (
	ErrConnectionClosed = errors.New("connection is closed")
	ErrNotConnected     = errors.New("user is not connected")
)
