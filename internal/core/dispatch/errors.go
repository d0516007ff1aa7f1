package dispatch

import "errors"

var (
	ErrUnknownEncoding    = errors.New("unknown dispatch encoding")
	ErrUnknownCompression = errors.New("unknown dispatch compression")
)
