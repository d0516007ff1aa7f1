package codec

import "errors"

var (
	ErrSizeMismatch     = errors.New("declared size does not match written bytes")
	ErrUnsupportedValue = errors.New("unsupported value type")
	ErrShortBuffer      = errors.New("buffer too short")
)
