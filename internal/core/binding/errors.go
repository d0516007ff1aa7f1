package binding

import "errors"

var (
	ErrNilBinding        = errors.New("binding is nil")
	ErrNodeMismatch      = errors.New("bindings target different nodes")
	ErrEmptyMultiBinding = errors.New("multi binding has no parts")
)
