package transaction

import "errors"

// ErrUnknownOperation means an operation kind reached Simplify without a
// coalescing rule. It indicates a code/schema mismatch and is raised as a panic.
var ErrUnknownOperation = errors.New("unknown operation kind")
