package replay

import "errors"

// Sentinel errors returned by Run.
var (
	ErrNotSettled = errors.New("service did not apply all observations in time")
	ErrMismatch   = errors.New("service results differ from local computation")
)
