package csvtable

import "errors"

// Sentinel kinds for table errors.
var (
	ErrMissingColumns = errors.New("missing required columns")
	ErrInvalidValue   = errors.New("invalid value")
)
