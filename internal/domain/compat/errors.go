package compat

import "errors"

// Sentinel kinds for compatibility input errors. The engine itself never
// returns them; they are used by boundary validation.
var (
	ErrUnknownType = errors.New("unknown type code")
)
