package matching

import "errors"

// ErrInsufficientPopulation is returned when there are too few distinct
// profiles to produce a ranking.
var ErrInsufficientPopulation = errors.New("insufficient population")
