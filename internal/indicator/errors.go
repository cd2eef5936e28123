package indicator

import "errors"

// ErrInvalidParameter is returned when an indicator is invoked with a
// non-positive period, an out-of-range alpha, or an unsupported method label.
// No column is written in that case.
var ErrInvalidParameter = errors.New("invalid indicator parameter")

// ErrMissingColumn is returned when a prerequisite column is absent and
// cannot be auto-computed (malformed table guard).
var ErrMissingColumn = errors.New("missing prerequisite column")
