package domain

import "errors"

// ErrStale is returned when a completed request was superseded by a newer
// one for the same resource and its result was discarded.
var ErrStale = errors.New("superseded by a newer request")
