package metric

import "errors"

// ErrInvalidIndex is returned by group Set/Histogram.Set when idx >= N.
var ErrInvalidIndex = errors.New("metric: invalid index")
