package order

import "errors"

// ErrOrderNotFound is returned by the repository when no order matches
// the requested id.
var ErrOrderNotFound = errors.New("order not found")
