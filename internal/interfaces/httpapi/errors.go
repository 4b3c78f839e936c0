package httpapi

import "errors"

var errInvalidLimit = errors.New("invalid 'limit' query parameter: must be a non-negative integer")
