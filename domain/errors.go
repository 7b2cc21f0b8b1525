package domain

import "errors"

// ErrNotFound is returned by stores when a media key or publisher is unknown.
var ErrNotFound = errors.New("not found")
