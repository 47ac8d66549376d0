package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail is returned when a user with the given email already exists.
var ErrDuplicateEmail = errors.New("email already registered")
