package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
	// ErrStaleResponse marks a recognition response overtaken by a newer
	// round or by a local edit.
	ErrStaleResponse = errors.New("stale recognition response")
	ErrEmptyStroke   = errors.New("empty stroke")
	ErrUpstream      = errors.New("recognition service failure")
)
