package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrTimeConflict = errors.New("booking window conflicts with an existing booking")

	ErrInvalidTimeRange = errors.New("end date must be after start date")

	ErrPastStart = errors.New("start date cannot be in the past")

	// ErrMirrorMissing means the public copy of a booking could not be
	// located by its correlation key.
	ErrMirrorMissing = errors.New("public booking copy not found")
)
