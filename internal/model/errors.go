package model

import "errors"

// Validation errors for candidates. These are dropped-and-logged at the
// source agent; they never propagate to the request boundary.
var (
	ErrEmptyName     = errors.New("candidate name is empty")
	ErrBadSourceType = errors.New("unknown source type")
)
