package store

import "errors"

var (
	ErrNotFound          = errors.New("record not found")
	ErrDuplicateFeedback = errors.New("duplicate feedback")
)
