package models

import "errors"

// Custom errors
var (
	ErrNotFound           = errors.New("position not found")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrInvalidObservation = errors.New("invalid observation")
)
