package repository

import "errors"

// Sentinel kinds for review queue errors.
var (
	ErrNotFound     = errors.New("table not found")
	ErrInvalidLimit = errors.New("invalid review limit")
	ErrInvalidItem  = errors.New("invalid review item")
)
