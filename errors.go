package scheduler

import "errors"

var (
	// Store errors.
	ErrNoStore    = errors.New("scheduler: no store configured")
	ErrTxConflict = errors.New("scheduler: transaction conflict")

	// Not found / conflict errors.
	ErrJobNotFound      = errors.New("scheduler: job not found")
	ErrJobAlreadyExists = errors.New("scheduler: job already exists")
)
