package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	ErrInvalidID = errors.New("invalid booking ID format")

	ErrSlotTaken = errors.New("slot already has a confirmed booking")

	ErrNotPending = errors.New("booking is not pending")

	ErrNotActive = errors.New("booking is not active")
)
