package repository

import "errors"

var (
	ErrOrderNotFound     = errors.New("order not found")
	ErrAttemptNotFound   = errors.New("payment attempt not found")
	ErrDuplicateAttempt  = errors.New("payment attempt already exists for idempotency key")
	ErrAttemptNotPending = errors.New("payment attempt is no longer initiated")
)
