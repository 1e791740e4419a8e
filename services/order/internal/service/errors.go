package service

import "errors"

var (
	ErrCheckoutInProgress = errors.New("checkout with this idempotency key is in progress")
	ErrStatusNotAllowed   = errors.New("admins may only set fulfilled or cancelled")
	ErrUnknownStatus      = errors.New("unknown order status")
)
