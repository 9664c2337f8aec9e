package domain

import "errors"

var (
	ErrNotFound = errors.New("not found")
	ErrAuthKey  = errors.New("auth key missing or not RSA")
	ErrLockHeld = errors.New("lock already held")
)
