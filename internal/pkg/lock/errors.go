package lock

import "errors"

// ErrLockTimeout is returned when an account lock cannot be acquired in time.
var ErrLockTimeout = errors.New("account lock acquisition timeout")
