// Package singleinstance keeps a single host process per user.
package singleinstance

import "errors"

// ErrAlreadyRunning is returned by Acquire when another process holds the lock.
var ErrAlreadyRunning = errors.New("another instance is already running")
