//go:build windows

package singleinstance

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

// Lock is a named mutex held for the life of the process.
type Lock struct {
	handle windows.Handle
}

// Acquire creates the named mutex Local\<name>.
func Acquire(name string) (*Lock, error) {
	return AcquireAt(`Local\` + name)
}

// AcquireAt creates a mutex with an explicit object name.
func AcquireAt(name string) (*Lock, error) {
	ptr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return nil, fmt.Errorf("invalid mutex name: %w", err)
	}
	h, err := windows.CreateMutex(nil, false, ptr)
	if err != nil {
		if errors.Is(err, windows.ERROR_ALREADY_EXISTS) {
			if h != 0 {
				windows.CloseHandle(h)
			}
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to create mutex: %w", err)
	}
	return &Lock{handle: h}, nil
}

// Release closes the mutex handle. Safe to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.handle == 0 {
		return nil
	}
	h := l.handle
	l.handle = 0
	return windows.CloseHandle(h)
}
