// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned when an operation needs a live
// connection and the session does not have one.
var ErrNotConnected = errors.New("provider: not connected")

// AlreadyInProgressError is returned when an exclusive call finds the
// same operation still in flight after the bounded wait expired.
type AlreadyInProgressError struct {
	Operation string
}

func (e *AlreadyInProgressError) Error() string {
	return fmt.Sprintf("provider: %s already in progress", e.Operation)
}

// IsAlreadyInProgress reports whether err is an AlreadyInProgressError.
func IsAlreadyInProgress(err error) bool {
	var aip *AlreadyInProgressError
	return errors.As(err, &aip)
}

// MaxAttemptsError is returned when a call exhausted its attempt
// budget without a definitive answer from the daemon. Last holds the
// error from the final attempt.
type MaxAttemptsError struct {
	Operation string
	Attempts  int
	Last      error
}

func (e *MaxAttemptsError) Error() string {
	return fmt.Sprintf("provider: %s failed after %d attempts: %v", e.Operation, e.Attempts, e.Last)
}

func (e *MaxAttemptsError) Unwrap() error { return e.Last }
