// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time abstraction for testability.
//
// Production code accepts a Clock parameter instead of calling time.Now,
// time.After, time.NewTicker, or time.Sleep directly. Real() provides the
// standard library behavior; Fake() provides a deterministic clock that
// advances only when Advance is called.
//
// The session core depends on time in three places: the retry delay
// between call attempts, the bounded wait for a duplicate exclusive call,
// and the clock-skew sampling of the remote daemon. All three are driven
// through this interface so tests never sleep on the wall clock.
//
// When a goroutine calls Sleep, After, or NewTicker on a FakeClock, it
// registers a pending waiter. Tests use WaitForTimers to block until a
// given number of waiters are registered before calling Advance, which
// removes the race between timer registration and time advancement.
package clock
