// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrConnectionClosed is returned by Connection operations when the
// link is down. The dispatcher treats it as terminal: retrying on a
// closed link cannot succeed and only delays the state machine's
// error transition.
var ErrConnectionClosed = errors.New("transport: connection closed")

// RemoteError is a structured rejection from the daemon. Callers use
// errors.As to extract it:
//
//	var remoteErr *transport.RemoteError
//	if errors.As(err, &remoteErr) { ... }
//
// A RemoteError means the daemon understood the call and refused it,
// so the dispatcher never retries one.
type RemoteError struct {
	// Code is the daemon's error class (e.g., "runtime_error",
	// "no_such_procedure").
	Code string `json:"error"`
	// Message is the human-readable detail from the daemon.
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("transport: remote error %s: %s", e.Code, e.Message)
}

// IsRemoteError checks whether err is a *RemoteError with the given
// code.
func IsRemoteError(err error, code string) bool {
	var remoteErr *RemoteError
	if errors.As(err, &remoteErr) {
		return remoteErr.Code == code
	}
	return false
}

// DecodeError classifies a raw error payload from the wire. If the
// payload is the daemon's JSON runtime-error marker, the result is a
// *RemoteError; otherwise the payload is wrapped as an opaque
// transient error. Wire implementations call this at the boundary so
// the session core never touches loosely-typed payloads.
func DecodeError(payload []byte) error {
	var remote RemoteError
	if err := json.Unmarshal(payload, &remote); err == nil && remote.Code != "" {
		return &remote
	}
	return fmt.Errorf("transport: call failed: %s", payload)
}
