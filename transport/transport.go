// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
)

// Connection is a persistent link to one daemon endpoint. All
// payloads are JSON. Implementations must be safe for concurrent use:
// the session core issues overlapping calls from independent
// goroutines.
type Connection interface {
	// Open establishes the link. Returns an error if the endpoint is
	// unreachable. Open on an already-open connection is a no-op.
	Open(ctx context.Context) error

	// Close tears down the link and all subscriptions. Idempotent.
	// Calls in flight when Close is invoked fail with
	// ErrConnectionClosed.
	Close() error

	// Connected reports whether the link is currently up.
	Connected() bool

	// Call invokes a remote procedure and returns its JSON result.
	// A daemon-side rejection surfaces as *RemoteError; a downed link
	// as ErrConnectionClosed; anything else is transient.
	Call(ctx context.Context, uri string, args any) (json.RawMessage, error)

	// Subscribe registers a handler for a push topic. The handler is
	// invoked for every message until the connection closes or the
	// subscription is replaced by a later Subscribe on the same URI.
	Subscribe(ctx context.Context, uri string, handler func(payload json.RawMessage)) error

	// CloseSubscriptions drops all push subscriptions without closing
	// the link.
	CloseSubscriptions() error

	// Publish sends a payload on a push topic.
	Publish(ctx context.Context, uri string, payload any) error
}

// DialFunc constructs an unopened Connection for an endpoint address.
// The session core calls it once per connect attempt; useTLS conveys
// the endpoint's TLS setting to wire implementations (the memory
// implementation ignores it).
type DialFunc func(host string, port int, useTLS bool) Connection
