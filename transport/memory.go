// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Handler services one remote procedure on a MemoryEndpoint. The
// returned value is JSON-marshaled as the call result; a returned
// *RemoteError surfaces to the caller as a daemon rejection, any
// other error as a transient failure.
type Handler func(args json.RawMessage) (any, error)

// MemoryEndpoint is an in-process daemon endpoint. Tests script it
// with Handle and Publish; the console's demo mode runs a simulated
// daemon on one. Safe for concurrent use.
type MemoryEndpoint struct {
	mu        sync.Mutex
	online    bool
	handlers  map[string]Handler
	calls     map[string]int
	published map[string][]json.RawMessage
	conns     map[*MemoryConnection]struct{}
}

// NewMemoryEndpoint returns an online endpoint with no procedures
// registered.
func NewMemoryEndpoint() *MemoryEndpoint {
	return &MemoryEndpoint{
		online:    true,
		handlers:  make(map[string]Handler),
		calls:     make(map[string]int),
		published: make(map[string][]json.RawMessage),
		conns:     make(map[*MemoryConnection]struct{}),
	}
}

// Handle registers (or replaces) the handler for a procedure URI.
func (e *MemoryEndpoint) Handle(uri string, handler Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[uri] = handler
}

// CallCount returns how many calls reached the handler for uri,
// including calls that returned errors.
func (e *MemoryEndpoint) CallCount(uri string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[uri]
}

// SetOnline flips the endpoint's reachability. While offline, Open
// fails and every operation on existing connections returns
// ErrConnectionClosed, modeling a daemon crash or network partition.
func (e *MemoryEndpoint) SetOnline(online bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.online = online
}

// Publish delivers a push message to every connection subscribed to
// uri. Delivery is synchronous: handlers have run when Publish
// returns, which keeps tests deterministic.
func (e *MemoryEndpoint) Publish(uri string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal push payload: %w", err)
	}

	e.mu.Lock()
	var handlers []func(json.RawMessage)
	for conn := range e.conns {
		if handler := conn.subscription(uri); handler != nil {
			handlers = append(handlers, handler)
		}
	}
	e.mu.Unlock()

	for _, handler := range handlers {
		handler(data)
	}
	return nil
}

// Published returns the payloads clients published on uri, oldest
// first.
func (e *MemoryEndpoint) Published(uri string) []json.RawMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]json.RawMessage(nil), e.published[uri]...)
}

// Dialer returns a DialFunc producing connections to this endpoint.
// The host, port, and TLS arguments are accepted and ignored — the
// endpoint itself is the address.
func (e *MemoryEndpoint) Dialer() DialFunc {
	return func(host string, port int, useTLS bool) Connection {
		return &MemoryConnection{endpoint: e}
	}
}

// MemoryConnection is one client link to a MemoryEndpoint.
type MemoryConnection struct {
	endpoint *MemoryEndpoint

	mu   sync.Mutex
	open bool
	subs map[string]func(json.RawMessage)
}

// Open registers the connection with the endpoint. Fails when the
// endpoint is offline.
func (c *MemoryConnection) Open(ctx context.Context) error {
	c.endpoint.mu.Lock()
	defer c.endpoint.mu.Unlock()
	if !c.endpoint.online {
		return fmt.Errorf("transport: endpoint unreachable")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return nil
	}
	c.open = true
	c.subs = make(map[string]func(json.RawMessage))
	c.endpoint.conns[c] = struct{}{}
	return nil
}

// Close drops the link and all subscriptions. Idempotent.
func (c *MemoryConnection) Close() error {
	c.endpoint.mu.Lock()
	delete(c.endpoint.conns, c)
	c.endpoint.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	c.subs = nil
	return nil
}

// Connected reports whether the link is up end to end.
func (c *MemoryConnection) Connected() bool {
	c.endpoint.mu.Lock()
	online := c.endpoint.online
	c.endpoint.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open && online
}

// Call invokes the endpoint's handler for uri. Handler errors pass
// through unchanged so tests control the failure class the session
// core observes.
func (c *MemoryConnection) Call(ctx context.Context, uri string, args any) (json.RawMessage, error) {
	if !c.Connected() {
		return nil, ErrConnectionClosed
	}

	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal call args: %w", err)
	}

	c.endpoint.mu.Lock()
	c.endpoint.calls[uri]++
	handler, ok := c.endpoint.handlers[uri]
	c.endpoint.mu.Unlock()

	if !ok {
		return nil, &RemoteError{Code: "no_such_procedure", Message: uri}
	}

	result, err := handler(encoded)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("transport: marshal call result: %w", err)
	}
	return data, nil
}

// Subscribe registers a push handler for uri. A second Subscribe on
// the same URI replaces the first.
func (c *MemoryConnection) Subscribe(ctx context.Context, uri string, handler func(json.RawMessage)) error {
	if !c.Connected() {
		return ErrConnectionClosed
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[uri] = handler
	return nil
}

// CloseSubscriptions drops all push subscriptions, keeping the link.
func (c *MemoryConnection) CloseSubscriptions() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.subs != nil {
		c.subs = make(map[string]func(json.RawMessage))
	}
	return nil
}

// Publish records a client-to-daemon push on the endpoint.
func (c *MemoryConnection) Publish(ctx context.Context, uri string, payload any) error {
	if !c.Connected() {
		return ErrConnectionClosed
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("transport: marshal publish payload: %w", err)
	}
	c.endpoint.mu.Lock()
	defer c.endpoint.mu.Unlock()
	c.endpoint.published[uri] = append(c.endpoint.published[uri], data)
	return nil
}

// subscription returns the handler for uri, or nil. Called by the
// endpoint with its own lock held; takes only the connection lock.
func (c *MemoryConnection) subscription(uri string) func(json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	return c.subs[uri]
}
