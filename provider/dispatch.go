// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fleetmas/fleetmas/transport"
)

// inflightCall tracks concurrent invocations of one operation key.
// done is closed when the count drops to zero and exclusive waiters
// may try again.
type inflightCall struct {
	count int
	done  chan struct{}
	once  sync.Once
}

func (c *inflightCall) release() {
	c.once.Do(func() { close(c.done) })
}

// beginCall registers an invocation under key. Non-exclusive calls
// always proceed. An exclusive call that finds the key busy waits on
// the in-flight call's completion, bounded by the configured wait;
// when the wait expires the call fails with AlreadyInProgressError
// without ever reaching the wire.
func (p *Provider) beginCall(key string, exclusive bool) error {
	var expired <-chan time.Time
	for {
		p.mu.Lock()
		if p.closedFlag || !p.state.usable() {
			closed := p.closedFlag
			p.mu.Unlock()
			if closed {
				return transport.ErrConnectionClosed
			}
			return ErrNotConnected
		}
		entry := p.inflight[key]
		if entry == nil {
			entry = &inflightCall{count: 1, done: make(chan struct{})}
			p.inflight[key] = entry
			busy := len(p.inflight) == 1
			p.mu.Unlock()
			if busy {
				p.emit(Event{Kind: EventActivityChanged, Busy: true})
			}
			return nil
		}
		if !exclusive {
			entry.count++
			p.mu.Unlock()
			return nil
		}
		done := entry.done
		closed := p.closed
		p.mu.Unlock()

		if expired == nil {
			expired = p.clk.After(p.exclusiveWait)
		}
		select {
		case <-done:
			// The previous call finished; try to take the slot.
		case <-expired:
			return &AlreadyInProgressError{Operation: key}
		case <-closed:
			return transport.ErrConnectionClosed
		}
	}
}

func (p *Provider) endCall(key string) {
	p.mu.Lock()
	entry := p.inflight[key]
	idle := false
	if entry != nil {
		entry.count--
		if entry.count <= 0 {
			delete(p.inflight, key)
			entry.release()
			idle = len(p.inflight) == 0
		}
	}
	p.mu.Unlock()
	if idle {
		p.emit(Event{Kind: EventActivityChanged, Busy: false})
	}
}

// call invokes a remote procedure with the operation keyed by its
// URI. See callKeyed.
func (p *Provider) call(ctx context.Context, uri string, args any, exclusive bool) (json.RawMessage, error) {
	return p.callKeyed(ctx, uri, uri, args, exclusive)
}

// callKeyed invokes uri on the daemon under a bounded retry loop.
// Daemon-reported errors and a closed connection end the loop
// immediately; transient transport failures are retried up to the
// configured attempt budget with a fixed delay between attempts. The
// closed flag is rechecked before every attempt so Close cuts retry
// loops short.
func (p *Provider) callKeyed(ctx context.Context, uri, key string, args any, exclusive bool) (json.RawMessage, error) {
	if err := p.beginCall(key, exclusive); err != nil {
		return nil, err
	}
	defer p.endCall(key)

	conn, err := p.connection()
	if err != nil {
		return nil, err
	}

	var last error
	for attempt := 1; attempt <= p.callAttempts; attempt++ {
		if p.isClosed() {
			return nil, transport.ErrConnectionClosed
		}
		reply, err := conn.Call(ctx, uri, args)
		if err == nil {
			return reply, nil
		}
		var remote *transport.RemoteError
		if errors.As(err, &remote) {
			return nil, err
		}
		if errors.Is(err, transport.ErrConnectionClosed) {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		last = err
		if attempt == p.callAttempts {
			break
		}
		p.logger.Debug("call failed, retrying",
			"uri", uri, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-p.closedChan():
			return nil, transport.ErrConnectionClosed
		case <-p.clk.After(p.retryDelay):
		}
	}
	return nil, &MaxAttemptsError{Operation: uri, Attempts: p.callAttempts, Last: last}
}

// callInto invokes uri and decodes the JSON reply into out.
func (p *Provider) callInto(ctx context.Context, uri string, args any, exclusive bool, out any) error {
	reply, err := p.call(ctx, uri, args, exclusive)
	if err != nil {
		return err
	}
	if out == nil || len(reply) == 0 {
		return nil
	}
	if err := json.Unmarshal(reply, out); err != nil {
		return fmt.Errorf("provider: decoding reply for %s: %w", uri, err)
	}
	return nil
}
