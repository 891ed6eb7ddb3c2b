// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

// ConnectionState tracks where a session is in its lifecycle. The
// happy path walks StateUnknown through StateConnected in order;
// StateErrored and StateClosed are reachable from anywhere.
type ConnectionState int

const (
	// StateUnknown is the state of a freshly constructed session.
	StateUnknown ConnectionState = iota
	// StateConnecting means a transport dial is in progress.
	StateConnecting
	// StateTransportConnected means the wire is up but push
	// subscriptions have not been registered yet.
	StateTransportConnected
	// StateSessionRegistered means push subscriptions are in place
	// and the initial state pull is running.
	StateSessionRegistered
	// StateConnected means the initial pull completed and the model
	// is live.
	StateConnected
	// StateErrored means the last connect or sync attempt failed.
	// Reconnect moves the session back to StateConnecting.
	StateErrored
	// StateClosed means Close was called. Terminal until Reconnect.
	StateClosed
)

func (s ConnectionState) String() string {
	switch s {
	case StateUnknown:
		return "unknown"
	case StateConnecting:
		return "connecting"
	case StateTransportConnected:
		return "transport-connected"
	case StateSessionRegistered:
		return "session-registered"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "errored"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// usable reports whether remote calls may be issued in this state.
func (s ConnectionState) usable() bool {
	switch s {
	case StateTransportConnected, StateSessionRegistered, StateConnected:
		return true
	default:
		return false
	}
}

// setState records a state transition and notifies subscribers.
// Re-entering the current state is a no-op so observers never see
// duplicate transitions.
func (p *Provider) setState(next ConnectionState, detail string) {
	p.mu.Lock()
	if p.state == next {
		p.mu.Unlock()
		return
	}
	prev := p.state
	p.state = next
	p.stateDetail = detail
	p.mu.Unlock()

	p.logger.Info("connection state changed",
		"endpoint", p.id,
		"from", prev.String(),
		"to", next.String(),
		"detail", detail)
	p.emit(Event{Kind: EventStateChanged, State: next, Detail: detail})
}

// State returns the current connection state and its detail string.
func (p *Provider) State() (ConnectionState, string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.stateDetail
}
