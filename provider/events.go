// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"time"

	"github.com/fleetmas/fleetmas/lib/schema"
)

// EventKind names one class of session event.
type EventKind string

const (
	// EventStateChanged fires on every connection state transition.
	EventStateChanged EventKind = "state-changed"
	// EventNodesChanged fires when the merged node model changed.
	EventNodesChanged EventKind = "nodes-changed"
	// EventLaunchesChanged fires when the set of loaded launch files
	// or their contents changed.
	EventLaunchesChanged EventKind = "launches-changed"
	// EventScreensChanged fires when the screen session mapping
	// changed.
	EventScreensChanged EventKind = "screens-changed"
	// EventWarningsChanged fires when the daemon warning groups
	// changed.
	EventWarningsChanged EventKind = "warnings-changed"
	// EventDiagnosticsChanged fires when new diagnostic records were
	// appended to one or more nodes.
	EventDiagnosticsChanged EventKind = "diagnostics-changed"
	// EventPeerDiscovered fires when discovery reported a daemon this
	// session had not seen before. The event carries the freshly
	// built, not yet connected peer session.
	EventPeerDiscovered EventKind = "peer-discovered"
	// EventPeerRemoved fires when a previously reported daemon
	// disappeared from discovery.
	EventPeerRemoved EventKind = "peer-removed"
	// EventDelayUpdated fires after a round trip measurement updated
	// the clock skew estimate.
	EventDelayUpdated EventKind = "delay-updated"
	// EventActivityChanged fires when the session goes from idle to
	// having remote calls in flight, and back.
	EventActivityChanged EventKind = "activity-changed"
	// EventPathChanged fires when the daemon signalled that a watched
	// file or directory changed on its host.
	EventPathChanged EventKind = "path-changed"
)

// Event is one notification from a session. Only the fields relevant
// to the Kind are populated.
type Event struct {
	Kind EventKind

	// State and Detail accompany EventStateChanged.
	State  ConnectionState
	Detail string

	// Peer and PeerKey accompany EventPeerDiscovered and
	// EventPeerRemoved. Peer is nil on removal.
	Peer       *Provider
	PeerKey    string
	Descriptor schema.ProviderDescriptor

	// Skew accompanies EventDelayUpdated.
	Skew time.Duration

	// Busy accompanies EventActivityChanged.
	Busy bool

	// Path accompanies EventPathChanged.
	Path string
}

const eventBuffer = 64

type eventSub struct {
	kinds map[EventKind]bool // nil means all kinds
	ch    chan Event
}

// Subscribe returns a channel of session events and a cancel
// function. With no kinds given the channel receives every event;
// otherwise only the listed kinds. The channel is buffered; events
// are dropped, not blocked on, when a subscriber falls behind.
func (p *Provider) Subscribe(kinds ...EventKind) (<-chan Event, func()) {
	sub := &eventSub{ch: make(chan Event, eventBuffer)}
	if len(kinds) > 0 {
		sub.kinds = make(map[EventKind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}
	p.subsMu.Lock()
	p.subs[sub] = struct{}{}
	p.subsMu.Unlock()

	cancel := func() {
		p.subsMu.Lock()
		if _, ok := p.subs[sub]; ok {
			delete(p.subs, sub)
			close(sub.ch)
		}
		p.subsMu.Unlock()
	}
	return sub.ch, cancel
}

func (p *Provider) emit(ev Event) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for sub := range p.subs {
		if sub.kinds != nil && !sub.kinds[ev.Kind] {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			p.logger.Debug("event dropped, subscriber not keeping up",
				"endpoint", p.id, "kind", string(ev.Kind))
		}
	}
}

func (p *Provider) closeSubscribers() {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for sub := range p.subs {
		delete(p.subs, sub)
		close(sub.ch)
	}
}
