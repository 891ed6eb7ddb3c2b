// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"fmt"

	"github.com/fleetmas/fleetmas/lib/schema"
)

// RefreshProviders pulls the discovery list and reconciles it with
// the known peers.
func (p *Provider) RefreshProviders(ctx context.Context) error {
	var descriptors []schema.ProviderDescriptor
	if err := p.callInto(ctx, schema.URIProviderGetList, nil, false, &descriptors); err != nil {
		return err
	}
	p.updateProviderList(descriptors)
	return nil
}

// updateProviderList reconciles a discovery report. The origin entry
// updates this session's own identity; every other entry is a peer.
// Peers are keyed by host:port, so a repeated report with the same
// membership produces no events and no new sessions. Sessions built
// for new peers are handed to subscribers unconnected.
func (p *Provider) updateProviderList(descriptors []schema.ProviderDescriptor) {
	type peerEvent struct {
		kind EventKind
		key  string
		peer *Provider
		desc schema.ProviderDescriptor
	}
	var events []peerEvent

	p.mu.Lock()
	seen := make(map[string]struct{}, len(descriptors))
	for _, desc := range descriptors {
		if desc.Origin {
			p.applySelfLocked(desc)
			continue
		}
		if desc.Host == "" || desc.Port == 0 {
			continue
		}
		key := fmt.Sprintf("%s:%d", desc.Host, desc.Port)
		if key == p.id {
			// Some daemons report themselves without the origin flag.
			p.applySelfLocked(desc)
			continue
		}
		seen[key] = struct{}{}
		if _, known := p.peers[key]; known {
			continue
		}
		factory := p.cfg.PeerFactory
		p.mu.Unlock()
		peer := factory(desc)
		p.mu.Lock()
		if peer == nil {
			continue
		}
		if _, raced := p.peers[key]; raced {
			continue
		}
		p.peers[key] = peer
		events = append(events, peerEvent{kind: EventPeerDiscovered, key: key, peer: peer, desc: desc})
	}
	for key, peer := range p.peers {
		if _, ok := seen[key]; ok {
			continue
		}
		delete(p.peers, key)
		events = append(events, peerEvent{kind: EventPeerRemoved, key: key, peer: peer})
	}
	p.mu.Unlock()

	for _, ev := range events {
		p.logger.Info("discovery peer change", "kind", string(ev.kind), "peer", ev.key)
		e := Event{Kind: ev.kind, PeerKey: ev.key, Descriptor: ev.desc}
		if ev.kind == EventPeerDiscovered {
			e.Peer = ev.peer
		}
		p.emit(e)
	}
}

// applySelfLocked folds the daemon's self-description into the
// session. Hostnames only ever accumulate; a report missing an alias
// seen earlier does not shrink the set.
func (p *Provider) applySelfLocked(desc schema.ProviderDescriptor) {
	if desc.Name != "" {
		p.name = desc.Name
	}
	if desc.MasterURI != "" {
		p.masterURI = desc.MasterURI
	}
	if desc.Host != "" {
		p.hostnames[desc.Host] = struct{}{}
	}
	for _, h := range desc.Hostnames {
		if h != "" {
			p.hostnames[h] = struct{}{}
		}
	}
}
