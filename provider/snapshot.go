// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"errors"
	"time"

	"github.com/fleetmas/fleetmas/lib/cache"
	"github.com/fleetmas/fleetmas/lib/schema"
)

// snapshot is the persisted per-endpoint model state. Loaded on
// construction so a restarted frontend shows the last known world
// before the first connect.
type snapshot struct {
	SavedAt  time.Time                       `cbor:"saved_at"`
	Nodes    []Node                          `cbor:"nodes"`
	Launches map[string]schema.LaunchContent `cbor:"launches"`
}

func (p *Provider) snapshotKey() string {
	return "provider/" + p.id
}

// saveSnapshot persists the current model. Failures are logged and
// otherwise ignored; the cache is best effort.
func (p *Provider) saveSnapshot() {
	if p.cfg.Cache == nil {
		return
	}
	p.mu.Lock()
	snap := snapshot{
		SavedAt:  p.clk.Now(),
		Nodes:    p.model.snapshot(),
		Launches: make(map[string]schema.LaunchContent, len(p.model.launches)),
	}
	for k, v := range p.model.launches {
		snap.Launches[k] = v
	}
	p.mu.Unlock()

	if err := p.cfg.Cache.Put(p.snapshotKey(), snap); err != nil {
		p.logger.Debug("persisting model snapshot", "error", err)
	}
}

// loadSnapshot restores the last persisted model. Every restored node
// is marked unknown: nothing about its liveness is trustworthy until
// the first pull.
func (p *Provider) loadSnapshot() {
	var snap snapshot
	if err := p.cfg.Cache.Get(p.snapshotKey(), &snap); err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			p.logger.Debug("loading model snapshot", "error", err)
		}
		return
	}
	for i := range snap.Nodes {
		n := snap.Nodes[i]
		n.Status = schema.StatusUnknown
		n.PID = 0
		node := n
		p.model.insert(&node)
	}
	if snap.Launches != nil {
		p.model.launches = snap.Launches
	}
	p.logger.Debug("restored model snapshot",
		"nodes", len(snap.Nodes), "saved_at", snap.SavedAt)
}

// PurgeCache removes this endpoint's persisted snapshot.
func (p *Provider) PurgeCache() error {
	if p.cfg.Cache == nil {
		return nil
	}
	return p.cfg.Cache.Delete(p.snapshotKey())
}
