// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry owns the set of daemon sessions a frontend runs.
// Endpoints come from the seed file or from discovery: when a
// connected session reports a new daemon, the registry builds a
// session for it, connects it, and watches its discovery in turn.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fleetmas/fleetmas/lib/cache"
	"github.com/fleetmas/fleetmas/lib/clock"
	"github.com/fleetmas/fleetmas/lib/config"
	"github.com/fleetmas/fleetmas/lib/schema"
	"github.com/fleetmas/fleetmas/provider"
	"github.com/fleetmas/fleetmas/transport"
)

// Config carries the collaborators shared by every session the
// registry builds.
type Config struct {
	// Dial opens wire transports. Required.
	Dial transport.DialFunc

	// Settings is shared by every session. Nil means
	// config.Default().
	Settings *config.Settings

	// Cache persists per-endpoint model snapshots. Optional.
	Cache *cache.Store

	Clock  clock.Clock
	Logger *slog.Logger
}

type entry struct {
	session *provider.Provider
	// discovered marks sessions the registry built from discovery
	// reports; those are closed when their daemon disappears.
	discovered  bool
	cancelWatch func()
}

// Registry tracks sessions keyed by host:port.
type Registry struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	wg sync.WaitGroup
}

// New builds an empty registry.
func New(cfg Config) (*Registry, error) {
	if cfg.Dial == nil {
		return nil, fmt.Errorf("registry: dial function is required")
	}
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Registry{
		cfg:     cfg,
		logger:  cfg.Logger,
		entries: make(map[string]*entry),
	}, nil
}

func (r *Registry) providerConfig(host string, port int, useTLS bool, profile *provider.SessionProfile) provider.Config {
	return provider.Config{
		Host:        host,
		Port:        port,
		UseTLS:      useTLS,
		Dial:        r.cfg.Dial,
		Settings:    r.cfg.Settings,
		Profile:     profile,
		PeerFactory: r.peerFactory,
		Cache:       r.cfg.Cache,
		Clock:       r.cfg.Clock,
		Logger:      r.cfg.Logger,
	}
}

// peerFactory builds sessions for daemons found via discovery. Known
// keys return nil so a repeated report produces neither a session nor
// an event.
func (r *Registry) peerFactory(desc schema.ProviderDescriptor) *provider.Provider {
	key := fmt.Sprintf("%s:%d", desc.Host, desc.Port)
	r.mu.Lock()
	_, known := r.entries[key]
	r.mu.Unlock()
	if known {
		return nil
	}
	peer, err := provider.New(r.providerConfig(desc.Host, desc.Port, false, provider.ReducedProfile()))
	if err != nil {
		r.logger.Warn("building discovered session", "peer", key, "error", err)
		return nil
	}
	return peer
}

// Add registers a session for a seed endpoint without connecting it.
// Adding a key twice returns the existing session.
func (r *Registry) Add(seed config.Endpoint) (*provider.Provider, error) {
	key := fmt.Sprintf("%s:%d", seed.Host, seed.Port)
	r.mu.Lock()
	if e, ok := r.entries[key]; ok {
		r.mu.Unlock()
		return e.session, nil
	}
	r.mu.Unlock()

	session, err := provider.New(r.providerConfig(seed.Host, seed.Port, seed.UseTLS, nil))
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	if e, raced := r.entries[key]; raced {
		r.mu.Unlock()
		session.Close()
		return e.session, nil
	}
	r.entries[key] = &entry{session: session}
	r.mu.Unlock()
	return session, nil
}

// Connect initialises a registered session and starts reacting to
// its discovery reports.
func (r *Registry) Connect(ctx context.Context, key string) error {
	r.mu.Lock()
	e, ok := r.entries[key]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("registry: unknown session %s", key)
	}
	r.watchDiscovery(key, e)
	if err := e.session.Init(ctx); err != nil {
		return err
	}
	return nil
}

// ConnectAll connects every registered session, collecting failures
// instead of stopping at the first. Sessions that fail stay
// registered in their errored state for a later Reconnect.
func (r *Registry) ConnectAll(ctx context.Context) error {
	r.mu.Lock()
	keys := make([]string, 0, len(r.entries))
	for key := range r.entries {
		keys = append(keys, key)
	}
	r.mu.Unlock()

	var firstErr error
	for _, key := range keys {
		if err := r.Connect(ctx, key); err != nil {
			r.logger.Warn("connecting session", "endpoint", key, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// watchDiscovery consumes a session's peer events until the session
// closes its event channels.
func (r *Registry) watchDiscovery(key string, e *entry) {
	r.mu.Lock()
	if e.cancelWatch != nil {
		r.mu.Unlock()
		return
	}
	events, cancel := e.session.Subscribe(provider.EventPeerDiscovered, provider.EventPeerRemoved)
	e.cancelWatch = cancel
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for ev := range events {
			switch ev.Kind {
			case provider.EventPeerDiscovered:
				r.adoptPeer(ev.PeerKey, ev.Peer)
			case provider.EventPeerRemoved:
				r.dropPeer(key, ev.PeerKey)
			}
		}
	}()
}

// adoptPeer takes ownership of a discovery-built session and
// connects it. A losing race against a concurrent adoption or a
// manual Add closes the surplus session.
func (r *Registry) adoptPeer(key string, peer *provider.Provider) {
	if peer == nil {
		return
	}
	r.mu.Lock()
	if _, exists := r.entries[key]; exists {
		r.mu.Unlock()
		peer.Close()
		return
	}
	e := &entry{session: peer, discovered: true}
	r.entries[key] = e
	r.mu.Unlock()

	r.logger.Info("adopting discovered daemon", "endpoint", key)
	r.watchDiscovery(key, e)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := peer.Init(context.Background()); err != nil {
			r.logger.Warn("connecting discovered daemon", "endpoint", key, "error", err)
		}
	}()
}

// dropPeer closes a discovery-built session whose daemon vanished
// from the reporting session's view. Seeded sessions stay: the seed
// file outranks one daemon's opinion.
func (r *Registry) dropPeer(reporter, key string) {
	r.mu.Lock()
	e, ok := r.entries[key]
	if !ok || !e.discovered {
		r.mu.Unlock()
		return
	}
	delete(r.entries, key)
	r.mu.Unlock()

	r.logger.Info("discovered daemon vanished", "endpoint", key, "reported_by", reporter)
	if e.cancelWatch != nil {
		e.cancelWatch()
	}
	e.session.Close()
}

// Get returns the session for key.
func (r *Registry) Get(key string) (*provider.Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Sessions returns every tracked session keyed by host:port.
func (r *Registry) Sessions() map[string]*provider.Provider {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]*provider.Provider, len(r.entries))
	for key, e := range r.entries {
		out[key] = e.session
	}
	return out
}

// Remove closes and forgets one session.
func (r *Registry) Remove(key string) {
	r.mu.Lock()
	e, ok := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()
	if !ok {
		return
	}
	if e.cancelWatch != nil {
		e.cancelWatch()
	}
	e.session.Close()
}

// Close shuts every session down and waits for the discovery
// watchers to drain.
func (r *Registry) Close() {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.entries))
	for key, e := range r.entries {
		entries = append(entries, e)
		delete(r.entries, key)
	}
	r.mu.Unlock()

	for _, e := range entries {
		if e.cancelWatch != nil {
			e.cancelWatch()
		}
		e.session.Close()
	}
	r.wg.Wait()
}
