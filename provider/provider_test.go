// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fleetmas/fleetmas/lib/cache"
	"github.com/fleetmas/fleetmas/lib/config"
	"github.com/fleetmas/fleetmas/lib/schema"
	"github.com/fleetmas/fleetmas/lib/testutil"
	"github.com/fleetmas/fleetmas/transport"
)

// daemonSim scripts a daemon endpoint for tests: the standard pull
// procedures answer from mutable state, pushes go out through the
// endpoint.
type daemonSim struct {
	ep *transport.MemoryEndpoint

	mu        sync.Mutex
	nodes     []schema.NodeRecord
	launches  []schema.LaunchContent
	screens   []schema.ScreensMapping
	providers []schema.ProviderDescriptor
}

func newDaemonSim() *daemonSim {
	s := &daemonSim{ep: transport.NewMemoryEndpoint()}
	s.ep.Handle(schema.URINodesGetList, func(json.RawMessage) (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.nodes, nil
	})
	s.ep.Handle(schema.URILaunchGetList, func(json.RawMessage) (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.launches, nil
	})
	s.ep.Handle(schema.URIScreenGetList, func(json.RawMessage) (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.screens, nil
	})
	s.ep.Handle(schema.URIProviderGetList, func(json.RawMessage) (any, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.providers, nil
	})
	s.ep.Handle(schema.URIDaemonVersion, func(json.RawMessage) (any, error) {
		return schema.DaemonVersion{Version: "4.2.0", Date: "2026-08-01"}, nil
	})
	s.ep.Handle(schema.URIProviderSystemInfo, func(json.RawMessage) (any, error) {
		return schema.SystemInformation{SystemInfo: map[string]any{"os": "linux"}}, nil
	})
	s.ep.Handle(schema.URIProviderSystemEnv, func(json.RawMessage) (any, error) {
		return schema.SystemEnvironment{Environment: map[string]string{"ROS_DISTRO": "jazzy"}}, nil
	})
	s.ep.Handle(schema.URIProviderGetTimestamp, func(args json.RawMessage) (any, error) {
		var req struct {
			Timestamp float64 `json:"timestamp"`
		}
		_ = json.Unmarshal(args, &req)
		return schema.Timestamp{Timestamp: req.Timestamp}, nil
	})
	return s
}

func (s *daemonSim) setNodes(nodes ...schema.NodeRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = nodes
}

func (s *daemonSim) setLaunches(launches ...schema.LaunchContent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.launches = launches
}

func (s *daemonSim) setProviders(descriptors ...schema.ProviderDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = descriptors
}

func runningNode(name, daemonID string, pid int) schema.NodeRecord {
	return schema.NodeRecord{
		ID:         daemonID,
		Name:       name,
		Namespace:  schema.Namespace(name),
		Status:     schema.StatusRunning,
		PID:        pid,
		NodeAPIURI: "http://robot1:11311/",
		MasterURI:  "http://robot1:11311/",
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestProvider(t *testing.T, sim *daemonSim, mutate func(*Config)) *Provider {
	t.Helper()
	settings := config.Default()
	settings.Session.RetryDelay = config.Duration(time.Millisecond)
	settings.Session.ExclusiveWait = config.Duration(20 * time.Millisecond)
	cfg := Config{
		Host:     "robot1",
		Port:     35430,
		Dial:     sim.ep.Dialer(),
		Settings: settings,
		Logger:   testLogger(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestInitWalksStateMachine(t *testing.T) {
	sim := newDaemonSim()
	sim.setNodes(runningNode("/talker", "n1", 101))
	p := newTestProvider(t, sim, nil)

	events, cancel := p.Subscribe(EventStateChanged)
	defer cancel()

	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer p.Close()

	want := []ConnectionState{
		StateConnecting,
		StateTransportConnected,
		StateSessionRegistered,
		StateConnected,
	}
	for _, w := range want {
		ev := testutil.RequireReceive(t, events, time.Second, "state %s", w)
		if ev.State != w {
			t.Fatalf("state = %s, want %s", ev.State, w)
		}
	}

	nodes := p.Nodes()
	if len(nodes) != 1 || nodes[0].Name != "/talker" {
		t.Fatalf("nodes = %+v, want one /talker", nodes)
	}
	if nodes[0].Status != schema.StatusRunning {
		t.Fatalf("status = %s, want running", nodes[0].Status)
	}
	if v := p.Version(); v.Version != "4.2.0" {
		t.Fatalf("version = %q, want 4.2.0", v.Version)
	}
}

func TestInitDialFailureThenReconnect(t *testing.T) {
	sim := newDaemonSim()
	sim.ep.SetOnline(false)
	p := newTestProvider(t, sim, nil)

	if err := p.Init(context.Background()); err == nil {
		t.Fatal("Init against offline endpoint succeeded")
	}
	if state, _ := p.State(); state != StateErrored {
		t.Fatalf("state = %s, want errored", state)
	}

	sim.ep.SetOnline(true)
	if err := p.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	defer p.Close()
	if state, _ := p.State(); state != StateConnected {
		t.Fatalf("state = %s, want connected", state)
	}
}

func TestReconnectAfterSyncFailureDropsStaleConnection(t *testing.T) {
	sim := newDaemonSim()
	sim.setNodes(runningNode("/talker", "n1", 101))

	var pullBroken atomic.Bool
	pullBroken.Store(true)
	sim.ep.Handle(schema.URINodesGetList, func(json.RawMessage) (any, error) {
		if pullBroken.Load() {
			return nil, errors.New("daemon starting up")
		}
		sim.mu.Lock()
		defer sim.mu.Unlock()
		return sim.nodes, nil
	})

	p := newTestProvider(t, sim, nil)
	if err := p.Init(context.Background()); err == nil {
		t.Fatal("Init succeeded while the node pull was failing")
	}
	if state, _ := p.State(); state != StateErrored {
		t.Fatalf("state = %s, want errored", state)
	}

	pullBroken.Store(false)
	if err := p.Reconnect(context.Background()); err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	defer p.Close()
	if state, _ := p.State(); state != StateConnected {
		t.Fatalf("state = %s, want connected", state)
	}

	// One change signal must cause exactly one pull. A second pull
	// means the transport abandoned by the failed connect kept its
	// push subscriptions.
	before := sim.ep.CallCount(schema.URINodesGetList)
	if err := sim.ep.Publish(schema.URINodesChanged, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if got := sim.ep.CallCount(schema.URINodesGetList) - before; got != 1 {
		t.Fatalf("node pulls after push = %d, want 1", got)
	}
}

func TestCloseClosesEventChannels(t *testing.T) {
	sim := newDaemonSim()
	p := newTestProvider(t, sim, nil)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}

	events, cancel := p.Subscribe()
	defer cancel()
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if state, _ := p.State(); state != StateClosed {
		t.Fatalf("state = %s, want closed", state)
	}

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-events:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("event channel not closed after Close")
		}
	}
}

func TestSnapshotRestoredAcrossRestart(t *testing.T) {
	store, err := cache.New(t.TempDir(), cache.CompressionZstd)
	if err != nil {
		t.Fatalf("cache.New: %v", err)
	}

	sim := newDaemonSim()
	sim.setNodes(runningNode("/talker", "n1", 101), runningNode("/listener", "n2", 102))
	p := newTestProvider(t, sim, func(cfg *Config) { cfg.Cache = store })
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	stableID := p.Nodes()[0].ID
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// A fresh session over the same cache sees the last known world
	// before connecting, with liveness reset to unknown.
	restored := newTestProvider(t, sim, func(cfg *Config) { cfg.Cache = store })
	nodes := restored.Nodes()
	if len(nodes) != 2 {
		t.Fatalf("restored %d nodes, want 2", len(nodes))
	}
	for _, n := range nodes {
		if n.Status != schema.StatusUnknown {
			t.Fatalf("restored node %s status = %s, want unknown", n.Name, n.Status)
		}
		if n.PID != 0 {
			t.Fatalf("restored node %s pid = %d, want 0", n.Name, n.PID)
		}
	}
	if nodes[0].ID != stableID {
		t.Fatalf("restored id = %s, want %s", nodes[0].ID, stableID)
	}

	if err := restored.PurgeCache(); err != nil {
		t.Fatalf("PurgeCache: %v", err)
	}
	again := newTestProvider(t, sim, func(cfg *Config) { cfg.Cache = store })
	if len(again.Nodes()) != 0 {
		t.Fatal("nodes restored after purge")
	}
}
