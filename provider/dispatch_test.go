// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/fleetmas/fleetmas/lib/config"
	"github.com/fleetmas/fleetmas/lib/schema"
	"github.com/fleetmas/fleetmas/lib/testutil"
	"github.com/fleetmas/fleetmas/transport"
)

func initProvider(t *testing.T, sim *daemonSim, mutate func(*Config)) *Provider {
	t.Helper()
	p := newTestProvider(t, sim, mutate)
	if err := p.Init(context.Background()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func TestCallRetriesTransientFailure(t *testing.T) {
	sim := newDaemonSim()
	failures := 1
	sim.ep.Handle("test.flaky", func(json.RawMessage) (any, error) {
		if failures > 0 {
			failures--
			return nil, fmt.Errorf("wire hiccup")
		}
		return "ok", nil
	})
	p := initProvider(t, sim, nil)

	reply, err := p.call(context.Background(), "test.flaky", nil, false)
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if string(reply) != `"ok"` {
		t.Fatalf("reply = %s", reply)
	}
	if got := sim.ep.CallCount("test.flaky"); got != 2 {
		t.Fatalf("handler called %d times, want 2", got)
	}
}

func TestCallHonorsAttemptBudget(t *testing.T) {
	sim := newDaemonSim()
	sim.ep.Handle("test.down", func(json.RawMessage) (any, error) {
		return nil, fmt.Errorf("wire hiccup")
	})
	p := initProvider(t, sim, func(cfg *Config) {
		cfg.Settings.Session.CallAttempts = 2
	})

	_, err := p.call(context.Background(), "test.down", nil, false)
	var budget *MaxAttemptsError
	if !errors.As(err, &budget) {
		t.Fatalf("err = %v, want MaxAttemptsError", err)
	}
	if budget.Attempts != 2 {
		t.Fatalf("attempts = %d, want 2", budget.Attempts)
	}
	if got := sim.ep.CallCount("test.down"); got != 2 {
		t.Fatalf("handler called %d times, want exactly 2", got)
	}
}

func TestRemoteErrorEndsRetriesImmediately(t *testing.T) {
	sim := newDaemonSim()
	sim.ep.Handle("test.refused", func(json.RawMessage) (any, error) {
		return nil, &transport.RemoteError{Code: "runtime_error", Message: "no such node"}
	})
	p := initProvider(t, sim, nil)

	_, err := p.call(context.Background(), "test.refused", nil, false)
	var remote *transport.RemoteError
	if !errors.As(err, &remote) {
		t.Fatalf("err = %v, want RemoteError", err)
	}
	if got := sim.ep.CallCount("test.refused"); got != 1 {
		t.Fatalf("handler called %d times, want 1", got)
	}
}

func TestClosedTransportErrorEndsRetriesImmediately(t *testing.T) {
	sim := newDaemonSim()
	sim.ep.Handle("test.cut", func(json.RawMessage) (any, error) {
		return nil, transport.ErrConnectionClosed
	})
	p := initProvider(t, sim, nil)

	// A transport reporting itself closed will not come back within
	// the retry budget; the error surfaces on the first attempt.
	_, err := p.call(context.Background(), "test.cut", nil, false)
	if !errors.Is(err, transport.ErrConnectionClosed) {
		t.Fatalf("err = %v, want ErrConnectionClosed", err)
	}
	if got := sim.ep.CallCount("test.cut"); got != 1 {
		t.Fatalf("handler called %d times, want 1", got)
	}
}

func TestExclusiveDuplicateRejectedWithoutReachingWire(t *testing.T) {
	sim := newDaemonSim()
	gate := make(chan struct{})
	entered := make(chan struct{})
	sim.ep.Handle(schema.URILaunchStartNode, func(json.RawMessage) (any, error) {
		close(entered)
		<-gate
		return schema.LaunchLoadReply{Status: "OK"}, nil
	})
	p := initProvider(t, sim, nil)

	first := make(chan error, 1)
	go func() {
		first <- p.StartNode(context.Background(), "/talker")
	}()
	testutil.RequireClosed(t, entered, time.Second, "first start never reached the daemon")

	// Same node, still in flight: rejected after the bounded wait,
	// with no second wire call.
	err := p.StartNode(context.Background(), "/talker")
	if !IsAlreadyInProgress(err) {
		t.Fatalf("err = %v, want AlreadyInProgressError", err)
	}
	if got := sim.ep.CallCount(schema.URILaunchStartNode); got != 1 {
		t.Fatalf("handler called %d times, want 1", got)
	}

	close(gate)
	if err := testutil.RequireReceive(t, first, time.Second); err != nil {
		t.Fatalf("first start: %v", err)
	}
}

func TestExclusiveWaiterProceedsWhenCallFinishes(t *testing.T) {
	sim := newDaemonSim()
	gate := make(chan struct{})
	entered := make(chan struct{}, 2)
	sim.ep.Handle(schema.URILaunchStartNode, func(json.RawMessage) (any, error) {
		entered <- struct{}{}
		<-gate
		return schema.LaunchLoadReply{Status: "OK"}, nil
	})
	p := initProvider(t, sim, func(cfg *Config) {
		cfg.Settings.Session.ExclusiveWait = config.Duration(5 * time.Second)
	})

	results := make(chan error, 2)
	go func() { results <- p.StartNode(context.Background(), "/talker") }()
	testutil.RequireReceive(t, entered, time.Second)
	go func() { results <- p.StartNode(context.Background(), "/talker") }()

	// Let both through; the second waiter acquires the slot once the
	// first completes, well inside its wait budget.
	close(gate)
	for i := 0; i < 2; i++ {
		if err := testutil.RequireReceive(t, results, time.Second); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	if got := sim.ep.CallCount(schema.URILaunchStartNode); got != 2 {
		t.Fatalf("handler called %d times, want 2", got)
	}
}

func TestDifferentNodesDoNotContend(t *testing.T) {
	sim := newDaemonSim()
	gate := make(chan struct{})
	entered := make(chan struct{}, 2)
	sim.ep.Handle(schema.URILaunchStartNode, func(json.RawMessage) (any, error) {
		entered <- struct{}{}
		<-gate
		return schema.LaunchLoadReply{Status: "OK"}, nil
	})
	p := initProvider(t, sim, nil)

	results := make(chan error, 2)
	go func() { results <- p.StartNode(context.Background(), "/talker") }()
	go func() { results <- p.StartNode(context.Background(), "/listener") }()

	// Both reach the wire concurrently: the exclusivity key includes
	// the node name.
	testutil.RequireReceive(t, entered, time.Second)
	testutil.RequireReceive(t, entered, time.Second)
	close(gate)
	for i := 0; i < 2; i++ {
		if err := testutil.RequireReceive(t, results, time.Second); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
}

func TestCloseCutsRetryLoop(t *testing.T) {
	sim := newDaemonSim()
	sim.ep.Handle("test.down", func(json.RawMessage) (any, error) {
		return nil, fmt.Errorf("wire hiccup")
	})
	p := initProvider(t, sim, func(cfg *Config) {
		cfg.Settings.Session.RetryDelay = config.Duration(time.Hour)
	})

	result := make(chan error, 1)
	go func() {
		_, err := p.call(context.Background(), "test.down", nil, false)
		result <- err
	}()

	// The call is parked in its retry delay; Close must release it
	// without waiting the hour out.
	time.Sleep(10 * time.Millisecond)
	p.Close()
	err := testutil.RequireReceive(t, result, time.Second)
	if !errors.Is(err, transport.ErrConnectionClosed) {
		t.Fatalf("err = %v, want ErrConnectionClosed", err)
	}
}

func TestCallWhileDisconnected(t *testing.T) {
	sim := newDaemonSim()
	p := newTestProvider(t, sim, nil)
	_, err := p.call(context.Background(), "test.any", nil, false)
	if !errors.Is(err, ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestActivityEvents(t *testing.T) {
	sim := newDaemonSim()
	sim.ep.Handle("test.ok", func(json.RawMessage) (any, error) { return "ok", nil })
	p := initProvider(t, sim, nil)

	events, cancel := p.Subscribe(EventActivityChanged)
	defer cancel()

	if _, err := p.call(context.Background(), "test.ok", nil, false); err != nil {
		t.Fatalf("call: %v", err)
	}
	busy := testutil.RequireReceive(t, events, time.Second)
	if !busy.Busy {
		t.Fatal("first activity event not busy")
	}
	idle := testutil.RequireReceive(t, events, time.Second)
	if idle.Busy {
		t.Fatal("second activity event still busy")
	}
}
