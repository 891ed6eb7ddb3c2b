// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/fleetmas/fleetmas/lib/schema"
	"github.com/fleetmas/fleetmas/lib/testutil"
)

func TestNodesChangedPushTriggersPull(t *testing.T) {
	sim := newDaemonSim()
	sim.setNodes(runningNode("/talker", "n1", 101))
	p := initProvider(t, sim, nil)

	events, cancel := p.Subscribe(EventNodesChanged)
	defer cancel()

	before := sim.ep.CallCount(schema.URINodesGetList)
	sim.setNodes(runningNode("/talker", "n1", 101), runningNode("/listener", "n2", 102))
	if err := sim.ep.Publish(schema.URINodesChanged, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	testutil.RequireReceive(t, events, time.Second, "no nodes-changed after push")
	if got := sim.ep.CallCount(schema.URINodesGetList); got != before+1 {
		t.Fatalf("node pulls = %d, want %d", got, before+1)
	}
	if got := len(p.Nodes()); got != 2 {
		t.Fatalf("nodes = %d, want 2", got)
	}
}

func TestLaunchChangedPushTriggersPull(t *testing.T) {
	sim := newDaemonSim()
	p := initProvider(t, sim, nil)

	events, cancel := p.Subscribe(EventLaunchesChanged)
	defer cancel()

	sim.setLaunches(declaredLaunch("/opt/robot.launch", "/talker"))
	if err := sim.ep.Publish(schema.URILaunchChanged, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	testutil.RequireReceive(t, events, time.Second, "no launches-changed after push")
	if _, ok := p.Launches()["/opt/robot.launch"]; !ok {
		t.Fatalf("launches = %v, missing /opt/robot.launch", p.Launches())
	}
	if n, ok := p.Node("/talker"); !ok || n.Status != schema.StatusInactive {
		t.Fatalf("declared node = %+v, want inactive placeholder", n)
	}
}

func TestWarningsPushAppliedDirectly(t *testing.T) {
	sim := newDaemonSim()
	p := initProvider(t, sim, nil)

	events, cancel := p.Subscribe(EventWarningsChanged)
	defer cancel()

	groups := []schema.SystemWarningGroup{{
		ID:       schema.WarningTimeJump,
		Warnings: []schema.SystemWarning{{Msg: "clock jumped 3s"}},
	}}
	if err := sim.ep.Publish(schema.URIWarnings, groups); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	testutil.RequireReceive(t, events, time.Second, "no warnings-changed after push")
	if got := p.Warnings(); len(got) != 1 || got[0].ID != schema.WarningTimeJump {
		t.Fatalf("warnings = %+v", got)
	}

	// The same groups again, reordered or not, stay silent.
	if err := sim.ep.Publish(schema.URIWarnings, groups); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	select {
	case ev := <-events:
		t.Fatalf("unexpected event for identical warnings: %+v", ev)
	default:
	}
}

func TestProviderListPushReconcilesPeers(t *testing.T) {
	sim := newDaemonSim()
	p := initProvider(t, sim, nil)

	events, cancel := p.Subscribe(EventPeerDiscovered)
	defer cancel()

	descriptors := []schema.ProviderDescriptor{
		{Name: "robot1-daemon", Host: "robot1", Port: 35430, Origin: true},
		{Name: "robot2-daemon", Host: "robot2", Port: 35430},
	}
	if err := sim.ep.Publish(schema.URIProviderList, descriptors); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	ev := testutil.RequireReceive(t, events, time.Second, "no peer-discovered after push")
	if ev.PeerKey != "robot2:35430" {
		t.Fatalf("peer key = %s, want robot2:35430", ev.PeerKey)
	}
}

func TestStartSubscriberIsIdempotent(t *testing.T) {
	sim := newDaemonSim()
	sim.ep.Handle(schema.URISubscriberStart, func(json.RawMessage) (any, error) {
		return map[string]bool{"result": true}, nil
	})
	p := initProvider(t, sim, nil)

	sub := schema.SubscriberNode{Topic: "/chatter", MessageType: "std_msgs/msg/String"}
	if err := p.StartSubscriber(context.Background(), sub); err != nil {
		t.Fatalf("first StartSubscriber: %v", err)
	}
	if err := p.StartSubscriber(context.Background(), sub); err != nil {
		t.Fatalf("second StartSubscriber: %v", err)
	}
	if got := sim.ep.CallCount(schema.URISubscriberStart); got != 1 {
		t.Fatalf("remote starts = %d, want 1", got)
	}
}

func TestConcurrentStartSubscriberIssuesOneRemoteCall(t *testing.T) {
	sim := newDaemonSim()
	gate := make(chan struct{})
	entered := make(chan struct{})
	sim.ep.Handle(schema.URISubscriberStart, func(json.RawMessage) (any, error) {
		close(entered)
		<-gate
		return map[string]bool{"result": true}, nil
	})
	p := initProvider(t, sim, nil)

	// A second start racing the first waits for its outcome instead of
	// asking the daemon for a second echo subscription.
	sub := schema.SubscriberNode{Topic: "/chatter", MessageType: "std_msgs/msg/String"}
	results := make(chan error, 2)
	go func() { results <- p.StartSubscriber(context.Background(), sub) }()
	testutil.RequireClosed(t, entered, time.Second, "first start never reached the daemon")
	go func() { results <- p.StartSubscriber(context.Background(), sub) }()

	close(gate)
	for i := 0; i < 2; i++ {
		if err := testutil.RequireReceive(t, results, time.Second, "start %d", i); err != nil {
			t.Fatalf("start %d: %v", i, err)
		}
	}
	if got := sim.ep.CallCount(schema.URISubscriberStart); got != 1 {
		t.Fatalf("remote starts = %d, want 1", got)
	}
}

func TestEchoDeliveryAndStop(t *testing.T) {
	sim := newDaemonSim()
	sim.ep.Handle(schema.URISubscriberStart, func(json.RawMessage) (any, error) {
		return map[string]bool{"result": true}, nil
	})
	sim.ep.Handle(schema.URISubscriberStop, func(json.RawMessage) (any, error) {
		return map[string]bool{"result": true}, nil
	})
	p := initProvider(t, sim, nil)

	ch, cancel := p.SubscribeTopic("/chatter")
	defer cancel()
	sub := schema.SubscriberNode{Topic: "/chatter", MessageType: "std_msgs/msg/String"}
	if err := p.StartSubscriber(context.Background(), sub); err != nil {
		t.Fatalf("StartSubscriber: %v", err)
	}

	event := schema.SubscriberEvent{
		Topic: "/chatter",
		Data:  map[string]any{"data": "hello"},
		Count: 1,
		Rate:  10.0,
	}
	if err := sim.ep.Publish(schema.SubscriberEventURI("/chatter"), event); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got := testutil.RequireReceive(t, ch, time.Second, "echo event not delivered")
	if got.Topic != "/chatter" || got.Count != 1 {
		t.Fatalf("event = %+v", got)
	}

	if err := p.StopSubscriber(context.Background(), "/chatter"); err != nil {
		t.Fatalf("StopSubscriber: %v", err)
	}
	// The listener channel closes with the stream.
	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("event after stop")
		}
	case <-time.After(time.Second):
		t.Fatal("listener channel not closed on stop")
	}
}
