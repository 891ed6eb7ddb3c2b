// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/fleetmas/fleetmas/lib/config"
	"github.com/fleetmas/fleetmas/lib/schema"
	"github.com/fleetmas/fleetmas/transport"
)

// demoFleet builds an in-process simulated daemon: a couple of
// launch files, a talker that keeps crashing and respawning, and a
// discovery report announcing a second (also simulated) daemon. All
// endpoints dial into the same simulation.
func demoFleet() (transport.DialFunc, []config.Endpoint) {
	ep := transport.NewMemoryEndpoint()

	var mu sync.Mutex
	talkerUp := true
	generation := 0

	nodes := func() []schema.NodeRecord {
		mu.Lock()
		defer mu.Unlock()
		list := []schema.NodeRecord{{
			ID:         "listener-0",
			Name:       "/demo/listener",
			Namespace:  "/demo",
			Status:     schema.StatusRunning,
			PID:        2001,
			NodeAPIURI: "http://demo1:11311/",
		}}
		if talkerUp {
			list = append(list, schema.NodeRecord{
				ID:         "talker-" + string(rune('a'+generation%26)),
				Name:       "/demo/talker",
				Namespace:  "/demo",
				Status:     schema.StatusRunning,
				PID:        2100 + generation,
				NodeAPIURI: "http://demo1:11311/",
			})
		}
		return list
	}

	ep.Handle(schema.URINodesGetList, func(json.RawMessage) (any, error) {
		return nodes(), nil
	})
	ep.Handle(schema.URILaunchGetList, func(json.RawMessage) (any, error) {
		return []schema.LaunchContent{{
			Path: "/opt/demo/fleet.launch.py",
			Nodes: []schema.LaunchNodeInfo{
				{UniqueName: "/demo/talker", Package: "demo_nodes_cpp", Executable: "talker"},
				{UniqueName: "/demo/listener", Package: "demo_nodes_cpp", Executable: "listener"},
			},
		}}, nil
	})
	ep.Handle(schema.URIScreenGetList, func(json.RawMessage) (any, error) {
		return []schema.ScreensMapping{
			{Name: "/demo/listener", Screens: []string{"2001.listener"}},
		}, nil
	})
	ep.Handle(schema.URIProviderGetList, func(json.RawMessage) (any, error) {
		return []schema.ProviderDescriptor{
			{Name: "demo1-daemon", Host: "demo1", Port: 35430, Origin: true,
				Hostnames: []string{"demo1", "demo1.local"}},
			{Name: "demo2-daemon", Host: "demo2", Port: 35430},
		}, nil
	})
	ep.Handle(schema.URIDaemonVersion, func(json.RawMessage) (any, error) {
		return schema.DaemonVersion{Version: "4.2.0-demo", Date: "2026-08-01"}, nil
	})
	ep.Handle(schema.URIProviderSystemInfo, func(json.RawMessage) (any, error) {
		return schema.SystemInformation{SystemInfo: map[string]any{"os": "linux", "cpu": "simulated"}}, nil
	})
	ep.Handle(schema.URIProviderSystemEnv, func(json.RawMessage) (any, error) {
		return schema.SystemEnvironment{Environment: map[string]string{"ROS_DISTRO": "jazzy"}}, nil
	})
	ep.Handle(schema.URIProviderGetTimestamp, func(args json.RawMessage) (any, error) {
		var req struct {
			Timestamp float64 `json:"timestamp"`
		}
		_ = json.Unmarshal(args, &req)
		return schema.Timestamp{Timestamp: float64(time.Now().UnixNano()) / 1e6}, nil
	})
	ep.Handle(schema.URISubscriberStart, func(json.RawMessage) (any, error) {
		return map[string]bool{"result": true}, nil
	})
	ep.Handle(schema.URISubscriberStop, func(json.RawMessage) (any, error) {
		return map[string]bool{"result": true}, nil
	})

	// The talker crashes and respawns on a cycle so the console has
	// something to report.
	go func() {
		for range time.Tick(5 * time.Second) {
			mu.Lock()
			talkerUp = !talkerUp
			if talkerUp {
				generation++
			}
			up := talkerUp
			mu.Unlock()

			_ = ep.Publish(schema.URINodesChanged, nil)
			if !up {
				_ = ep.Publish(schema.URIDiagnostics, schema.DiagnosticArray{
					Timestamp: float64(time.Now().UnixNano()) / 1e6,
					Status: []schema.DiagnosticStatus{{
						Name:    "/demo/talker",
						Level:   schema.DiagnosticError,
						Message: "process exited",
					}},
				})
			}
		}
	}()

	return ep.Dialer(), []config.Endpoint{
		{Name: "demo1", Host: "demo1", Port: 35430},
	}
}
