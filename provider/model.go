// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import (
	"encoding/hex"
	"sort"

	"github.com/zeebo/blake3"

	"github.com/fleetmas/fleetmas/lib/schema"
)

// GroupTag marks a node as belonging to a composable container. All
// members of one container share the container's colour.
type GroupTag struct {
	Container string `json:"container" cbor:"container"`
	Color     string `json:"color"     cbor:"color"`
}

// groupPalette is cycled through in container first-seen order, so a
// container keeps its colour across refreshes.
var groupPalette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728",
	"#9467bd", "#8c564b", "#e377c2", "#7f7f7f",
	"#bcbd22", "#17becf",
}

// Node is one entry in the merged model. A node exists as soon as it
// is either reported running by the daemon or declared by a loaded
// launch file; the two sources collapse into a single record.
type Node struct {
	// ID is the session-scoped stable identifier. Assigned when the
	// node first enters the model and never changed afterwards, even
	// when the underlying process restarts under a new daemon id.
	ID string `json:"id" cbor:"id"`
	// DaemonID is the identifier the daemon currently uses for the
	// running process. Empty for declared-only nodes.
	DaemonID  string            `json:"daemon_id,omitempty" cbor:"daemon_id,omitempty"`
	Name      string            `json:"name" cbor:"name"`
	Namespace string            `json:"namespace" cbor:"namespace"`
	Status    schema.NodeStatus `json:"status" cbor:"status"`
	PID       int               `json:"pid,omitempty" cbor:"pid,omitempty"`

	NodeAPIURI string `json:"node_api_uri,omitempty" cbor:"node_api_uri,omitempty"`
	MasterURI  string `json:"masteruri,omitempty" cbor:"masteruri,omitempty"`
	Location   string `json:"location,omitempty" cbor:"location,omitempty"`
	SystemNode bool   `json:"system_node,omitempty" cbor:"system_node,omitempty"`

	// LaunchPaths lists the launch files that declare this node,
	// sorted. Maintained by launch reconciliation only; a node list
	// refresh never touches it.
	LaunchPaths []string `json:"launch_paths,omitempty" cbor:"launch_paths,omitempty"`
	// Parameters holds the declared parameters by name, accumulated
	// from the launch files in LaunchPaths.
	Parameters map[string]schema.ParameterRecord `json:"parameters,omitempty" cbor:"parameters,omitempty"`

	Publishers  []schema.TopicRecord   `json:"publishers,omitempty" cbor:"publishers,omitempty"`
	Subscribers []schema.TopicRecord   `json:"subscribers,omitempty" cbor:"subscribers,omitempty"`
	Services    []schema.ServiceRecord `json:"services,omitempty" cbor:"services,omitempty"`

	Screens []string              `json:"screens,omitempty" cbor:"screens,omitempty"`
	Loggers []schema.LoggerConfig `json:"loggers,omitempty" cbor:"loggers,omitempty"`

	// Diagnostics is append-only history. DiagnosticLevel mirrors the
	// level of the newest entry.
	Diagnostics     []schema.DiagnosticStatus `json:"diagnostics,omitempty" cbor:"diagnostics,omitempty"`
	DiagnosticLevel int                       `json:"diagnostic_level,omitempty" cbor:"diagnostic_level,omitempty"`

	Group *GroupTag `json:"group,omitempty" cbor:"group,omitempty"`
}

// model is the merged per-session state. Guarded by the owning
// Provider's mutex.
type model struct {
	nodes      map[string]*Node // by stable id
	byName     map[string]*Node
	byDaemonID map[string]*Node

	launches map[string]schema.LaunchContent // by launch file path
	screens  map[string][]string             // node name to screen sessions

	groupColors map[string]int // container name to palette index
}

func newModel() *model {
	return &model{
		nodes:       make(map[string]*Node),
		byName:      make(map[string]*Node),
		byDaemonID:  make(map[string]*Node),
		launches:    make(map[string]schema.LaunchContent),
		screens:     make(map[string][]string),
		groupColors: make(map[string]int),
	}
}

// stableNodeID derives the session-scoped identifier from the session
// id and a local discriminator. The discriminator is the daemon id
// for running nodes and the qualified name for declared-only nodes,
// whichever the model saw first.
func stableNodeID(sessionID, local string) string {
	sum := blake3.Sum256([]byte(sessionID + "|" + local))
	return hex.EncodeToString(sum[:8])
}

func (m *model) insert(n *Node) {
	m.nodes[n.ID] = n
	m.byName[n.Name] = n
	if n.DaemonID != "" {
		m.byDaemonID[n.DaemonID] = n
	}
}

func (m *model) remove(n *Node) {
	delete(m.nodes, n.ID)
	if m.byName[n.Name] == n {
		delete(m.byName, n.Name)
	}
	if n.DaemonID != "" && m.byDaemonID[n.DaemonID] == n {
		delete(m.byDaemonID, n.DaemonID)
	}
}

// colorFor hands out palette colours in container first-seen order.
func (m *model) colorFor(container string) string {
	idx, ok := m.groupColors[container]
	if !ok {
		idx = len(m.groupColors) % len(groupPalette)
		m.groupColors[container] = idx
	}
	return groupPalette[idx]
}

// snapshot returns a deep enough copy of the node set for consumers,
// sorted by name.
func (m *model) snapshot() []Node {
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		c := *n
		c.LaunchPaths = append([]string(nil), n.LaunchPaths...)
		c.Screens = append([]string(nil), n.Screens...)
		c.Diagnostics = append([]schema.DiagnosticStatus(nil), n.Diagnostics...)
		if n.Group != nil {
			g := *n.Group
			c.Group = &g
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
