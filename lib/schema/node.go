// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import "strings"

// NodeStatus is the liveness of a managed node as understood by the
// client model. The daemon only ever reports "running"; the other
// values are inferred client-side (launch reconciliation, host
// comparison) but share the wire representation so cached snapshots
// round-trip.
type NodeStatus string

const (
	StatusUnknown      NodeStatus = "unknown"
	StatusRunning      NodeStatus = "running"
	StatusInactive     NodeStatus = "inactive"
	StatusNotMonitored NodeStatus = "not_monitored"
	StatusDead         NodeStatus = "dead"
)

// QosDuration mirrors a ROS duration in QoS settings.
type QosDuration struct {
	Sec     int64 `json:"sec"`
	Nanosec int64 `json:"nanosec"`
}

// Qos reliability policies.
const (
	ReliabilitySystemDefault = 0
	ReliabilityReliable      = 1
	ReliabilityBestEffort    = 2
	ReliabilityUnknown       = 3
)

// Qos durability policies.
const (
	DurabilitySystemDefault  = 0
	DurabilityTransientLocal = 1
	DurabilityVolatile       = 2
	DurabilityUnknown        = 3
)

// Qos history policies.
const (
	HistorySystemDefault = 0
	HistoryKeepLast      = 1
	HistoryKeepAll       = 2
	HistoryUnknown       = 3
)

// Qos carries the quality-of-service settings of a topic endpoint.
type Qos struct {
	Durability    int         `json:"durability"`
	History       int         `json:"history"`
	Depth         int         `json:"depth"`
	Liveliness    int         `json:"liveliness"`
	Reliability   int         `json:"reliability"`
	Deadline      QosDuration `json:"deadline"`
	LeaseDuration QosDuration `json:"lease_duration"`
	Lifespan      QosDuration `json:"lifespan"`
}

// TopicRecord describes one topic endpoint attached to a node, with
// the node names publishing and subscribing to it.
type TopicRecord struct {
	Name       string   `json:"name"`
	MsgType    string   `json:"msgtype"`
	Publisher  []string `json:"publisher"`
	Subscriber []string `json:"subscriber"`
	Qos        Qos      `json:"qos"`
}

// ServiceRecord describes one service endpoint attached to a node.
type ServiceRecord struct {
	Name          string   `json:"name"`
	SrvType       string   `json:"srvtype"`
	MasterURI     string   `json:"masteruri"`
	ServiceAPIURI string   `json:"service_API_URI"`
	Provider      []string `json:"provider"`
	Location      string   `json:"location"`
}

// ParameterRecord is a declared or live parameter. Value is the
// JSON-decoded form; Type names the daemon-side type ("str", "int",
// "float", "bool", ...).
type ParameterRecord struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
	Type  string `json:"type,omitempty"`
}

// NodeRecord is one managed node as reported by the daemon's node
// list. ID is the daemon-assigned identity, stable across pulls while
// the process lives. PID is 0 when the daemon does not observe a live
// process.
type NodeRecord struct {
	ID          string            `json:"id"`
	ParentID    string            `json:"parent_id,omitempty"`
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace"`
	Status      NodeStatus        `json:"status"`
	PID         int               `json:"pid"`
	NodeAPIURI  string            `json:"node_API_URI,omitempty"`
	MasterURI   string            `json:"masteruri,omitempty"`
	Location    string            `json:"location"`
	Publishers  []TopicRecord     `json:"publishers,omitempty"`
	Subscribers []TopicRecord     `json:"subscribers,omitempty"`
	Services    []ServiceRecord   `json:"services,omitempty"`
	Screens     []string          `json:"screens,omitempty"`
	Parameters  []ParameterRecord `json:"parameters,omitempty"`
	SystemNode  bool              `json:"system_node"`
	Enclave     string            `json:"enclave,omitempty"`
}

// Namespace returns the namespace portion of a fully-qualified node
// name, without a trailing separator. The namespace of "/ns/talker"
// is "/ns"; the namespace of "/talker" is "/".
func Namespace(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx <= 0 {
		return "/"
	}
	return name[:idx]
}

// BaseName returns the node name without its namespace.
func BaseName(name string) string {
	idx := strings.LastIndex(name, "/")
	if idx < 0 {
		return name
	}
	return name[idx+1:]
}
