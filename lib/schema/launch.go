// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// LaunchArgument is one argument a launch file was loaded with.
type LaunchArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LaunchNodeInfo is one node declaration inside a loaded launch file.
// UniqueName is the fully-qualified name (namespace + base name) and
// is the reconciliation key against the live node list.
type LaunchNodeInfo struct {
	UniqueName          string `json:"unique_name"`
	Namespace           string `json:"node_namespace,omitempty"`
	Package             string `json:"package,omitempty"`
	Executable          string `json:"executable,omitempty"`
	Args                string `json:"args,omitempty"`
	Respawn             bool   `json:"respawn,omitempty"`
	RespawnDelay        int    `json:"respawn_delay,omitempty"`
	LaunchPrefix        string `json:"launch_prefix,omitempty"`
	ComposableContainer string `json:"composable_container,omitempty"`
}

// LaunchContent is one loaded launch configuration on the daemon: its
// file path, the realm it belongs to, and the nodes and parameters it
// declares.
type LaunchContent struct {
	Path       string            `json:"path"`
	Args       []LaunchArgument  `json:"args,omitempty"`
	MasterURI  string            `json:"masteruri,omitempty"`
	Host       string            `json:"host,omitempty"`
	Nodes      []LaunchNodeInfo  `json:"nodes"`
	Parameters []ParameterRecord `json:"parameters,omitempty"`
}

// LaunchLoadRequest parametrizes ros.launch.load and ros.launch.reload.
type LaunchLoadRequest struct {
	Path      string           `json:"path"`
	Args      []LaunchArgument `json:"args,omitempty"`
	MasterURI string           `json:"masteruri,omitempty"`
	Host      string           `json:"host,omitempty"`
	Force     bool             `json:"force,omitempty"`
}

// LaunchLoadReply is the daemon's answer to load/unload/reload. A
// non-OK status carries the daemon's reason; paths list the changed
// launch files.
type LaunchLoadReply struct {
	Status string   `json:"status"`
	Paths  []string `json:"paths,omitempty"`
	Args   []string `json:"args,omitempty"`
}

// LogPathItem maps a node to its log locations on the daemon host.
type LogPathItem struct {
	Node      string `json:"node"`
	ScreenLog string `json:"screen_log,omitempty"`
	RosLog    string `json:"ros_log,omitempty"`
}
