// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// ProviderDescriptor announces one daemon endpoint. The discovery
// servicer returns a list of these from ros.provider.get_list and
// pushes the same shape on ros.provider.list; exactly one entry has
// Origin set (the endpoint describing itself), every other entry is a
// peer it has discovered.
type ProviderDescriptor struct {
	Name      string   `json:"name"`
	Host      string   `json:"host"`
	Port      int      `json:"port"`
	Type      string   `json:"type,omitempty"`
	MasterURI string   `json:"masteruri,omitempty"`
	Origin    bool     `json:"origin"`

	// Hostnames lists every name the host is known by (IPv4, IPv6,
	// DNS names). Sessions accumulate these for address-mismatch
	// tolerance and never shrink the set.
	Hostnames []string `json:"hostnames,omitempty"`

	RosVersion  string `json:"ros_version,omitempty"`
	RosDistro   string `json:"ros_distro,omitempty"`
	RosDomainID string `json:"ros_domain_id,omitempty"`
}

// DaemonVersion identifies the daemon build.
type DaemonVersion struct {
	Version string `json:"version"`
	Date    string `json:"date"`
}

// Timestamp is the reply to ros.provider.get_timestamp. Diff is the
// daemon-computed difference to the timestamp the caller sent, in
// milliseconds; the client computes its own symmetric estimate from
// Timestamp and its local send/receive times.
type Timestamp struct {
	Timestamp float64 `json:"timestamp"`
	Diff      float64 `json:"diff"`
}

// SystemInformation is the daemon host's hardware and OS summary.
// Keys are daemon-defined (os, cpu, ram, disk families); the client
// stores and displays them without interpretation.
type SystemInformation struct {
	SystemInfo map[string]any `json:"system_info"`
}

// SystemEnvironment is the daemon process's environment variables.
type SystemEnvironment struct {
	Environment map[string]string `json:"environment"`
}
