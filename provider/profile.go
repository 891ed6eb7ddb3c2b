// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package provider

import "github.com/fleetmas/fleetmas/lib/schema"

// SessionProfile controls which push topics a session registers for
// and which state categories its initial pull covers. Profiles let a
// frontend run lightweight sessions against secondary daemons without
// a second session type.
type SessionProfile struct {
	// Name identifies the profile in logs.
	Name string
	// Subscriptions lists the push topic URIs to register after the
	// transport comes up.
	Subscriptions []string
	// SyncNodes enables the node list pull during initial sync.
	SyncNodes bool
	// SyncLaunches enables the launch list pull.
	SyncLaunches bool
	// SyncScreens enables the screen mapping pull.
	SyncScreens bool
	// SyncSystem enables the daemon version, system information and
	// system environment pulls.
	SyncSystem bool
	// SyncProviders enables the discovery pull.
	SyncProviders bool
}

// DefaultProfile registers every push topic and pulls every state
// category. This is the profile for the primary daemon of a host.
func DefaultProfile() *SessionProfile {
	return &SessionProfile{
		Name: "default",
		Subscriptions: []string{
			schema.URIDaemonReady,
			schema.URIDiscoveryReady,
			schema.URIProviderList,
			schema.URIWarnings,
			schema.URIDiagnostics,
			schema.URINodesChanged,
			schema.URILaunchChanged,
			schema.URIPathChanged,
			schema.URIScreenList,
		},
		SyncNodes:     true,
		SyncLaunches:  true,
		SyncScreens:   true,
		SyncSystem:    true,
		SyncProviders: true,
	}
}

// ReducedProfile keeps only liveness and discovery traffic. Suitable
// for daemons a frontend watches but does not operate on.
func ReducedProfile() *SessionProfile {
	return &SessionProfile{
		Name: "reduced",
		Subscriptions: []string{
			schema.URIDaemonReady,
			schema.URIDiscoveryReady,
			schema.URIProviderList,
			schema.URIWarnings,
		},
		SyncNodes:     true,
		SyncProviders: true,
	}
}
