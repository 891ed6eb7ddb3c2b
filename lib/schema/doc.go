// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

// Package schema defines the wire records exchanged with a fleetmas
// daemon over the remote-procedure interface.
//
// These types are the contract between the daemon (writer) and this
// client (reader). Field names and JSON tags mirror the daemon's
// runtime interface exactly; adding or renaming a field here requires
// a matching daemon change. The client never interprets payloads
// outside this package and the transport boundary — everything past
// decode operates on these structs.
//
// The package also defines the call and push-notification URIs
// (uris.go). URIs are plain string constants, not a named type,
// because the daemon's URI vocabulary is open-ended (servicers
// register new URIs) and per-topic echo URIs are built by
// concatenation.
package schema
