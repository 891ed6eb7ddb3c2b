// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

// Package transport defines the connection abstraction the session
// core runs on.
//
// The package defines one interface, [Connection]: a persistent link
// to a single daemon endpoint carrying remote calls, push-topic
// subscriptions, and outbound publishes. The session core never
// inspects the wire format — it sees JSON payloads on these
// operations and the typed errors this package decodes at the
// boundary.
//
// Two error classes are terminal for the caller and never retried:
// [*RemoteError], the daemon explicitly rejecting a call (decoded
// from the JSON error payload carried by the wire protocol), and
// [ErrConnectionClosed], the link itself being down. Everything else
// (timeouts, transient hiccups) is fair game for the dispatcher's
// bounded retry.
//
// [MemoryEndpoint] is the in-process implementation: a scriptable
// daemon backing unit tests and the console's demo mode. Production
// wire transports (WebSocket, WAMP) live outside this module and
// plug in through [DialFunc].
package transport
