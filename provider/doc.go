// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

// Package provider maintains one session per daemon endpoint. A
// Provider owns the transport connection, the connection state
// machine, a merged model of the nodes visible through that endpoint
// and the push subscriptions that keep the model current. Consumers
// observe the session through snapshot accessors and an event stream;
// they never touch the transport directly.
package provider
