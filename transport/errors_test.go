// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeErrorRuntimeMarker(t *testing.T) {
	err := DecodeError([]byte(`{"error":"runtime_error","message":"node not found"}`))

	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("expected *RemoteError, got %T: %v", err, err)
	}
	if remoteErr.Code != "runtime_error" {
		t.Errorf("code = %q, want runtime_error", remoteErr.Code)
	}
	if remoteErr.Message != "node not found" {
		t.Errorf("message = %q", remoteErr.Message)
	}
	if !IsRemoteError(err, "runtime_error") {
		t.Error("IsRemoteError should match the decoded code")
	}
	if IsRemoteError(err, "other_code") {
		t.Error("IsRemoteError matched the wrong code")
	}
}

func TestDecodeErrorOpaquePayload(t *testing.T) {
	for _, payload := range []string{"read timeout", `{"detail":"no code field"}`, ""} {
		err := DecodeError([]byte(payload))
		var remoteErr *RemoteError
		if errors.As(err, &remoteErr) {
			t.Errorf("payload %q decoded as RemoteError", payload)
		}
	}
}

func TestMemoryConnectionClosedErrors(t *testing.T) {
	endpoint := NewMemoryEndpoint()
	conn := endpoint.Dialer()("h1", 35430, false)

	if _, err := conn.Call(context.Background(), "ros.nodes.get_list", nil); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("call before open: got %v, want ErrConnectionClosed", err)
	}

	if err := conn.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	endpoint.SetOnline(false)
	if _, err := conn.Call(context.Background(), "ros.nodes.get_list", nil); !errors.Is(err, ErrConnectionClosed) {
		t.Fatalf("call while offline: got %v, want ErrConnectionClosed", err)
	}
}

func TestMemoryEndpointPublishReachesSubscriber(t *testing.T) {
	endpoint := NewMemoryEndpoint()
	conn := endpoint.Dialer()("h1", 35430, false)
	if err := conn.Open(context.Background()); err != nil {
		t.Fatalf("open: %v", err)
	}

	var got json.RawMessage
	if err := conn.Subscribe(context.Background(), "ros.nodes.changed", func(payload json.RawMessage) {
		got = payload
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := endpoint.Publish("ros.nodes.changed", map[string]any{"timestamp": 1}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got == nil {
		t.Fatal("subscriber did not receive the push")
	}

	if err := conn.CloseSubscriptions(); err != nil {
		t.Fatalf("close subscriptions: %v", err)
	}
	got = nil
	if err := endpoint.Publish("ros.nodes.changed", map[string]any{"timestamp": 2}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if got != nil {
		t.Fatal("push delivered after CloseSubscriptions")
	}
}
