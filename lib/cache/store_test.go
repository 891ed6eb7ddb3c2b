// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"errors"
	"strings"
	"testing"
)

type snapshot struct {
	Endpoint string   `json:"endpoint"`
	Nodes    []string `json:"nodes"`
}

func TestStoreRoundTrip(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			store, err := New(t.TempDir(), tag)
			if err != nil {
				t.Fatalf("New: %v", err)
			}

			// Repetitive content so lz4/zstd actually shrink it.
			want := snapshot{
				Endpoint: "robot1:35430",
				Nodes:    strings.Split(strings.Repeat("/talker,", 50), ","),
			}
			if err := store.Put("robot1:35430", want); err != nil {
				t.Fatalf("Put: %v", err)
			}

			var got snapshot
			if err := store.Get("robot1:35430", &got); err != nil {
				t.Fatalf("Get: %v", err)
			}
			if got.Endpoint != want.Endpoint || len(got.Nodes) != len(want.Nodes) {
				t.Fatalf("round trip mismatch: got %+v", got)
			}
		})
	}
}

func TestStoreMiss(t *testing.T) {
	store, err := New(t.TempDir(), CompressionZstd)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var got snapshot
	if err := store.Get("unknown:1", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get on empty store: got %v, want ErrMiss", err)
	}
}

func TestStoreIncompressibleFallsBackToNone(t *testing.T) {
	store, err := New(t.TempDir(), CompressionLZ4)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	// A single short string compresses to nothing; the store must
	// fall back to an uncompressed write and still read it back.
	if err := store.Put("k", snapshot{Endpoint: "x"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	var got snapshot
	if err := store.Get("k", &got); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Endpoint != "x" {
		t.Fatalf("got %+v", got)
	}
}

func TestStorePurge(t *testing.T) {
	store, err := New(t.TempDir(), CompressionZstd)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Put("a:1", snapshot{Endpoint: "a"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Put("b:2", snapshot{Endpoint: "b"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := store.Purge(); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	var got snapshot
	if err := store.Get("a:1", &got); !errors.Is(err, ErrMiss) {
		t.Fatalf("Get after purge: got %v, want ErrMiss", err)
	}
}

func TestStoreDeleteMissingIsNoError(t *testing.T) {
	store, err := New(t.TempDir(), CompressionNone)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := store.Delete("never-written"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}
