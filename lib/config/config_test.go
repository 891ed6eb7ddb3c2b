// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestLoadFileDefaults(t *testing.T) {
	path := writeFile(t, "fleetmas.yaml", "environment: development\n")
	settings, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if settings.Session.CallAttempts != 3 {
		t.Errorf("CallAttempts = %d, want default 3", settings.Session.CallAttempts)
	}
	if settings.Session.RetryDelay.Std() != 2*time.Second {
		t.Errorf("RetryDelay = %v, want default 2s", settings.Session.RetryDelay.Std())
	}
	if settings.Cache.Compression != "zstd" {
		t.Errorf("Compression = %q, want default zstd", settings.Cache.Compression)
	}
}

func TestLoadFileDurationsAndOverrides(t *testing.T) {
	path := writeFile(t, "fleetmas.yaml", `
environment: production
session:
  call_attempts: 2
  retry_delay: 500ms
  exclusive_wait: 1s
nodes:
  ignore: ["/mas_daemon", "/rosout"]
production:
  nodes:
    ignore: ["/mas_daemon"]
    show_remote: true
`)
	settings, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if settings.Session.RetryDelay.Std() != 500*time.Millisecond {
		t.Errorf("RetryDelay = %v, want 500ms", settings.Session.RetryDelay.Std())
	}
	if !settings.Nodes.ShowRemote {
		t.Error("production override for show_remote not applied")
	}
	if len(settings.Nodes.Ignore) != 1 || settings.Nodes.Ignore[0] != "/mas_daemon" {
		t.Errorf("Ignore = %v, want the production override", settings.Nodes.Ignore)
	}
}

func TestParseEndpointsJSONC(t *testing.T) {
	endpoints, err := ParseEndpoints([]byte(`[
  // lab robot
  {"name": "robot1", "host": "robot1.lab", "port": 35430},
  {"host": "192.168.1.20", "port": 35430, "use_tls": true}, // trailing comma ok
]`))
	if err != nil {
		t.Fatalf("ParseEndpoints: %v", err)
	}
	if len(endpoints) != 2 {
		t.Fatalf("got %d endpoints, want 2", len(endpoints))
	}
	if endpoints[0].Name != "robot1" || endpoints[0].Host != "robot1.lab" {
		t.Errorf("endpoint 0 = %+v", endpoints[0])
	}
	if !endpoints[1].UseTLS {
		t.Error("endpoint 1 should have use_tls")
	}
}

func TestParseEndpointsRejectsMissingAddress(t *testing.T) {
	if _, err := ParseEndpoints([]byte(`[{"name": "broken"}]`)); err == nil {
		t.Fatal("expected an error for an endpoint without host/port")
	}
}
