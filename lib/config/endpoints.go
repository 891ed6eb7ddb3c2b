// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"
)

// Endpoint is one seed daemon the client connects to at startup.
// Discovery extends the set at runtime; this file only bootstraps it.
type Endpoint struct {
	// Name is the operator-facing label. Optional; defaults to
	// "host:port" when empty.
	Name string `json:"name,omitempty"`

	// Host and Port address the daemon's RPC endpoint.
	Host string `json:"host"`
	Port int    `json:"port"`

	// UseTLS enables TLS on the wire transport.
	UseTLS bool `json:"use_tls,omitempty"`
}

// ParseEndpoints parses a JSONC endpoint list. The format is a JSON
// array extended with // line comments, /* block comments */, and
// trailing commas, because the file is authored by hand.
func ParseEndpoints(data []byte) ([]Endpoint, error) {
	stripped := jsonc.ToJSON(data)

	var endpoints []Endpoint
	if err := json.Unmarshal(stripped, &endpoints); err != nil {
		return nil, fmt.Errorf("parsing endpoints: %w", err)
	}
	for i, endpoint := range endpoints {
		if endpoint.Host == "" || endpoint.Port == 0 {
			return nil, fmt.Errorf("endpoint %d: host and port are required", i)
		}
	}
	return endpoints, nil
}

// ReadEndpoints reads and parses a JSONC endpoint file.
func ReadEndpoints(path string) ([]Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	endpoints, err := ParseEndpoints(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return endpoints, nil
}
