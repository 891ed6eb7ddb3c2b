// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// Diagnostic severity levels, matching the ROS diagnostic_msgs
// convention.
const (
	DiagnosticOK    = 0
	DiagnosticWarn  = 1
	DiagnosticError = 2
	DiagnosticStale = 3
)

// KeyValue is one measurement attached to a diagnostic status.
type KeyValue struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// DiagnosticStatus is the state of one component of a node, reported
// on ros.provider.diagnostics.
type DiagnosticStatus struct {
	Level      int        `json:"level"`
	Name       string     `json:"name"`
	Message    string     `json:"message"`
	HardwareID string     `json:"hardware_id,omitempty"`
	Values     []KeyValue `json:"values,omitempty"`
}

// DiagnosticArray batches diagnostic statuses with the daemon-side
// timestamp of the sample.
type DiagnosticArray struct {
	Timestamp float64            `json:"timestamp"`
	Status    []DiagnosticStatus `json:"status"`
}

// ScreensMapping associates a full node name with the terminal screen
// sessions the daemon runs it under.
type ScreensMapping struct {
	Name    string   `json:"name"`
	Screens []string `json:"screens"`
}

// Logger levels used by ros.nodes.get_loggers / set_logger_level.
const (
	LogLevelDebug = "DEBUG"
	LogLevelInfo  = "INFO"
	LogLevelWarn  = "WARN"
	LogLevelError = "ERROR"
	LogLevelFatal = "FATAL"
)

// LoggerConfig is the level of one named logger of a node.
type LoggerConfig struct {
	Level string `json:"level"`
	Name  string `json:"name"`
}

// Warning group identifiers pushed on ros.provider.warnings.
const (
	WarningAddrMismatch  = "ADDR_MISMATCH"
	WarningResolveFailed = "RESOLVE_FAILED"
	WarningUDPSend       = "UDP_SEND"
	WarningException     = "EXCEPTION"
	WarningTimeJump      = "TIME_JUMP"
)

// SystemWarning is one warning with an optional remediation hint.
type SystemWarning struct {
	Msg     string `json:"msg"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// SystemWarningGroup collects warnings under one group id (one of the
// Warning* constants).
type SystemWarningGroup struct {
	ID       string          `json:"id"`
	Warnings []SystemWarning `json:"warnings"`
}

// Equal reports whether two groups carry the same warnings, compared
// by message only and ignoring order. The synchronizer uses this to
// suppress redundant warnings-changed events.
func (g SystemWarningGroup) Equal(other SystemWarningGroup) bool {
	if g.ID != other.ID || len(g.Warnings) != len(other.Warnings) {
		return false
	}
	for _, mine := range g.Warnings {
		found := false
		for _, theirs := range other.Warnings {
			if mine.Msg == theirs.Msg {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
