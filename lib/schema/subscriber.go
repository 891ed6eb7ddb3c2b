// Copyright 2026 The Fleetmas Authors
// SPDX-License-Identifier: Apache-2.0

package schema

// SubscriberFilter limits what an echo subscriber forwards. Hz caps
// the forward rate (0 disables the cap); Window is the sample count
// for rate statistics.
type SubscriberFilter struct {
	NoData bool    `json:"no_data"`
	NoArr  bool    `json:"no_arr"`
	NoStr  bool    `json:"no_str"`
	Hz     float64 `json:"hz"`
	Window int     `json:"window"`
}

// SubscriberNode parametrizes ros.subscriber.start: which topic to
// echo and how.
type SubscriberNode struct {
	Topic       string           `json:"topic"`
	MessageType string           `json:"message_type,omitempty"`
	TCPNoDelay  bool             `json:"tcp_no_delay,omitempty"`
	UseSimTime  bool             `json:"use_sim_time,omitempty"`
	Filter      SubscriberFilter `json:"filter"`
	Qos         Qos              `json:"qos"`
}

// SubscriberEvent is one echoed message with its running statistics.
// Rates, bandwidths, delays, and sizes are -1 until the subscriber has
// enough samples.
type SubscriberEvent struct {
	Topic       string         `json:"topic"`
	MessageType string         `json:"message_type,omitempty"`
	Latched     bool           `json:"latched,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Count       int            `json:"count"`
	Rate        float64        `json:"rate"`
	BW          float64        `json:"bw"`
	BWMin       float64        `json:"bw_min"`
	BWMax       float64        `json:"bw_max"`
	Delay       float64        `json:"delay"`
	DelayMin    float64        `json:"delay_min"`
	DelayMax    float64        `json:"delay_max"`
	Size        float64        `json:"size"`
	SizeMin     float64        `json:"size_min"`
	SizeMax     float64        `json:"size_max"`
}
