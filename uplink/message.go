// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package uplink

// Gateway carries per-gateway reception parameters.
type Gateway struct {
	RSSI int     `json:"rssi"`
	SNR  float64 `json:"snr"`
}

// Metadata carries uplink network metadata.
type Metadata struct {
	Time     string    `json:"time"`
	DataRate string    `json:"data_rate"`
	Gateways []Gateway `json:"gateways"`
}

// Message is the uplink event published by the network server on the
// `+/devices/+/up` topic. Only the first gateway entry is consulted.
type Message struct {
	Port       int      `json:"port"`
	PayloadRaw string   `json:"payload_raw"`
	Metadata   Metadata `json:"metadata"`
}
