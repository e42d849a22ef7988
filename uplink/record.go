// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package uplink

import (
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/frame"
)

// sensorPort is the uplink port reserved for sensor-frame payloads.
// Messages on any other port are structurally different and skipped.
const sensorPort = 3

var (
	// ErrMalformedMessage indicates an uplink message that is not
	// valid JSON or whose payload is not valid base64.
	ErrMalformedMessage = errors.New("malformed uplink message")

	// ErrUnsupportedPort indicates an uplink on a port this pipeline
	// does not understand. Not an error condition for the system.
	ErrUnsupportedPort = errors.New("unsupported uplink port")

	// ErrMalformedMetadata indicates unparseable gateway metadata.
	ErrMalformedMetadata = errors.New("malformed uplink metadata")

	errNoGateways = errors.New("no gateway entries in metadata")
	errNoDigits   = errors.New("no digits in data rate descriptor")
	errBadTime    = errors.New("unparseable event time")
)

// Record is the canonical measurement produced from one uplink event.
// It is fully determined by the raw frame plus the gateway metadata of
// the same message and is never mutated once constructed. The derived
// trigger times stay nil when the sensor reported no such event.
type Record struct {
	Time             time.Time
	ReceivedTime     time.Time
	RSSI             int
	SNR              float64
	DataRateRaw      string
	DataRate         int
	Temperature      float64
	Humidity         int64
	LDR              int64
	SecSincePIR      *int64
	PIRTriggeredTime *time.Time
	SecSinceFridge   *int64
	FridgeOpenedTime *time.Time
}

// ParseMessage reconstructs a Record from a raw uplink message and the
// local receipt time. It is a pure transformation: logging of
// intermediate values is the caller's concern.
func ParseMessage(payload []byte, receivedAt time.Time) (Record, error) {
	var msg Message
	if err := json.Unmarshal(payload, &msg); err != nil {
		return Record{}, errors.Wrap(ErrMalformedMessage, err)
	}

	if msg.Port != sensorPort {
		return Record{}, ErrUnsupportedPort
	}

	eventTime, err := time.Parse(time.RFC3339Nano, msg.Metadata.Time)
	if err != nil {
		return Record{}, errors.Wrap(ErrMalformedMetadata, errBadTime)
	}

	if len(msg.Metadata.Gateways) == 0 {
		return Record{}, errors.Wrap(ErrMalformedMetadata, errNoGateways)
	}
	gw := msg.Metadata.Gateways[0]

	dataRate, err := ParseDataRate(msg.Metadata.DataRate)
	if err != nil {
		return Record{}, err
	}

	raw, err := base64.StdEncoding.DecodeString(msg.PayloadRaw)
	if err != nil {
		return Record{}, errors.Wrap(ErrMalformedMessage, err)
	}

	reading, err := frame.Decode(raw)
	if err != nil {
		return Record{}, err
	}

	rec := Record{
		Time:           eventTime,
		ReceivedTime:   receivedAt,
		RSSI:           gw.RSSI,
		SNR:            gw.SNR,
		DataRateRaw:    msg.Metadata.DataRate,
		DataRate:       dataRate,
		Temperature:    float64(reading.Temperature) / 100,
		Humidity:       reading.Humidity,
		LDR:            reading.LDR,
		SecSincePIR:    reading.SecSincePIR,
		SecSinceFridge: reading.SecSinceFridge,
	}

	if reading.SecSincePIR != nil {
		t := eventTime.Add(-time.Duration(*reading.SecSincePIR) * time.Second)
		rec.PIRTriggeredTime = &t
	}
	if reading.SecSinceFridge != nil {
		t := eventTime.Add(-time.Duration(*reading.SecSinceFridge) * time.Second)
		rec.FridgeOpenedTime = &t
	}

	return rec, nil
}

// ParseDataRate extracts the numeric value of a data rate descriptor
// by concatenating its digit characters, e.g. "SF7BW125" -> 7125. The
// store reuses it so replayed records carry the same conversion.
func ParseDataRate(descriptor string) (int, error) {
	var sb strings.Builder
	for _, c := range descriptor {
		if c >= '0' && c <= '9' {
			sb.WriteRune(c)
		}
	}
	if sb.Len() == 0 {
		return 0, errors.Wrap(ErrMalformedMetadata, errNoDigits)
	}

	dr, err := strconv.Atoi(sb.String())
	if err != nil {
		return 0, errors.Wrap(ErrMalformedMetadata, err)
	}

	return dr, nil
}
