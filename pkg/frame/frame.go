// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package frame decodes the binary sensor frame carried in uplink
// payloads. The frame is a protobuf wire message of varint fields
// emitted by the kitchen sensor firmware.
package frame

import (
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
)

// Field numbers of the sensor payload message.
const (
	fieldTemperature    = 1
	fieldHumidity       = 2
	fieldLDR            = 3
	fieldSecSincePIR    = 4
	fieldSecSinceFridge = 5
)

var (
	// ErrDecode indicates a malformed sensor frame.
	ErrDecode = errors.New("failed to decode sensor frame")

	errMissingField = errors.New("missing required sensor field")
)

// Reading holds one decoded sensor frame. Temperature is kept in
// hundredths of a degree exactly as encoded, the /100 conversion
// belongs to the caller. The two counters are nil when the sensor did
// not report the event, which is distinct from a reported value of 0.
type Reading struct {
	Temperature    int64
	Humidity       int64
	LDR            int64
	SecSincePIR    *int64
	SecSinceFridge *int64
}

// Decode parses a raw sensor frame into a Reading. Unknown fields are
// skipped. A frame that cannot be parsed, or that lacks any of the
// temperature, humidity or ldr fields, fails with ErrDecode.
func Decode(data []byte) (Reading, error) {
	var r Reading
	var seenTemp, seenHum, seenLDR bool

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return Reading{}, errors.Wrap(ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]

		if typ != protowire.VarintType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return Reading{}, errors.Wrap(ErrDecode, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return Reading{}, errors.Wrap(ErrDecode, protowire.ParseError(n))
		}
		data = data[n:]

		switch num {
		case fieldTemperature:
			// Two's-complement varint, may be negative.
			r.Temperature = int64(int32(v))
			seenTemp = true
		case fieldHumidity:
			r.Humidity = int64(v)
			seenHum = true
		case fieldLDR:
			r.LDR = int64(v)
			seenLDR = true
		case fieldSecSincePIR:
			sec := int64(v)
			r.SecSincePIR = &sec
		case fieldSecSinceFridge:
			sec := int64(v)
			r.SecSinceFridge = &sec
		}
	}

	if !seenTemp || !seenHum || !seenLDR {
		return Reading{}, errors.Wrap(ErrDecode, errMissingField)
	}

	return r, nil
}
