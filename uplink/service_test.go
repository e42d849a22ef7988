// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package uplink_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink/mocks"
)

var (
	receivedAt = time.Date(2024, 1, 1, 12, 0, 2, 0, time.UTC)
	discard    = slog.New(slog.NewTextHandler(io.Discard, nil))
)

type frameSpec struct {
	temp     int64
	hum, ldr uint64
	pir      *uint64
	fridge   *uint64
}

func uintPtr(v uint64) *uint64 { return &v }

func encodeFrame(fs frameSpec) string {
	var b []byte
	appendField := func(num protowire.Number, v uint64) {
		b = protowire.AppendTag(b, num, protowire.VarintType)
		b = protowire.AppendVarint(b, v)
	}
	appendField(1, uint64(uint32(int32(fs.temp))))
	appendField(2, fs.hum)
	appendField(3, fs.ldr)
	if fs.pir != nil {
		appendField(4, *fs.pir)
	}
	if fs.fridge != nil {
		appendField(5, *fs.fridge)
	}
	return base64.StdEncoding.EncodeToString(b)
}

func encodeMessage(port int, payloadRaw, eventTime, dataRate string) []byte {
	msg := uplink.Message{
		Port:       port,
		PayloadRaw: payloadRaw,
		Metadata: uplink.Metadata{
			Time:     eventTime,
			DataRate: dataRate,
			Gateways: []uplink.Gateway{{RSSI: -42, SNR: 9.5}},
		},
	}
	b, err := json.Marshal(msg)
	if err != nil {
		panic(err)
	}
	return b
}

func TestParseMessage(t *testing.T) {
	fullFrame := encodeFrame(frameSpec{temp: 2150, hum: 55, ldr: 300, pir: uintPtr(120), fridge: uintPtr(30)})
	bareFrame := encodeFrame(frameSpec{temp: 2150, hum: 55, ldr: 300})

	cases := []struct {
		desc    string
		payload []byte
		check   func(t *testing.T, rec uplink.Record)
		err     error
	}{
		{
			desc:    "uplink with both counters",
			payload: encodeMessage(3, fullFrame, "2024-01-01T12:00:00Z", "SF7BW125"),
			check: func(t *testing.T, rec uplink.Record) {
				assert.Equal(t, 21.5, rec.Temperature)
				assert.Equal(t, int64(55), rec.Humidity)
				assert.Equal(t, int64(300), rec.LDR)
				assert.Equal(t, -42, rec.RSSI)
				assert.Equal(t, 9.5, rec.SNR)
				assert.Equal(t, "SF7BW125", rec.DataRateRaw)
				assert.Equal(t, 7125, rec.DataRate)
				assert.True(t, rec.ReceivedTime.Equal(receivedAt))
				require.NotNil(t, rec.PIRTriggeredTime)
				assert.Equal(t, "2024-01-01T11:58:00Z", rec.PIRTriggeredTime.Format(time.RFC3339))
				require.NotNil(t, rec.FridgeOpenedTime)
				assert.Equal(t, "2024-01-01T11:59:30Z", rec.FridgeOpenedTime.Format(time.RFC3339))
			},
		},
		{
			desc:    "uplink without counters leaves derived times absent",
			payload: encodeMessage(3, bareFrame, "2024-01-01T12:00:00Z", "SF7BW125"),
			check: func(t *testing.T, rec uplink.Record) {
				assert.Nil(t, rec.SecSincePIR)
				assert.Nil(t, rec.PIRTriggeredTime)
				assert.Nil(t, rec.SecSinceFridge)
				assert.Nil(t, rec.FridgeOpenedTime)
			},
		},
		{
			desc:    "uplink on an unsupported port",
			payload: encodeMessage(7, fullFrame, "2024-01-01T12:00:00Z", "SF7BW125"),
			err:     uplink.ErrUnsupportedPort,
		},
		{
			desc:    "data rate descriptor without digits",
			payload: encodeMessage(3, fullFrame, "2024-01-01T12:00:00Z", "UNKNOWN"),
			err:     uplink.ErrMalformedMetadata,
		},
		{
			desc:    "unparseable event time",
			payload: encodeMessage(3, fullFrame, "yesterday", "SF7BW125"),
			err:     uplink.ErrMalformedMetadata,
		},
		{
			desc:    "payload that is not base64",
			payload: encodeMessage(3, "%%%", "2024-01-01T12:00:00Z", "SF7BW125"),
			err:     uplink.ErrMalformedMessage,
		},
		{
			desc:    "message that is not JSON",
			payload: []byte("not json"),
			err:     uplink.ErrMalformedMessage,
		},
	}

	for _, tc := range cases {
		rec, err := uplink.ParseMessage(tc.payload, receivedAt)
		if tc.err != nil {
			assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
			continue
		}
		require.NoError(t, err, tc.desc)
		tc.check(t, rec)
	}
}

func TestParseMessageNoGateways(t *testing.T) {
	payload := []byte(`{"port":3,"payload_raw":"","metadata":{"time":"2024-01-01T12:00:00Z","data_rate":"SF7BW125","gateways":[]}}`)

	_, err := uplink.ParseMessage(payload, receivedAt)
	assert.True(t, errors.Contains(err, uplink.ErrMalformedMetadata), "expected malformed metadata")
}

func TestParseMessageDataRates(t *testing.T) {
	frame := encodeFrame(frameSpec{temp: 2000, hum: 50, ldr: 100})

	cases := []struct {
		descriptor string
		dataRate   int
	}{
		{descriptor: "SF7BW125", dataRate: 7125},
		{descriptor: "SF12BW125", dataRate: 12125},
		{descriptor: "4/5", dataRate: 45},
	}

	for _, tc := range cases {
		rec, err := uplink.ParseMessage(encodeMessage(3, frame, "2024-01-01T12:00:00Z", tc.descriptor), receivedAt)
		require.NoError(t, err, tc.descriptor)
		assert.Equal(t, tc.dataRate, rec.DataRate, tc.descriptor)
	}
}

func TestHandleUplink(t *testing.T) {
	frame := encodeFrame(frameSpec{temp: 2150, hum: 55, ldr: 300, pir: uintPtr(120)})

	cases := []struct {
		desc       string
		payload    []byte
		appendErr  error
		sendErr    error
		err        error
		storeCalls int
		relayCalls int
	}{
		{
			desc:       "valid uplink is stored and relayed",
			payload:    encodeMessage(3, frame, "2024-01-01T12:00:00Z", "SF7BW125"),
			storeCalls: 1,
			relayCalls: 1,
		},
		{
			desc:    "unsupported port is neither stored nor relayed",
			payload: encodeMessage(7, frame, "2024-01-01T12:00:00Z", "SF7BW125"),
			err:     uplink.ErrUnsupportedPort,
		},
		{
			desc:       "store failure does not prevent the relay",
			payload:    encodeMessage(3, frame, "2024-01-01T12:00:00Z", "SF7BW125"),
			appendErr:  errors.New("disk full"),
			err:        errors.New("disk full"),
			storeCalls: 1,
			relayCalls: 1,
		},
		{
			desc:       "relay failure does not prevent the store",
			payload:    encodeMessage(3, frame, "2024-01-01T12:00:00Z", "SF7BW125"),
			sendErr:    errors.New("backend down"),
			err:        errors.New("backend down"),
			storeCalls: 1,
			relayCalls: 1,
		},
	}

	for _, tc := range cases {
		store := new(mocks.Store)
		relay := new(mocks.Relay)
		store.On("Append", mock.Anything).Return(tc.appendErr)
		relay.On("Send", mock.Anything).Return(tc.sendErr)

		svc := uplink.New(store, relay, time.Millisecond, discard)
		err := svc.HandleUplink(context.Background(), "app/devices/kitchen/up", tc.payload)
		if tc.err != nil {
			assert.True(t, errors.Contains(err, tc.err), fmt.Sprintf("%s: expected %s got %s\n", tc.desc, tc.err, err))
		} else {
			assert.NoError(t, err, tc.desc)
		}

		store.AssertNumberOfCalls(t, "Append", tc.storeCalls)
		relay.AssertNumberOfCalls(t, "Send", tc.relayCalls)
	}
}

func TestReplay(t *testing.T) {
	good := uplink.Record{Time: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	reader := mocks.NewRecordReader([]mocks.ReadStep{
		{Record: good},
		{Err: errors.Wrap(uplink.ErrCorruptRecord, errors.New("wrong column count"))},
		{Record: good},
	})

	store := new(mocks.Store)
	relay := new(mocks.Relay)
	store.On("ReadAll").Return(reader, nil)
	relay.On("Send", mock.Anything).Return(nil)

	svc := uplink.New(store, relay, time.Millisecond, discard)
	skipped, err := svc.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	relay.AssertNumberOfCalls(t, "Send", 2)
}

func TestReplayRelayFailureContinues(t *testing.T) {
	good := uplink.Record{Time: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	reader := mocks.NewRecordReader([]mocks.ReadStep{
		{Record: good},
		{Record: good},
	})

	store := new(mocks.Store)
	relay := new(mocks.Relay)
	store.On("ReadAll").Return(reader, nil)
	relay.On("Send", mock.Anything).Return(errors.New("backend down"))

	svc := uplink.New(store, relay, time.Millisecond, discard)
	skipped, err := svc.Replay(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
	relay.AssertNumberOfCalls(t, "Send", 2)
}

func TestReplayCanceled(t *testing.T) {
	good := uplink.Record{Time: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}

	reader := mocks.NewRecordReader([]mocks.ReadStep{
		{Record: good},
		{Record: good},
	})

	store := new(mocks.Store)
	relay := new(mocks.Relay)
	store.On("ReadAll").Return(reader, nil)
	relay.On("Send", mock.Anything).Return(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := uplink.New(store, relay, time.Millisecond, discard)
	_, err := svc.Replay(ctx)
	assert.Equal(t, context.Canceled, err)
}
