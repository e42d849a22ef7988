// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package mqtt

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakeTransport struct {
	mu            sync.Mutex
	events        chan Event
	connectErr    error
	subscribeErr  error
	subscriptions []string
	disconnected  bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{events: make(chan Event, 8)}
}

func (t *fakeTransport) Connect() error {
	return t.connectErr
}

func (t *fakeTransport) Subscribe(topic string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.subscribeErr != nil {
		return t.subscribeErr
	}
	t.subscriptions = append(t.subscriptions, topic)
	return nil
}

func (t *fakeTransport) Events() <-chan Event {
	return t.events
}

func (t *fakeTransport) Disconnect() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.disconnected = true
}

func (t *fakeTransport) subscribeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subscriptions)
}

type fakeService struct {
	mu       sync.Mutex
	err      error
	payloads [][]byte
	received chan struct{}
}

func newFakeService(err error) *fakeService {
	return &fakeService{err: err, received: make(chan struct{}, 8)}
}

func (s *fakeService) HandleUplink(ctx context.Context, topic string, payload []byte) error {
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	s.mu.Unlock()

	s.received <- struct{}{}
	return s.err
}

func (s *fakeService) Replay(ctx context.Context) (int, error) {
	return 0, nil
}

func (s *fakeService) payloadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payloads)
}

func TestHandleTransitions(t *testing.T) {
	transport := newFakeTransport()
	svc := newFakeService(nil)
	loop := NewLoop(transport, svc, "+/devices/+/up", discard)
	ctx := context.Background()

	assert.Equal(t, Disconnected, loop.State())

	loop.handle(ctx, Event{Kind: ConnUp})
	assert.Equal(t, Subscribed, loop.State())
	assert.Equal(t, []string{"+/devices/+/up"}, transport.subscriptions)

	loop.handle(ctx, Event{Kind: SubAck})
	assert.Equal(t, Running, loop.State())

	loop.handle(ctx, Event{Kind: MessageReceived, Topic: "app/devices/kitchen/up", Payload: []byte("{}")})
	<-svc.received
	assert.Equal(t, 1, svc.payloadCount())

	loop.handle(ctx, Event{Kind: ConnLost, Err: errors.New("broker gone")})
	assert.Equal(t, Connecting, loop.State())

	// Every reconnect subscribes again.
	loop.handle(ctx, Event{Kind: ConnUp})
	assert.Equal(t, Subscribed, loop.State())
	assert.Equal(t, 2, transport.subscribeCount())
}

func TestHandleDropsMessageWhenNotSubscribed(t *testing.T) {
	transport := newFakeTransport()
	svc := newFakeService(nil)
	loop := NewLoop(transport, svc, "+/devices/+/up", discard)

	loop.handle(context.Background(), Event{Kind: MessageReceived, Payload: []byte("{}")})
	assert.Equal(t, 0, svc.payloadCount())
}

func TestHandleSubscribeFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.subscribeErr = errors.New("broker refused")
	svc := newFakeService(nil)
	loop := NewLoop(transport, svc, "+/devices/+/up", discard)

	loop.handle(context.Background(), Event{Kind: ConnUp})
	assert.Equal(t, Disconnected, loop.State())
}

func TestHandleServiceFailureKeepsRunning(t *testing.T) {
	transport := newFakeTransport()
	svc := newFakeService(errors.Wrap(uplink.ErrMalformedMessage, errors.New("bad JSON")))
	loop := NewLoop(transport, svc, "+/devices/+/up", discard)
	ctx := context.Background()

	loop.handle(ctx, Event{Kind: ConnUp})
	loop.handle(ctx, Event{Kind: SubAck})
	loop.handle(ctx, Event{Kind: MessageReceived, Payload: []byte("not json")})
	<-svc.received
	loop.handle(ctx, Event{Kind: MessageReceived, Payload: []byte("still not json")})
	<-svc.received

	assert.Equal(t, Running, loop.State())
	assert.Equal(t, 2, svc.payloadCount())
}

func TestRunConnectFailure(t *testing.T) {
	transport := newFakeTransport()
	transport.connectErr = errors.New("no route to broker")
	loop := NewLoop(transport, newFakeService(nil), "+/devices/+/up", discard)

	err := loop.Run(context.Background())
	assert.True(t, errors.Contains(err, transport.connectErr), "expected the connect error")
	assert.Equal(t, Disconnected, loop.State())
}

func TestRunProcessesEventsUntilCanceled(t *testing.T) {
	transport := newFakeTransport()
	svc := newFakeService(nil)
	loop := NewLoop(transport, svc, "+/devices/+/up", discard)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()

	transport.events <- Event{Kind: ConnUp}
	transport.events <- Event{Kind: SubAck}
	transport.events <- Event{Kind: MessageReceived, Topic: "app/devices/kitchen/up", Payload: []byte("{}")}

	select {
	case <-svc.received:
	case <-time.After(time.Second):
		t.Fatal("message never reached the service")
	}

	cancel()
	select {
	case err := <-done:
		assert.Equal(t, context.Canceled, err)
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancellation")
	}

	assert.Equal(t, Disconnected, loop.State())
	assert.True(t, transport.disconnected, "expected the transport to be torn down")
}

func TestRunStopsWhenEventStreamCloses(t *testing.T) {
	transport := newFakeTransport()
	loop := NewLoop(transport, newFakeService(nil), "+/devices/+/up", discard)

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(context.Background())
	}()

	close(transport.events)
	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Contains(err, errTransportClosed), "expected the closed-stream error")
	case <-time.After(time.Second):
		t.Fatal("loop did not stop when the event stream closed")
	}
}
