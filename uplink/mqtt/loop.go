// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package mqtt drives the uplink service from an MQTT transport. The
// control flow is an explicit state machine over transport events
// rather than callback wiring, so the connect/subscribe/receive cycle
// is a visible switch over states.
package mqtt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

// State of the ingest loop.
type State int

const (
	Disconnected State = iota
	Connecting
	Subscribed
	Running
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Subscribed:
		return "subscribed"
	case Running:
		return "running"
	default:
		return "unknown"
	}
}

// EventKind discriminates transport events.
type EventKind int

const (
	// ConnUp is emitted on every successful (re)connect.
	ConnUp EventKind = iota
	// SubAck is emitted when the broker acknowledges a subscription.
	SubAck
	// MessageReceived carries one inbound message.
	MessageReceived
	// ConnLost is emitted when the connection drops. The transport's
	// own reconnect policy applies, the loop does not reconnect.
	ConnLost
)

// Event is one occurrence reported by the transport.
type Event struct {
	Kind    EventKind
	Topic   string
	Payload []byte
	Err     error
}

// Transport abstracts the MQTT client underneath the ingest loop.
type Transport interface {
	// Connect establishes the broker session.
	Connect() error

	// Subscribe registers for the topic. Delivery and the
	// subscription acknowledgment arrive on Events.
	Subscribe(topic string) error

	// Events returns the transport event stream.
	Events() <-chan Event

	// Disconnect tears the session down.
	Disconnect()
}

var errTransportClosed = errors.New("transport event stream closed")

// Loop is the ingest control loop: it subscribes on every reconnect
// and feeds received uplinks through the service one at a time, so the
// whole decode-store-relay path is single-threaded per message.
type Loop struct {
	transport Transport
	svc       uplink.Service
	topic     string
	state     State
	logger    *slog.Logger
}

// NewLoop returns an ingest loop for the given topic pattern.
func NewLoop(transport Transport, svc uplink.Service, topic string, logger *slog.Logger) *Loop {
	return &Loop{
		transport: transport,
		svc:       svc,
		topic:     topic,
		state:     Disconnected,
		logger:    logger,
	}
}

// State returns the loop's current state.
func (l *Loop) State() State {
	return l.state
}

// Run connects the transport and processes events until ctx is
// canceled or the event stream closes. Per-message failures are
// logged and never halt the loop.
func (l *Loop) Run(ctx context.Context) error {
	l.state = Connecting
	if err := l.transport.Connect(); err != nil {
		l.state = Disconnected
		return err
	}

	for {
		select {
		case <-ctx.Done():
			l.transport.Disconnect()
			l.state = Disconnected
			return ctx.Err()
		case ev, ok := <-l.transport.Events():
			if !ok {
				l.state = Disconnected
				return errTransportClosed
			}
			l.handle(ctx, ev)
		}
	}
}

func (l *Loop) handle(ctx context.Context, ev Event) {
	switch ev.Kind {
	case ConnUp:
		// Sessions are not assumed persistent across reconnects.
		if err := l.transport.Subscribe(l.topic); err != nil {
			l.logger.Error(fmt.Sprintf("failed to subscribe to %s: %s", l.topic, err))
			return
		}
		l.state = Subscribed
	case SubAck:
		l.state = Running
		l.logger.Info(fmt.Sprintf("subscribed to %s, ingest running", l.topic))
	case MessageReceived:
		l.ingest(ctx, ev)
	case ConnLost:
		l.state = Connecting
		l.logger.Warn(fmt.Sprintf("MQTT connection lost, awaiting reconnect: %s", ev.Err))
	}
}

func (l *Loop) ingest(ctx context.Context, ev Event) {
	if l.state != Subscribed && l.state != Running {
		l.logger.Warn(fmt.Sprintf("dropping message received in state %s", l.state))
		return
	}

	err := l.svc.HandleUplink(ctx, ev.Topic, ev.Payload)
	switch {
	case err == nil:
	case errors.Contains(err, uplink.ErrUnsupportedPort):
		l.logger.Debug(fmt.Sprintf("skipping non-sensor uplink on %s", ev.Topic))
	default:
		l.logger.Warn(fmt.Sprintf("failed to process uplink on %s: %s", ev.Topic, err))
	}
}
