// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package mqtt

import (
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
)

const (
	qos = 2

	// eventBuffer bounds how far the paho delivery goroutine can run
	// ahead of the ingest loop before it blocks.
	eventBuffer = 16
)

var (
	errConnect          = errors.New("failed to connect to MQTT broker")
	errSubscribeTimeout = errors.New("failed to subscribe due to timeout reached")
)

var _ Transport = (*pahoTransport)(nil)

type pahoTransport struct {
	client  mqtt.Client
	timeout time.Duration
	events  chan Event
}

// NewTransport returns a paho-backed Transport. The session is
// persistent (clean session off) and reconnects automatically; every
// reconnect surfaces as a ConnUp event so the loop can re-subscribe.
func NewTransport(url, username, password, clientID string, timeout time.Duration) Transport {
	t := &pahoTransport{
		timeout: timeout,
		events:  make(chan Event, eventBuffer),
	}

	opts := mqtt.NewClientOptions().
		AddBroker(url).
		SetUsername(username).
		SetPassword(password).
		SetClientID(clientID).
		SetCleanSession(false)
	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		t.events <- Event{Kind: ConnUp}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		t.events <- Event{Kind: ConnLost, Err: err}
	})

	t.client = mqtt.NewClient(opts)

	return t
}

func (t *pahoTransport) Connect() error {
	token := t.client.Connect()
	if !token.WaitTimeout(t.timeout) {
		return errConnect
	}
	if err := token.Error(); err != nil {
		return errors.Wrap(errConnect, err)
	}

	return nil
}

func (t *pahoTransport) Subscribe(topic string) error {
	token := t.client.Subscribe(topic, qos, func(_ mqtt.Client, m mqtt.Message) {
		t.events <- Event{Kind: MessageReceived, Topic: m.Topic(), Payload: m.Payload()}
	})
	if !token.WaitTimeout(t.timeout) {
		return errSubscribeTimeout
	}
	if err := token.Error(); err != nil {
		return err
	}

	t.events <- Event{Kind: SubAck, Topic: topic}

	return nil
}

func (t *pahoTransport) Events() <-chan Event {
	return t.events
}

func (t *pahoTransport) Disconnect() {
	t.client.Disconnect(250)
}
