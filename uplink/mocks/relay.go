// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

var _ uplink.Relay = (*Relay)(nil)

type Relay struct {
	mock.Mock
}

func (m *Relay) Send(rec uplink.Record) error {
	ret := m.Called(rec)

	return ret.Error(0)
}
