// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"github.com/stretchr/testify/mock"

	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

var _ uplink.Store = (*Store)(nil)

type Store struct {
	mock.Mock
}

func (m *Store) Append(rec uplink.Record) error {
	ret := m.Called(rec)

	return ret.Error(0)
}

func (m *Store) ReadAll() (uplink.RecordReader, error) {
	ret := m.Called()

	var reader uplink.RecordReader
	if ret.Get(0) != nil {
		reader = ret.Get(0).(uplink.RecordReader)
	}

	return reader, ret.Error(1)
}
