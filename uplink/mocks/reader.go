// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"io"
	"sync"

	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

var _ uplink.RecordReader = (*RecordReader)(nil)

// RecordReader replays a fixed sequence of results. A step with a
// non-nil error yields that error in place of a record.
type RecordReader struct {
	mu    sync.Mutex
	steps []ReadStep
	pos   int
}

type ReadStep struct {
	Record uplink.Record
	Err    error
}

// NewRecordReader returns a reader over the given steps, ending with
// io.EOF.
func NewRecordReader(steps []ReadStep) *RecordReader {
	return &RecordReader{steps: steps}
}

func (m *RecordReader) Next() (uplink.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.pos >= len(m.steps) {
		return uplink.Record{}, io.EOF
	}
	step := m.steps[m.pos]
	m.pos++

	if step.Err != nil {
		return uplink.Record{}, step.Err
	}
	return step.Record, nil
}

func (m *RecordReader) Close() error {
	return nil
}
