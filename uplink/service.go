// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package uplink turns raw uplink events into measurement records and
// drives them through the store and the telemetry relay.
package uplink

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
)

// ErrCorruptRecord indicates a stored row that cannot be parsed back
// into a Record. Replay skips such rows and reports their count.
var ErrCorruptRecord = errors.New("corrupt stored record")

// Relay delivers one measurement record to the telemetry backend.
type Relay interface {
	Send(record Record) error
}

// Store persists measurement records and streams them back for replay.
type Store interface {
	// Append writes one record to the durable log.
	Append(record Record) error

	// ReadAll opens the log from the start. Every call returns a fresh
	// reader, so replay can run any number of times.
	ReadAll() (RecordReader, error)
}

// RecordReader is a lazy stream of stored records. Next returns io.EOF
// at the end of the log and ErrCorruptRecord for an unparseable row;
// the reader stays usable after a corrupt row.
type RecordReader interface {
	Next() (Record, error)
	Close() error
}

// Service specifies the decode-and-relay API that must be fulfilled by
// the service implementation and all of its decorators.
type Service interface {
	// HandleUplink processes one raw uplink event: reconstruct the
	// record, persist it and relay it. Store and relay failures are
	// independent, one does not prevent the other.
	HandleUplink(ctx context.Context, topic string, payload []byte) error

	// Replay streams every stored record through the same relay path
	// used for live data. It returns the number of corrupt rows that
	// had to be skipped.
	Replay(ctx context.Context) (int, error)
}

var _ Service = (*uplinkService)(nil)

type uplinkService struct {
	store       Store
	relay       Relay
	replayDelay time.Duration
	logger      *slog.Logger
}

// New instantiates the uplink service. replayDelay is the pacing
// delay between replayed sends.
func New(store Store, relay Relay, replayDelay time.Duration, logger *slog.Logger) Service {
	return &uplinkService{
		store:       store,
		relay:       relay,
		replayDelay: replayDelay,
		logger:      logger,
	}
}

func (svc *uplinkService) HandleUplink(ctx context.Context, topic string, payload []byte) error {
	rec, err := ParseMessage(payload, time.Now())
	if err != nil {
		return err
	}

	appendErr := svc.store.Append(rec)
	sendErr := svc.relay.Send(rec)

	switch {
	case appendErr != nil && sendErr != nil:
		return errors.Wrap(appendErr, sendErr)
	case appendErr != nil:
		return appendErr
	default:
		return sendErr
	}
}

func (svc *uplinkService) Replay(ctx context.Context) (int, error) {
	reader, err := svc.store.ReadAll()
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	var skipped int
	for {
		rec, err := reader.Next()
		switch {
		case err == io.EOF:
			return skipped, nil
		case errors.Contains(err, ErrCorruptRecord):
			skipped++
			svc.logger.Warn(fmt.Sprintf("skipping corrupt record during replay: %s", err))
			continue
		case err != nil:
			return skipped, err
		}

		if err := svc.relay.Send(rec); err != nil {
			svc.logger.Warn(fmt.Sprintf("failed to relay replayed record from %s: %s", rec.Time, err))
		}

		select {
		case <-ctx.Done():
			return skipped, ctx.Err()
		case <-time.After(svc.replayDelay):
		}
	}
}
