// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package records persists measurement records to an append-only CSV
// log and streams them back for replay.
package records

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

// header is the fixed column order of the log. Rows written by older
// revisions of the relay stay readable as long as this order holds.
var header = []string{
	"sent_time", "received_time", "rssi", "snr", "data_rate",
	"temperature", "humidity", "ldr",
	"sec_since_pir", "PIR_triggered_time",
	"sec_since_fridge", "fridge_opened_time",
}

var (
	errOpenLog    = errors.New("failed to open record log")
	errWriteLog   = errors.New("failed to write record log")
	errFieldCount = errors.New("wrong column count")
)

var _ uplink.Store = (*csvStore)(nil)

type csvStore struct {
	path string
}

// New returns a Store backed by the CSV file at path. The file is
// created with a header row on first append.
func New(path string) uplink.Store {
	return &csvStore{path: path}
}

func (s *csvStore) Append(rec uplink.Record) error {
	_, err := os.Stat(s.path)
	newFile := os.IsNotExist(err)

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(errOpenLog, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if newFile {
		if err := w.Write(header); err != nil {
			return errors.Wrap(errWriteLog, err)
		}
	}
	if err := w.Write(formatRow(rec)); err != nil {
		return errors.Wrap(errWriteLog, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Wrap(errWriteLog, err)
	}

	return nil
}

// ReadAll opens the log from the start. Each call returns a fresh
// reader, so the log can be replayed any number of times.
func (s *csvStore) ReadAll() (uplink.RecordReader, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, errors.Wrap(errOpenLog, err)
	}

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(header)

	// Skip the header row.
	if _, err := r.Read(); err != nil && err != io.EOF {
		f.Close()
		return nil, errors.Wrap(uplink.ErrCorruptRecord, err)
	}

	return &csvReader{f: f, r: r}, nil
}

type csvReader struct {
	f *os.File
	r *csv.Reader
}

// Next parses the next row. A row with the wrong column count or an
// unparseable field yields ErrCorruptRecord; the reader stays usable,
// so replay can skip the row and continue. io.EOF ends the stream.
func (cr *csvReader) Next() (uplink.Record, error) {
	row, err := cr.r.Read()
	switch {
	case err == io.EOF:
		return uplink.Record{}, io.EOF
	case err != nil:
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}

	return parseRow(row)
}

func (cr *csvReader) Close() error {
	return cr.f.Close()
}

func formatRow(rec uplink.Record) []string {
	return []string{
		rec.Time.Format(time.RFC3339Nano),
		rec.ReceivedTime.Format(time.RFC3339Nano),
		strconv.Itoa(rec.RSSI),
		strconv.FormatFloat(rec.SNR, 'f', -1, 64),
		rec.DataRateRaw,
		strconv.FormatFloat(rec.Temperature, 'f', -1, 64),
		strconv.FormatInt(rec.Humidity, 10),
		strconv.FormatInt(rec.LDR, 10),
		formatOptInt(rec.SecSincePIR),
		formatOptTime(rec.PIRTriggeredTime),
		formatOptInt(rec.SecSinceFridge),
		formatOptTime(rec.FridgeOpenedTime),
	}
}

// parseRow reapplies the same type conversions as the live uplink
// path. Empty optional cells stay absent, they are never defaulted.
func parseRow(row []string) (uplink.Record, error) {
	if len(row) != len(header) {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, errFieldCount)
	}

	var (
		rec uplink.Record
		err error
	)

	if rec.Time, err = time.Parse(time.RFC3339Nano, row[0]); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.ReceivedTime, err = time.Parse(time.RFC3339Nano, row[1]); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.RSSI, err = strconv.Atoi(row[2]); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.SNR, err = strconv.ParseFloat(row[3], 64); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	rec.DataRateRaw = row[4]
	if rec.DataRate, err = uplink.ParseDataRate(row[4]); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.Temperature, err = strconv.ParseFloat(row[5], 64); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.Humidity, err = strconv.ParseInt(row[6], 10, 64); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.LDR, err = strconv.ParseInt(row[7], 10, 64); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.SecSincePIR, err = parseOptInt(row[8]); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.PIRTriggeredTime, err = parseOptTime(row[9]); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.SecSinceFridge, err = parseOptInt(row[10]); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}
	if rec.FridgeOpenedTime, err = parseOptTime(row[11]); err != nil {
		return uplink.Record{}, errors.Wrap(uplink.ErrCorruptRecord, err)
	}

	return rec, nil
}

func formatOptInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatOptTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

func parseOptInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func parseOptTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
