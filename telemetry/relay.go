// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package telemetry maps measurement records onto Graphite-style
// time-series points and delivers them to the telemetry backend.
package telemetry

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/errors"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

const (
	namePrefix = "kitcheniot"

	defSendTimeout = 30 * time.Second
)

var (
	// ErrRelay indicates the telemetry backend rejected the batch or
	// was unreachable. The wrapped error carries the response body.
	ErrRelay = errors.New("failed to relay points to telemetry backend")

	errBuildRequest = errors.New("failed to build telemetry request")
)

// Point is one Graphite metric sample.
type Point struct {
	Name     string  `json:"name"`
	Value    float64 `json:"value"`
	Interval int     `json:"interval"`
	Unit     string  `json:"unit"`
	Time     int64   `json:"time"`
	Mtype    string  `json:"mtype"`
}

// Config holds the telemetry backend settings.
type Config struct {
	URL      string        `env:"GRAPHITE_URL"       envDefault:"https://graphite-us-central1.grafana.net/metrics"`
	Username string        `env:"GRAPHITE_USER"      envDefault:""`
	APIKey   string        `env:"GRAPHITE_API_KEY"   envDefault:""`
	Interval time.Duration `env:"REPORT_INTERVAL"    envDefault:"120s"`
	Timeout  time.Duration `env:"GRAPHITE_TIMEOUT"   envDefault:"30s"`
}

var _ uplink.Relay = (*Relay)(nil)

// Relay delivers measurement records as batches of gauge points. The
// activity series go through the dedup gate, so a trigger that is
// still being reported by the sensor is emitted once per bucket only.
type Relay struct {
	cfg    Config
	gate   *DedupGate
	client *http.Client
}

// NewRelay returns a telemetry relay using the given dedup gate. The
// gate is shared with replay so both paths make consistent decisions.
func NewRelay(cfg Config, gate *DedupGate) *Relay {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defSendTimeout
	}
	return &Relay{
		cfg:    cfg,
		gate:   gate,
		client: &http.Client{Timeout: timeout},
	}
}

// Send builds the point batch for one record and posts it to the
// backend. Dedup state advances before the network call: a send
// failure after a positive decision loses that bucket's activity
// points rather than re-emitting them next cycle.
func (r *Relay) Send(rec uplink.Record) error {
	interval := int(r.cfg.Interval / time.Second)
	ts := rec.Time.Unix()

	pts := []Point{
		{Name: namePrefix + ".meta.rssi", Value: float64(rec.RSSI), Interval: interval, Unit: "rssi", Time: ts, Mtype: "gauge"},
		{Name: namePrefix + ".meta.snr", Value: rec.SNR, Interval: interval, Unit: "dB", Time: ts, Mtype: "gauge"},
		{Name: namePrefix + ".meta.data_rate", Value: float64(rec.DataRate), Interval: interval, Unit: "", Time: ts, Mtype: "gauge"},
		{Name: namePrefix + ".sensor.temperature", Value: rec.Temperature, Interval: interval, Unit: "°C", Time: ts, Mtype: "gauge"},
		{Name: namePrefix + ".sensor.humidity", Value: float64(rec.Humidity), Interval: interval, Unit: "%", Time: ts, Mtype: "gauge"},
		{Name: namePrefix + ".sensor.ldr", Value: float64(rec.LDR), Interval: interval, Unit: "", Time: ts, Mtype: "gauge"},
	}

	pts = append(pts, r.activityPoints(Motion, rec.PIRTriggeredTime, interval)...)
	pts = append(pts, r.activityPoints(Fridge, rec.FridgeOpenedTime, interval)...)

	return r.post(pts)
}

// activityPoints returns the pair of points for one activity kind: a
// gauge valued 1 at the rounded bucket time and its half-hour
// histogram bin counterpart. Nothing is emitted for an absent trigger
// or a bucket that already went out.
func (r *Relay) activityPoints(kind Kind, triggered *time.Time, interval int) []Point {
	if triggered == nil || !r.gate.ShouldEmit(kind, *triggered) {
		return nil
	}

	bucket := Bucket(*triggered)
	name := namePrefix + ".activity." + kind.String()

	return []Point{
		{Name: name, Value: 1, Interval: interval, Unit: "", Time: bucket.Unix(), Mtype: "gauge"},
		{Name: name + ".halfhour." + HistogramBin(*triggered), Value: 1, Interval: interval, Unit: "", Time: bucket.Unix(), Mtype: "gauge"},
	}
}

func (r *Relay) post(pts []Point) error {
	body, err := json.Marshal(pts)
	if err != nil {
		return errors.Wrap(errBuildRequest, err)
	}

	req, err := http.NewRequest(http.MethodPost, r.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(errBuildRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(r.cfg.Username, r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return errors.Wrap(ErrRelay, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return errors.Wrap(ErrRelay, errors.New(string(respBody)))
	}

	return nil
}
