// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"fmt"
	"time"
)

// binMinutes is the width of a histogram time-of-day bin.
const binMinutes = 30

// Kind discriminates the activity events the sensor reports.
type Kind int

const (
	// Motion is a PIR motion event.
	Motion Kind = iota
	// Fridge is a fridge-door-opened event.
	Fridge
)

func (k Kind) String() string {
	switch k {
	case Motion:
		return "pir"
	case Fridge:
		return "fridge"
	default:
		return "unknown"
	}
}

// DedupGate suppresses repeated emission of the same activity event
// across report cycles. The sensor keeps reporting "seconds since"
// counters on every uplink, so the same trigger reappears until the
// next one; rounding to a minute bucket and comparing against the
// last emitted bucket filters those repeats out.
//
// The gate holds per-kind state for the life of the relay session. The
// message path is single-threaded, so no locking is needed.
type DedupGate struct {
	lastBucket map[Kind]time.Time
}

// NewDedupGate returns a gate with no stored buckets, so the first
// event of each kind always emits.
func NewDedupGate() *DedupGate {
	return &DedupGate{
		lastBucket: make(map[Kind]time.Time),
	}
}

// ShouldEmit reports whether an activity event at t is new for the
// given kind, storing its bucket when it is. Timestamps are rounded to
// the nearest whole minute, 30 seconds round up.
func (g *DedupGate) ShouldEmit(kind Kind, t time.Time) bool {
	bucket := Bucket(t)
	if last, ok := g.lastBucket[kind]; ok && last.Equal(bucket) {
		return false
	}
	g.lastBucket[kind] = bucket

	return true
}

// Bucket rounds t to the nearest whole minute. Exactly 30 seconds
// rounds up.
func Bucket(t time.Time) time.Time {
	return t.Round(time.Minute)
}

// HistogramBin maps the time-of-day of t's bucket to one of 48 fixed
// half-hour bin labels: 0000, 0030, ... 2330.
func HistogramBin(t time.Time) string {
	b := Bucket(t)
	idx := (b.Hour()*60 + b.Minute()) / binMinutes

	return fmt.Sprintf("%02d%02d", idx/2, (idx%2)*binMinutes)
}
