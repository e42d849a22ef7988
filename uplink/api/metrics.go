// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"

	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

var _ uplink.Service = (*metricsMiddleware)(nil)

type metricsMiddleware struct {
	counter metrics.Counter
	latency metrics.Histogram
	svc     uplink.Service
}

// MetricsMiddleware instruments core service by tracking request count
// and latency.
func MetricsMiddleware(svc uplink.Service, counter metrics.Counter, latency metrics.Histogram) uplink.Service {
	return &metricsMiddleware{
		counter: counter,
		latency: latency,
		svc:     svc,
	}
}

func (mm *metricsMiddleware) HandleUplink(ctx context.Context, topic string, payload []byte) error {
	defer func(begin time.Time) {
		mm.counter.With("method", "handle_uplink").Add(1)
		mm.latency.With("method", "handle_uplink").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.HandleUplink(ctx, topic, payload)
}

func (mm *metricsMiddleware) Replay(ctx context.Context) (int, error) {
	defer func(begin time.Time) {
		mm.counter.With("method", "replay").Add(1)
		mm.latency.With("method", "replay").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mm.svc.Replay(ctx)
}
