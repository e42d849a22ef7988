// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the service decorators and the ops HTTP surface.
package api

import (
	"net/http"

	"github.com/go-zoo/bone"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	iot "github.com/OscarVanL/COMP6254-IoT-Systems"
)

// MakeHandler returns a HTTP API handler with health check and metrics.
func MakeHandler(svcName, instanceID string) http.Handler {
	r := bone.New()
	r.GetFunc("/health", iot.Health(svcName, instanceID))
	r.Handle("/metrics", promhttp.Handler())

	return r
}
