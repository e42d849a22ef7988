// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package main contains relay main function to start the uplink relay
// service.
package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"golang.org/x/sync/errgroup"

	"github.com/OscarVanL/COMP6254-IoT-Systems/internal"
	"github.com/OscarVanL/COMP6254-IoT-Systems/internal/server"
	httpserver "github.com/OscarVanL/COMP6254-IoT-Systems/internal/server/http"
	iotlog "github.com/OscarVanL/COMP6254-IoT-Systems/logger"
	"github.com/OscarVanL/COMP6254-IoT-Systems/pkg/uuid"
	"github.com/OscarVanL/COMP6254-IoT-Systems/records"
	"github.com/OscarVanL/COMP6254-IoT-Systems/telemetry"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink/api"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink/mqtt"
)

const (
	svcName        = "uplink-relay"
	envPrefix      = "RELAY_"
	envPrefixHTTP  = "RELAY_HTTP_"
	defSvcHTTPPort = "9017"
)

type config struct {
	LogLevel      string        `env:"RELAY_LOG_LEVEL"      envDefault:"info"`
	BrokerURL     string        `env:"RELAY_MQTT_URL"       envDefault:"tcp://eu.thethings.network:1883"`
	BrokerUser    string        `env:"RELAY_MQTT_USER"      envDefault:""`
	BrokerPass    string        `env:"RELAY_MQTT_PASS"      envDefault:""`
	BrokerTopic   string        `env:"RELAY_MQTT_TOPIC"     envDefault:"+/devices/+/up"`
	BrokerTimeout time.Duration `env:"RELAY_MQTT_TIMEOUT"   envDefault:"30s"`
	CSVFile       string        `env:"RELAY_CSV_FILE"       envDefault:"sensor_data.csv"`
	ReplayDelay   time.Duration `env:"RELAY_REPLAY_DELAY"   envDefault:"500ms"`
	InstanceID    string        `env:"RELAY_INSTANCE_ID"    envDefault:""`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load %s configuration : %s", svcName, err)
	}

	logger, err := iotlog.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %s", err.Error())
	}

	var exitCode int
	defer iotlog.ExitWithError(&exitCode)

	if cfg.InstanceID == "" {
		if cfg.InstanceID, err = uuid.New().ID(); err != nil {
			logger.Error(fmt.Sprintf("failed to generate instanceID: %s", err))
			exitCode = 1
			return
		}
	}

	httpServerConfig := server.Config{Port: defSvcHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err))
		exitCode = 1
		return
	}

	telemetryConfig := telemetry.Config{}
	if err := env.ParseWithOptions(&telemetryConfig, env.Options{Prefix: envPrefix}); err != nil {
		logger.Error(fmt.Sprintf("failed to load telemetry backend configuration : %s", err))
		exitCode = 1
		return
	}

	gate := telemetry.NewDedupGate()
	relay := telemetry.NewRelay(telemetryConfig, gate)
	store := records.New(cfg.CSVFile)
	svc := newService(store, relay, cfg.ReplayDelay, logger)

	transport := mqtt.NewTransport(cfg.BrokerURL, cfg.BrokerUser, cfg.BrokerPass, svcName+"-"+cfg.InstanceID, cfg.BrokerTimeout)
	loop := mqtt.NewLoop(transport, svc, cfg.BrokerTopic, logger)

	hs := httpserver.New(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svcName, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return loop.Run(ctx)
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service terminated: %s", svcName, err))
	}
}

func newService(store uplink.Store, relay uplink.Relay, replayDelay time.Duration, logger *slog.Logger) uplink.Service {
	svc := uplink.New(store, relay, replayDelay, logger)
	svc = api.LoggingMiddleware(svc, logger)
	counter, latency := internal.MakeMetrics("uplink_relay", "api")
	svc = api.MetricsMiddleware(svc, counter, latency)

	return svc
}
