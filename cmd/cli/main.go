// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package main contains the entry point of the relay CLI.
package main

import (
	"log"
	"os"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/spf13/cobra"

	"github.com/OscarVanL/COMP6254-IoT-Systems/cli"
	iotlog "github.com/OscarVanL/COMP6254-IoT-Systems/logger"
	"github.com/OscarVanL/COMP6254-IoT-Systems/records"
	"github.com/OscarVanL/COMP6254-IoT-Systems/telemetry"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink/api"
)

const envPrefix = "RELAY_"

func main() {
	logger, err := iotlog.New(os.Stderr, "warn")
	if err != nil {
		log.Fatalf("failed to init logger: %s", err.Error())
	}

	build := func(csvFile string, delay time.Duration) (uplink.Service, error) {
		telemetryConfig := telemetry.Config{}
		if err := env.ParseWithOptions(&telemetryConfig, env.Options{Prefix: envPrefix}); err != nil {
			return nil, err
		}

		gate := telemetry.NewDedupGate()
		relay := telemetry.NewRelay(telemetryConfig, gate)
		store := records.New(csvFile)
		svc := uplink.New(store, relay, delay, logger)

		return api.LoggingMiddleware(svc, logger), nil
	}

	rootCmd := &cobra.Command{
		Use:   "relay-cli",
		Short: "Kitchen sensor relay CLI",
		Long:  "Operator CLI for the kitchen sensor uplink relay",
	}

	rootCmd.AddCommand(cli.NewReplayCmd(build))
	rootCmd.AddCommand(cli.NewVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
