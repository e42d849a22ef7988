// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

// Package cli contains the operator CLI commands.
package cli

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

// BuildFunc wires a replay-capable uplink service for the given record
// log and pacing delay.
type BuildFunc func(csvFile string, delay time.Duration) (uplink.Service, error)

// NewReplayCmd returns the command that replays the record log through
// the live relay path.
func NewReplayCmd(build BuildFunc) *cobra.Command {
	var (
		csvFile string
		delay   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay logged records",
		Long: "Replay every record in the CSV log through the telemetry relay\n" +
			"usage:\n" +
			"\trelay-cli replay --csv sensor_data.csv --delay 500ms",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) != 0 {
				logUsageCmd(*cmd, cmd.Use)
				return
			}

			svc, err := build(csvFile, delay)
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}

			skipped, err := svc.Replay(cmd.Context())
			if err != nil {
				logErrorCmd(*cmd, err)
				return
			}

			if skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), color.YellowString("\nskipped %d corrupt rows\n"), skipped)
			}
			logOKCmd(*cmd)
		},
	}

	cmd.Flags().StringVarP(&csvFile, "csv", "c", "sensor_data.csv", "Path to the record log")
	cmd.Flags().DurationVarP(&delay, "delay", "d", 500*time.Millisecond, "Pacing delay between replayed sends")

	return cmd
}
