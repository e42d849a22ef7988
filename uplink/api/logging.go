// Copyright (c) OscarVanL
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/OscarVanL/COMP6254-IoT-Systems/uplink"
)

var _ uplink.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    uplink.Service
}

// LoggingMiddleware adds logging facilities to the core service.
func LoggingMiddleware(svc uplink.Service, logger *slog.Logger) uplink.Service {
	return &loggingMiddleware{
		logger: logger,
		svc:    svc,
	}
}

func (lm *loggingMiddleware) HandleUplink(ctx context.Context, topic string, payload []byte) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("topic", topic),
			slog.Int("payload_size", len(payload)),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Handle uplink failed", args...)
			return
		}
		lm.logger.Info("Handle uplink completed successfully", args...)
	}(time.Now())

	return lm.svc.HandleUplink(ctx, topic, payload)
}

func (lm *loggingMiddleware) Replay(ctx context.Context) (skipped int, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.Int("skipped_rows", skipped),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Replay failed", args...)
			return
		}
		lm.logger.Info("Replay completed successfully", args...)
	}(time.Now())

	return lm.svc.Replay(ctx)
}
