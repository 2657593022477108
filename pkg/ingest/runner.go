package ingest

import (
	"context"
	"time"

	"go.uber.org/zap"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/hub"
	"vitalwatch.dev/vitals-telemetry-service/pkg/vitals"
)

const DefaultSampleInterval = 2 * time.Second

// Runner is the per-device periodic driver: every interval it pulls a
// candidate from the source, validates, persists, evaluates alerts and
// broadcasts. Failures are per-tick: a rejected candidate or a failed
// store write skips the rest of the tick and the loop carries on.
type Runner struct {
	DeviceID string
	Source   Source
	Vitals   *vitals.Vitals
	Hub      *hub.Hub
	Bridge   *hub.RedisBridge
	Interval time.Duration
}

func (r *Runner) interval() time.Duration {
	if r.Interval > 0 {
		return r.Interval
	}
	return DefaultSampleInterval
}

func (r *Runner) Run(ctx context.Context) {
	logger := common.GetLoggerWith(
		common.LoggerNameIngestLoop,
		zap.String("device_id", r.DeviceID),
	)

	logger.Info("Ingestion loop started", zap.Duration("interval", r.interval()))

	ticker := time.NewTicker(r.interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Ingestion loop stopped")
			return
		case <-ticker.C:
			r.tick(ctx, logger)
		}
	}
}

func (r *Runner) tick(ctx context.Context, logger *zap.Logger) {
	candidate := r.Source.Next(r.DeviceID)

	reading, err := vitals.ValidateReading(&candidate)
	if err != nil {
		// Rejection is silent to the pipeline: no store write, no
		// broadcast, no alert.
		logger.Debug("Rejected candidate reading", zap.Error(err))
		return
	}

	if err := r.Vitals.History.AppendReading(r.DeviceID, &reading); err != nil {
		logger.Warn("Failed to persist reading, skipping broadcast this tick", zap.Error(err))
		return
	}

	alerts := vitals.EvaluateReading(&reading)
	if len(alerts) > 0 {
		if err := r.Vitals.Alert.StoreAlerts(r.DeviceID, alerts); err != nil {
			logger.Warn("Failed to store alerts", zap.Error(err))
		}
	}

	r.publish(ctx, logger, hub.Envelope{Type: hub.EnvelopeDeviceUpdates, Payload: reading})
	for _, alert := range alerts {
		r.publish(ctx, logger, hub.Envelope{Type: hub.EnvelopeAlert, Payload: alert})
	}
}

func (r *Runner) publish(ctx context.Context, logger *zap.Logger, env hub.Envelope) {
	r.Hub.Publish(r.DeviceID, env)

	if r.Bridge != nil {
		if err := r.Bridge.Forward(ctx, r.DeviceID, env); err != nil {
			logger.Warn("Failed to forward envelope to bridge", zap.Error(err))
		}
	}
}
