package adapters

import (
	"context"
	"time"

	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

// Sink receives canonical readings from adapters. The telemetry core
// satisfies it.
type Sink interface {
	Ingest(ctx context.Context, r *models.Reading) (string, error)
}

// StatusUpdater lets an adapter mark its devices as failed. The device
// registry satisfies it.
type StatusUpdater interface {
	UpdateStatus(ctx context.Context, id string, newStatus models.DeviceStatus, reason, errorCode, by string) (*models.Device, error)
}

// AlertRaiser lets an adapter raise transport alerts (connection-lost). The
// alert engine satisfies it.
type AlertRaiser interface {
	Raise(ctx context.Context, alert *models.Alert) (*models.Alert, error)
}

// Adapter is the per-transport capability. Connect establishes the transport,
// Serve delivers messages until ctx cancellation or transport failure, and
// Disconnect releases the transport. Adapters are isolated: a decode failure
// or disconnection on one never affects another.
type Adapter interface {
	Name() string
	Connect(ctx context.Context) error
	Serve(ctx context.Context) error
	Disconnect() error
}

// Supervisor runs one adapter with exponential-backoff reconnection. After
// MaxAttempts consecutive failures it marks the adapter's devices
// status=error/connection_lost through the registry, raises a
// connection-lost alert per device, and stops.
type Supervisor struct {
	Adapter  Adapter
	Registry StatusUpdater
	Alerts   AlertRaiser

	// DeviceIDs are the devices served by this adapter, marked failed when
	// reconnection gives up.
	DeviceIDs []string

	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func NewSupervisor(a Adapter, reg StatusUpdater, raiser AlertRaiser, deviceIDs []string) *Supervisor {
	return &Supervisor{
		Adapter:     a,
		Registry:    reg,
		Alerts:      raiser,
		DeviceIDs:   deviceIDs,
		MaxAttempts: 8,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

func (s *Supervisor) backoff(attempt int) time.Duration {
	d := s.BaseDelay << attempt
	if d > s.MaxDelay || d <= 0 {
		d = s.MaxDelay
	}
	return d
}

// Run blocks until ctx is cancelled or the adapter is given up on.
func (s *Supervisor) Run(ctx context.Context) {
	logger := common.GetLoggerWith(
		common.LoggerNameAdapter,
		zap.String("adapter", s.Adapter.Name()),
	)

	attempts := 0
	for {
		if ctx.Err() != nil {
			return
		}

		if err := s.Adapter.Connect(ctx); err != nil {
			attempts++
			logger.Warn("Adapter connect failed",
				zap.Int("attempt", attempts),
				zap.Error(err))
			if attempts >= s.MaxAttempts {
				s.giveUp(ctx, logger)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(s.backoff(attempts)):
			}
			continue
		}

		started := time.Now()
		err := s.Adapter.Serve(ctx)
		if derr := s.Adapter.Disconnect(); derr != nil {
			logger.Warn("Adapter disconnect failed", zap.Error(derr))
		}
		if ctx.Err() != nil {
			return
		}

		// Only a session that outlived MaxDelay refreshes the attempt
		// budget. A transport that closes right after connecting, cleanly
		// or not, counts like a failed attempt.
		if time.Since(started) >= s.MaxDelay {
			attempts = 0
		}
		attempts++
		if err != nil {
			logger.Warn("Adapter transport failed, reconnecting",
				zap.Int("attempt", attempts),
				zap.Error(err))
		} else {
			logger.Warn("Adapter transport closed, reconnecting",
				zap.Int("attempt", attempts))
		}
		if attempts >= s.MaxAttempts {
			s.giveUp(ctx, logger)
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff(attempts)):
		}
	}
}

func (s *Supervisor) giveUp(ctx context.Context, logger *zap.Logger) {
	logger.Error("Adapter gave up after max reconnect attempts",
		zap.Int("max_attempts", s.MaxAttempts))

	for _, id := range s.DeviceIDs {
		if s.Registry != nil {
			_, err := s.Registry.UpdateStatus(ctx, id,
				models.DeviceStatusError,
				"adapter reconnection exhausted",
				models.ErrorCodeConnectionLost,
				s.Adapter.Name())
			if err != nil {
				logger.Warn("Failed to mark device lost",
					zap.String("device_id", id),
					zap.Error(err))
			}
		}
		if s.Alerts != nil {
			_, err := s.Alerts.Raise(ctx, &models.Alert{
				DeviceID: id,
				Type:     models.AlertTypeConnectionLost,
				Severity: models.SeverityHigh,
				Message:  "device transport lost: " + s.Adapter.Name(),
			})
			if err != nil {
				logger.Warn("Failed to raise connection-lost alert",
					zap.String("device_id", id),
					zap.Error(err))
			}
		}
	}
}
