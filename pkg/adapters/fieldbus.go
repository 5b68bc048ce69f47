package adapters

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

// Poller reads the device's current registers and returns a canonical
// reading. Register-level access is device-specific and supplied by the
// caller.
type Poller func(ctx context.Context) (*models.Reading, error)

// FieldbusAdapter polls one field-bus device at a fixed interval.
type FieldbusAdapter struct {
	DeviceID string
	Interval time.Duration
	Poll     Poller

	sink      Sink
	pollFails atomic.Uint64
}

func NewFieldbusAdapter(deviceID string, interval time.Duration, poll Poller, sink Sink) *FieldbusAdapter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &FieldbusAdapter{
		DeviceID: deviceID,
		Interval: interval,
		Poll:     poll,
		sink:     sink,
	}
}

func (a *FieldbusAdapter) Name() string { return "fieldbus:" + a.DeviceID }

// PollFailures reports how many polls have failed since start.
func (a *FieldbusAdapter) PollFailures() uint64 { return a.pollFails.Load() }

func (a *FieldbusAdapter) Connect(ctx context.Context) error {
	// Probe once so the supervisor's backoff applies to unreachable buses.
	_, err := a.Poll(ctx)
	return err
}

func (a *FieldbusAdapter) Serve(ctx context.Context) error {
	logger := common.GetLoggerWith(
		common.LoggerNameAdapter,
		zap.String("adapter", a.Name()),
	)

	ticker := time.NewTicker(a.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			reading, err := a.Poll(ctx)
			if err != nil {
				a.pollFails.Add(1)
				logger.Warn("Poll failed",
					zap.String("device_id", a.DeviceID),
					zap.Uint64("poll_failures", a.pollFails.Load()),
					zap.Error(err))
				continue
			}
			if reading == nil {
				continue
			}
			if reading.DeviceID == "" {
				reading.DeviceID = a.DeviceID
			}
			if _, err := a.sink.Ingest(context.Background(), reading); err != nil {
				logger.Warn("Field-bus reading rejected",
					zap.String("device_id", a.DeviceID),
					zap.Error(err))
			}
		}
	}
}

func (a *FieldbusAdapter) Disconnect() error { return nil }
