package telemetry

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
	"vitalbridge.dev/telemetry-service/pkg/registry"
)

type atomicCounter struct {
	v atomic.Uint64
}

func (c *atomicCounter) Add()         { c.v.Add(1) }
func (c *atomicCounter) Load() uint64 { return c.v.Load() }

// Ingest persists one canonical reading and hands it to the threshold engine,
// fan-out broker, and interchange forwarder without awaiting them. Persistence
// failure is fatal to the call; everything downstream is detached.
func (c *Core) Ingest(ctx context.Context, reading *models.Reading) (string, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameTelemetryCore,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryReading),
	)

	device, err := c.Registry.Get(ctx, reading.DeviceID)
	if err == nil && c.TenantID != "" && device.TenantID != c.TenantID {
		err = common.NewNotFoundError("device", reading.DeviceID)
	}
	if err != nil {
		if common.IsNotFoundError(err) {
			c.rejected.Add()
			logger.Warn("Reading rejected for unknown device",
				zap.String("device_id", reading.DeviceID),
				zap.Uint64("rejected_total", c.rejected.Load()))
		}
		return "", err
	}

	if reading.ID == "" {
		reading.ID = uuid.NewString()
	}
	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = time.Now()
	}
	if reading.PatientID == "" && device.PatientID != nil {
		reading.PatientID = *device.PatientID
	}

	logger.Info("Received reading for device", zap.Reflect("reading", reading))

	if err := c.Db.Conn.WithContext(ctx).Create(reading).Error; err != nil {
		return "", common.NewDatabaseError("ingest", err)
	}

	logger.Info("Persisted reading for device", zap.Reflect("reading", reading))

	// Best-effort liveness touch; failures are swallowed inside the registry.
	c.Registry.UpdateLiveness(ctx, device.ID, registry.Heartbeat{})

	persisted := *reading
	if c.Evaluator != nil {
		c.spawn(func() error {
			_, err := c.Evaluator.Evaluate(context.Background(), device, &persisted)
			return err
		})
	}
	if c.Publisher != nil {
		c.spawn(func() error {
			c.Publisher.PublishReading(&persisted)
			return nil
		})
	}
	if c.Forwarder != nil {
		c.Forwarder.EnqueueReading(&persisted)
	}

	return reading.ID, nil
}

// GetReading returns a persisted observation by id.
func (c *Core) GetReading(ctx context.Context, id string) (*models.Reading, error) {
	var r models.Reading
	err := c.Db.Conn.WithContext(ctx).First(&r, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFoundError("reading", id)
	}
	if err != nil {
		return nil, common.NewDatabaseError("getReading", err)
	}
	return &r, nil
}

// ListReadings returns a device's observations ordered by observation time.
// Clock skew means arrival order is not clinical order, so order is imposed
// here at query time.
func (c *Core) ListReadings(ctx context.Context, deviceID string, from, to *time.Time, limit int) ([]models.Reading, error) {
	if limit <= 0 || limit > 1000 {
		limit = 200
	}
	q := c.Db.Conn.WithContext(ctx).Where("device_id = ?", deviceID)
	if from != nil {
		q = q.Where("observed_at >= ?", *from)
	}
	if to != nil {
		q = q.Where("observed_at <= ?", *to)
	}

	var readings []models.Reading
	err := q.Order("observed_at asc").Limit(limit).Find(&readings).Error
	if err != nil {
		return nil, common.NewDatabaseError("listReadings", err)
	}
	return readings, nil
}
