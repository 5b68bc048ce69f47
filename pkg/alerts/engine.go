package alerts

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/db"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

// Notifier delivers a critical alert to the external messaging collaborator
// and reports which channels it used. Best-effort; the engine records the
// outcome on the alert row.
type Notifier interface {
	SendCriticalAlert(ctx context.Context, a *models.Alert) ([]string, error)
}

// Publisher fans created critical alerts out to live observers.
type Publisher interface {
	PublishAlert(a *models.Alert)
}

// Forwarder mirrors created alerts to the interchange sink. Enqueue never
// blocks.
type Forwarder interface {
	EnqueueAlert(a *models.Alert)
}

// Engine owns alert creation and is the only writer of alert lifecycle
// transitions. Alert creation is append-only: evaluating the same reading
// twice produces duplicate rows; deduplication belongs to consumers.
type Engine struct {
	Db        *db.DB
	Defaults  models.ThresholdSet
	Notifier  Notifier
	Fanout    Publisher
	Forwarder Forwarder
	Now       func() time.Time
}

func New(database *db.DB) *Engine {
	return &Engine{
		Db:       database,
		Defaults: DefaultThresholds(),
		Now:      time.Now,
	}
}

func f64(v float64) *float64 { return &v }

// DefaultThresholds is the registry-wide default set, used by any device
// without an explicit override. Heart-rate critical bounds are 40/150;
// oxygen saturation is a saturation-type parameter and carries only lower
// bounds.
func DefaultThresholds() models.ThresholdSet {
	return models.ThresholdSet{
		models.ParamTemperature: {
			Min: f64(36.1), Max: f64(38.0),
			CriticalMin: f64(35.0), CriticalMax: f64(39.5),
		},
		models.ParamHeartRate: {
			Min: f64(60), Max: f64(100),
			CriticalMin: f64(40), CriticalMax: f64(150),
		},
		models.ParamRespiratoryRate: {
			Min: f64(12), Max: f64(20),
			CriticalMin: f64(8), CriticalMax: f64(30),
		},
		models.ParamBPSystolic: {
			Min: f64(90), Max: f64(140),
			CriticalMin: f64(80), CriticalMax: f64(180),
		},
		models.ParamBPDiastolic: {
			Min: f64(60), Max: f64(90),
			CriticalMin: f64(50), CriticalMax: f64(120),
		},
		models.ParamOxygenSaturation: {
			Min:         f64(95),
			CriticalMin: f64(90),
		},
		models.ParamPulseRate: {
			Min: f64(60), Max: f64(100),
			CriticalMin: f64(40), CriticalMax: f64(150),
		},
	}
}

type violation struct {
	severity  models.AlertSeverity
	threshold float64
	direction string
}

func checkRange(v float64, r models.ThresholdRange) *violation {
	if r.CriticalMin != nil && v < *r.CriticalMin {
		return &violation{severity: models.SeverityCritical, threshold: *r.CriticalMin, direction: "below"}
	}
	if r.CriticalMax != nil && v > *r.CriticalMax {
		return &violation{severity: models.SeverityCritical, threshold: *r.CriticalMax, direction: "above"}
	}
	if r.Min != nil && v < *r.Min {
		return &violation{severity: models.SeverityHigh, threshold: *r.Min, direction: "below"}
	}
	if r.Max != nil && v > *r.Max {
		return &violation{severity: models.SeverityHigh, threshold: *r.Max, direction: "above"}
	}
	return nil
}

// Evaluate compares each parameter present on the reading against the active
// threshold set and creates one alert row per violating parameter, plus
// quality alerts for lead-off and poor signal. Critical alerts trigger
// notification dispatch and fan-out.
func (e *Engine) Evaluate(ctx context.Context, device *models.Device, reading *models.Reading) ([]models.Alert, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertEngine,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryAlert),
	)

	thresholds := e.Defaults
	if device.Thresholds != nil {
		thresholds = *device.Thresholds
	}

	var created []models.Alert
	for _, pv := range reading.Parameters() {
		rng, ok := thresholds[pv.Name]
		if !ok {
			continue
		}
		vio := checkRange(pv.Value, rng)
		if vio == nil {
			continue
		}

		severity := vio.severity
		// Saturation-type soft bound is a gentler signal than other soft
		// bounds.
		if severity == models.SeverityHigh && pv.Name == models.ParamOxygenSaturation {
			severity = models.SeverityMedium
		}

		alert := models.Alert{
			ID:        uuid.NewString(),
			DeviceID:  reading.DeviceID,
			PatientID: reading.PatientID,
			ReadingID: reading.ID,
			Type:      models.AlertTypeCriticalValue,
			Severity:  severity,
			Parameter: pv.Name,
			Value:     f64(pv.Value),
			Threshold: f64(vio.threshold),
			Message: fmt.Sprintf("%s %.2f %s threshold %.2f",
				pv.Name, pv.Value, vio.direction, vio.threshold),
			CreatedAt: e.Now(),
		}
		if err := e.create(ctx, logger, &alert); err != nil {
			return created, err
		}
		created = append(created, alert)
	}

	for _, alert := range e.qualityAlerts(reading) {
		if err := e.create(ctx, logger, alert); err != nil {
			return created, err
		}
		created = append(created, *alert)
	}

	return created, nil
}

func (e *Engine) qualityAlerts(reading *models.Reading) []*models.Alert {
	var out []*models.Alert
	if reading.Quality.LeadOff {
		out = append(out, &models.Alert{
			ID:        uuid.NewString(),
			DeviceID:  reading.DeviceID,
			PatientID: reading.PatientID,
			ReadingID: reading.ID,
			Type:      models.AlertTypeLeadOff,
			Severity:  models.SeverityHigh,
			Message:   "lead-off detected",
			CreatedAt: e.Now(),
		})
	}
	if reading.Quality.Signal == models.SignalPoor {
		out = append(out, &models.Alert{
			ID:        uuid.NewString(),
			DeviceID:  reading.DeviceID,
			PatientID: reading.PatientID,
			ReadingID: reading.ID,
			Type:      models.AlertTypeSignalQualityPoor,
			Severity:  models.SeverityMedium,
			Message:   "signal quality poor",
			CreatedAt: e.Now(),
		})
	}
	return out
}

// Raise creates a non-threshold alert (malfunction, battery-low,
// connection-lost, ...). Used by adapters and the registry's maintenance
// paths.
func (e *Engine) Raise(ctx context.Context, alert *models.Alert) (*models.Alert, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertEngine,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryAlert),
	)
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = e.Now()
	}
	if err := e.create(ctx, logger, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

func (e *Engine) create(ctx context.Context, logger *zap.Logger, alert *models.Alert) error {
	logger.Info("Alert found", zap.Reflect("alert", alert))

	if err := e.Db.Conn.WithContext(ctx).Create(alert).Error; err != nil {
		return common.NewDatabaseError("createAlert", err)
	}

	logger.Info("Alert saved", zap.Reflect("alert", alert))

	if alert.Severity == models.SeverityCritical {
		e.dispatchCritical(ctx, logger, alert)
		if e.Fanout != nil {
			e.Fanout.PublishAlert(alert)
		}
	}
	if e.Forwarder != nil {
		e.Forwarder.EnqueueAlert(alert)
	}
	return nil
}

// dispatchCritical is best-effort: a dispatch failure is logged, leaves
// notification_sent=false, and never propagates.
func (e *Engine) dispatchCritical(ctx context.Context, logger *zap.Logger, alert *models.Alert) {
	if e.Notifier == nil {
		return
	}

	channels, err := e.Notifier.SendCriticalAlert(ctx, alert)
	if err != nil {
		logger.Warn("Critical alert notification failed",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
		return
	}

	alert.NotificationSent = true
	alert.NotificationChannels = channels
	err = e.Db.Conn.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", alert.ID).
		Updates(map[string]any{
			"notification_sent":     true,
			"notification_channels": models.StringList(channels),
		}).Error
	if err != nil {
		logger.Warn("Failed to record notification outcome",
			zap.String("alert_id", alert.ID),
			zap.Error(err))
	}
}
