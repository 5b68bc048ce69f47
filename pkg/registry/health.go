package registry

import (
	"time"

	"vitalbridge.dev/telemetry-service/pkg/models"
)

// OnlineWindow is how recently a device must have reported to count as
// online.
const OnlineWindow = 5 * time.Minute

// LowBatteryLevel is the percentage below which a device is considered
// low-battery.
const LowBatteryLevel = 20.0

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthCritical HealthStatus = "critical"
	HealthOffline  HealthStatus = "offline"
)

// IsOnline derives liveness at read time; it is never stored.
func IsOnline(d *models.Device, now time.Time) bool {
	if d.LastSeen == nil {
		return false
	}
	return now.Sub(*d.LastSeen) < OnlineWindow
}

func IsLowBattery(d *models.Device) bool {
	return d.BatteryLevel != nil && *d.BatteryLevel < LowBatteryLevel
}

func NeedsCalibration(d *models.Device, now time.Time) bool {
	switch d.CalibrationStatus {
	case models.CalibrationDue, models.CalibrationOverdue, models.CalibrationFailed:
		return true
	}
	return d.CalibrationDueAt != nil && !d.CalibrationDueAt.After(now)
}

// Health derives the device health status: offline if not online; else
// critical if status=error; else warning on low battery or calibration due;
// else healthy.
func Health(d *models.Device, now time.Time) HealthStatus {
	if !IsOnline(d, now) {
		return HealthOffline
	}
	if d.Status == models.DeviceStatusError {
		return HealthCritical
	}
	if IsLowBattery(d) || NeedsCalibration(d, now) {
		return HealthWarning
	}
	return HealthHealthy
}
