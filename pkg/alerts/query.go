package alerts

import (
	"context"
	"time"

	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

type Filter struct {
	DeviceID     string
	PatientID    string
	Type         models.AlertType
	Severity     models.AlertSeverity
	Acknowledged *bool
	Resolved     *bool
	From         *time.Time
	To           *time.Time
}

type Page struct {
	Page int
	Size int
}

// List returns a page of alerts, newest first, plus the unpaginated total.
func (e *Engine) List(ctx context.Context, filter Filter, page Page) ([]models.Alert, int64, error) {
	if page.Page <= 0 {
		page.Page = 1
	}
	if page.Size <= 0 {
		page.Size = 20
	}
	if page.Size > 100 {
		page.Size = 100
	}

	q := e.Db.Conn.WithContext(ctx).Model(&models.Alert{})
	if filter.DeviceID != "" {
		q = q.Where("device_id = ?", filter.DeviceID)
	}
	if filter.PatientID != "" {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Severity != "" {
		q = q.Where("severity = ?", filter.Severity)
	}
	if filter.Acknowledged != nil {
		q = q.Where("acknowledged = ?", *filter.Acknowledged)
	}
	if filter.Resolved != nil {
		q = q.Where("resolved = ?", *filter.Resolved)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("created_at <= ?", *filter.To)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, common.NewDatabaseError("listAlerts", err)
	}

	var alerts []models.Alert
	err := q.Order("created_at desc").
		Offset((page.Page - 1) * page.Size).
		Limit(page.Size).
		Find(&alerts).Error
	if err != nil {
		return nil, 0, common.NewDatabaseError("listAlerts", err)
	}
	return alerts, total, nil
}
