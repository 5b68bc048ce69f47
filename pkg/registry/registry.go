package registry

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/db"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

// StatusEvents receives a notification after a status transition has been
// committed. Wired to the fan-out broker in main; nil disables it.
type StatusEvents interface {
	DeviceStatusChanged(d *models.Device, prev models.DeviceStatus)
}

type Registry struct {
	Db     *db.DB
	Now    func() time.Time
	Events StatusEvents
}

func New(database *db.DB) *Registry {
	return &Registry{
		Db:  database,
		Now: time.Now,
	}
}

// Register validates and creates the device. The connection-parameter
// union must match the declared protocol, and the serial number must be unique
// within the tenant.
func (r *Registry) Register(ctx context.Context, d *models.Device) (*models.Device, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameRegistry,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDevice),
	)

	if d.TenantID == "" {
		return nil, common.NewValidationError("tenantId", "is required")
	}
	if d.SerialNumber == "" {
		return nil, common.NewValidationError("serialNumber", "is required")
	}
	if err := d.ConnParams.Validate(d.Protocol); err != nil {
		return nil, common.NewValidationError("connectionParams", err.Error())
	}

	var count int64
	err := r.Db.Conn.WithContext(ctx).Model(&models.Device{}).
		Where("tenant_id = ? AND serial_number = ?", d.TenantID, d.SerialNumber).
		Count(&count).Error
	if err != nil {
		return nil, common.NewDatabaseError("register", err)
	}
	if count > 0 {
		return nil, common.NewValidationError("serialNumber", "already registered for tenant")
	}

	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = models.DeviceStatusActive
	}
	if d.CalibrationStatus == "" {
		d.CalibrationStatus = models.CalibrationValid
	}

	if err := r.Db.Conn.WithContext(ctx).Create(d).Error; err != nil {
		return nil, common.NewDatabaseError("register", err)
	}

	logger.Info("Registered device",
		zap.String("device_id", d.ID),
		zap.String("protocol", string(d.Protocol)))
	return d, nil
}

func (r *Registry) Get(ctx context.Context, id string) (*models.Device, error) {
	var d models.Device
	err := r.Db.Conn.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFoundError("device", id)
	}
	if err != nil {
		return nil, common.NewDatabaseError("get", err)
	}
	return &d, nil
}

type ListFilter struct {
	FacilityID        string
	Type              models.DeviceType
	Status            models.DeviceStatus
	Protocol          models.Protocol
	PatientID         string
	CalibrationStatus models.CalibrationStatus
	SortBy            string
	SortDesc          bool
}

type Page struct {
	Page int
	Size int
}

var sortableColumns = map[string]string{
	"createdAt":    "created_at",
	"updatedAt":    "updated_at",
	"lastSeen":     "last_seen",
	"serialNumber": "serial_number",
	"name":         "name",
}

// List returns a page of devices plus the unpaginated total.
func (r *Registry) List(ctx context.Context, filter ListFilter, page Page) ([]models.Device, int64, error) {
	if page.Page <= 0 {
		page.Page = 1
	}
	if page.Size <= 0 {
		page.Size = 20
	}
	if page.Size > 100 {
		page.Size = 100
	}

	q := r.Db.Conn.WithContext(ctx).Model(&models.Device{})
	if filter.FacilityID != "" {
		q = q.Where("facility_id = ?", filter.FacilityID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Protocol != "" {
		q = q.Where("protocol = ?", filter.Protocol)
	}
	if filter.PatientID != "" {
		q = q.Where("patient_id = ?", filter.PatientID)
	}
	if filter.CalibrationStatus != "" {
		q = q.Where("calibration_status = ?", filter.CalibrationStatus)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, common.NewDatabaseError("list", err)
	}

	order := "created_at desc"
	if col, ok := sortableColumns[filter.SortBy]; ok {
		order = col
		if filter.SortDesc {
			order += " desc"
		}
	}

	var devices []models.Device
	err := q.Order(order).
		Offset((page.Page - 1) * page.Size).
		Limit(page.Size).
		Find(&devices).Error
	if err != nil {
		return nil, 0, common.NewDatabaseError("list", err)
	}
	return devices, total, nil
}

// Patch carries the mutable device fields. Status is deliberately absent:
// status transitions only go through UpdateStatus.
type Patch struct {
	Name             *string
	FacilityID       *string
	PatientID        *string
	BatteryLevel     *float64
	SignalStrength   *float64
	CalibratedAt     *time.Time
	CalibrationDueAt *time.Time
	Calibration      *models.CalibrationStatus
	Thresholds       *models.ThresholdSet
	UpdatedBy        string
}

func (r *Registry) Update(ctx context.Context, id string, patch Patch) (*models.Device, error) {
	d, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if patch.Name != nil {
		updates["name"] = *patch.Name
	}
	if patch.FacilityID != nil {
		updates["facility_id"] = *patch.FacilityID
	}
	if patch.PatientID != nil {
		updates["patient_id"] = *patch.PatientID
	}
	if patch.BatteryLevel != nil {
		updates["battery_level"] = *patch.BatteryLevel
	}
	if patch.SignalStrength != nil {
		updates["signal_strength"] = *patch.SignalStrength
	}
	if patch.CalibratedAt != nil {
		updates["calibrated_at"] = *patch.CalibratedAt
	}
	if patch.CalibrationDueAt != nil {
		updates["calibration_due_at"] = *patch.CalibrationDueAt
	}
	if patch.Calibration != nil {
		updates["calibration_status"] = *patch.Calibration
	}
	if patch.Thresholds != nil {
		updates["thresholds"] = patch.Thresholds
	}
	if patch.UpdatedBy != "" {
		updates["updated_by"] = patch.UpdatedBy
	}
	if len(updates) == 0 {
		return d, nil
	}

	err = r.Db.Conn.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return nil, common.NewDatabaseError("update", err)
	}
	return r.Get(ctx, id)
}

// UpdateStatus writes the new status and appends the immutable history row in
// one transaction; both succeed or both fail.
func (r *Registry) UpdateStatus(ctx context.Context, id string, newStatus models.DeviceStatus, reason, errorCode, by string) (*models.Device, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameRegistry,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDevice),
	)

	switch newStatus {
	case models.DeviceStatusActive, models.DeviceStatusInactive, models.DeviceStatusMaintenance,
		models.DeviceStatusError, models.DeviceStatusDecommissioned:
	default:
		return nil, common.NewValidationError("status", "unknown device status")
	}

	var updated models.Device
	var prev models.DeviceStatus

	err := r.Db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var d models.Device
		if err := tx.First(&d, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return common.NewNotFoundError("device", id)
			}
			return common.NewDatabaseError("updateStatus", err)
		}
		prev = d.Status

		updates := map[string]any{
			"status":     newStatus,
			"error_code": errorCode,
		}
		if by != "" {
			updates["updated_by"] = by
		}
		if err := tx.Model(&d).Updates(updates).Error; err != nil {
			return common.NewDatabaseError("updateStatus", err)
		}

		history := models.DeviceStatusChange{
			DeviceID:   id,
			FromStatus: prev,
			ToStatus:   newStatus,
			Reason:     reason,
			ErrorCode:  errorCode,
			ChangedBy:  by,
			CreatedAt:  r.Now(),
		}
		if err := tx.Create(&history).Error; err != nil {
			return common.NewDatabaseError("updateStatus", err)
		}

		updated = d
		updated.Status = newStatus
		updated.ErrorCode = errorCode
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Device status changed",
		zap.String("device_id", id),
		zap.String("from", string(prev)),
		zap.String("to", string(newStatus)),
		zap.String("reason", reason))

	if r.Events != nil && prev != newStatus {
		r.Events.DeviceStatusChanged(&updated, prev)
	}
	return &updated, nil
}

func (r *Registry) StatusHistory(ctx context.Context, id string) ([]models.DeviceStatusChange, error) {
	var changes []models.DeviceStatusChange
	err := r.Db.Conn.WithContext(ctx).
		Where("device_id = ?", id).
		Order("created_at asc").
		Find(&changes).Error
	if err != nil {
		return nil, common.NewDatabaseError("statusHistory", err)
	}
	return changes, nil
}

// Heartbeat carries the optional fields a device reports alongside a liveness
// touch.
type Heartbeat struct {
	BatteryLevel   *float64
	SignalStrength *float64
}

// UpdateLiveness is cheap, frequent, and best-effort: a failure is logged and
// swallowed so it can never block telemetry ingestion.
func (r *Registry) UpdateLiveness(ctx context.Context, id string, hb Heartbeat) {
	logger := common.GetLoggerWith(
		common.LoggerNameRegistry,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryLiveness),
	)

	now := r.Now()
	updates := map[string]any{
		"last_seen":      now,
		"last_heartbeat": now,
	}
	if hb.BatteryLevel != nil {
		updates["battery_level"] = *hb.BatteryLevel
	}
	if hb.SignalStrength != nil {
		updates["signal_strength"] = *hb.SignalStrength
	}

	err := r.Db.Conn.WithContext(ctx).Model(&models.Device{}).
		Where("id = ?", id).Updates(updates).Error
	if err != nil {
		logger.Warn("Liveness update failed",
			zap.String("device_id", id),
			zap.Error(err))
	}
}

func (r *Registry) Delete(ctx context.Context, id string) error {
	res := r.Db.Conn.WithContext(ctx).Delete(&models.Device{}, "id = ?", id)
	if res.Error != nil {
		return common.NewDatabaseError("delete", res.Error)
	}
	if res.RowsAffected == 0 {
		return common.NewNotFoundError("device", id)
	}
	return nil
}
