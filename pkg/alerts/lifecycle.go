package alerts

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

func (e *Engine) getAlert(ctx context.Context, id string) (*models.Alert, error) {
	var a models.Alert
	err := e.Db.Conn.WithContext(ctx).First(&a, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewNotFoundError("alert", id)
	}
	if err != nil {
		return nil, common.NewDatabaseError("getAlert", err)
	}
	return &a, nil
}

func (e *Engine) Get(ctx context.Context, id string) (*models.Alert, error) {
	return e.getAlert(ctx, id)
}

// Acknowledge is idempotent: acknowledging an already-acknowledged alert
// updates by/at again without error. A resolved alert is terminal and is
// returned unchanged.
func (e *Engine) Acknowledge(ctx context.Context, id, by string) (*models.Alert, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertEngine,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryLifecycle),
	)

	a, err := e.getAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Resolved {
		return a, nil
	}

	now := e.Now()
	err = e.Db.Conn.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"acknowledged":    true,
			"acknowledged_by": by,
			"acknowledged_at": now,
		}).Error
	if err != nil {
		return nil, common.NewDatabaseError("acknowledge", err)
	}

	a.Acknowledged = true
	a.AcknowledgedBy = by
	a.AcknowledgedAt = &now

	logger.Info("Alert acknowledged",
		zap.String("alert_id", id),
		zap.String("by", by))
	return a, nil
}

// Resolve requires notes, implicitly acknowledges an unacknowledged alert,
// and is terminal: there is no backward transition. Resolving an
// already-resolved alert returns it unchanged.
func (e *Engine) Resolve(ctx context.Context, id, by, notes string) (*models.Alert, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameAlertEngine,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryLifecycle),
	)

	if strings.TrimSpace(notes) == "" {
		return nil, common.NewValidationError("notes", "resolution notes are required")
	}

	a, err := e.getAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Resolved {
		return a, nil
	}

	now := e.Now()
	updates := map[string]any{
		"resolved":         true,
		"resolved_by":      by,
		"resolved_at":      now,
		"resolution_notes": notes,
	}
	if !a.Acknowledged {
		updates["acknowledged"] = true
		updates["acknowledged_by"] = by
		updates["acknowledged_at"] = now
	}

	err = e.Db.Conn.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", id).Updates(updates).Error
	if err != nil {
		return nil, common.NewDatabaseError("resolve", err)
	}

	if !a.Acknowledged {
		a.Acknowledged = true
		a.AcknowledgedBy = by
		a.AcknowledgedAt = &now
	}
	a.Resolved = true
	a.ResolvedBy = by
	a.ResolvedAt = &now
	a.ResolutionNotes = notes

	logger.Info("Alert resolved",
		zap.String("alert_id", id),
		zap.String("by", by))
	return a, nil
}
