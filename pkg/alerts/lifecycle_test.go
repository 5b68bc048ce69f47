package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
	_ "vitalbridge.dev/telemetry-service/pkg/testing"
)

func seedAlert(t *testing.T, engine *Engine) *models.Alert {
	alert, err := engine.Raise(context.Background(), &models.Alert{
		DeviceID: uuid.NewString(),
		Type:     models.AlertTypeCriticalValue,
		Severity: models.SeverityCritical,
		Message:  "heartRate 35.00 below threshold 40.00",
	})
	require.NoError(t, err)
	return alert
}

func TestAcknowledge(t *testing.T) {
	common.SetTestLoggerNop()

	engine := newTestEngine(t)
	alert := seedAlert(t, engine)

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	engine.Now = func() time.Time { return now }

	acked, err := engine.Acknowledge(context.Background(), alert.ID, "nurse-7")
	assert.NoError(t, err)
	assert.True(t, acked.Acknowledged)
	assert.Equal(t, "nurse-7", acked.AcknowledgedBy)
	require.NotNil(t, acked.AcknowledgedAt)
	assert.True(t, acked.AcknowledgedAt.Equal(now))
}

func TestAcknowledge_Idempotent(t *testing.T) {
	common.SetTestLoggerNop()

	engine := newTestEngine(t)
	alert := seedAlert(t, engine)

	first := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	engine.Now = func() time.Time { return first }
	_, err := engine.Acknowledge(context.Background(), alert.ID, "nurse-7")
	require.NoError(t, err)

	// a second acknowledgement updates by/at without error
	second := first.Add(10 * time.Minute)
	engine.Now = func() time.Time { return second }
	acked, err := engine.Acknowledge(context.Background(), alert.ID, "doctor-2")
	assert.NoError(t, err)
	assert.Equal(t, "doctor-2", acked.AcknowledgedBy)
	assert.True(t, acked.AcknowledgedAt.Equal(second))
}

func TestAcknowledge_NotFound(t *testing.T) {
	common.SetTestLoggerNop()

	engine := newTestEngine(t)
	_, err := engine.Acknowledge(context.Background(), uuid.NewString(), "nurse-7")
	assert.True(t, common.IsNotFoundError(err))
}

func TestResolve(t *testing.T) {
	common.SetTestLoggerNop()

	engine := newTestEngine(t)
	alert := seedAlert(t, engine)

	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	engine.Now = func() time.Time { return now }

	resolved, err := engine.Resolve(context.Background(), alert.ID, "doctor-2", "patient stabilized")
	assert.NoError(t, err)
	assert.True(t, resolved.Resolved)
	assert.Equal(t, "doctor-2", resolved.ResolvedBy)
	assert.Equal(t, "patient stabilized", resolved.ResolutionNotes)

	// resolving an unacknowledged alert implies acknowledgement
	assert.True(t, resolved.Acknowledged)
	assert.Equal(t, "doctor-2", resolved.AcknowledgedBy)
	require.NotNil(t, resolved.AcknowledgedAt)
	assert.True(t, resolved.AcknowledgedAt.Equal(now))
}

func TestResolve_RequiresNotes(t *testing.T) {
	common.SetTestLoggerNop()

	engine := newTestEngine(t)
	alert := seedAlert(t, engine)

	_, err := engine.Resolve(context.Background(), alert.ID, "doctor-2", "")
	assert.True(t, common.IsValidationError(err))

	_, err = engine.Resolve(context.Background(), alert.ID, "doctor-2", "   ")
	assert.True(t, common.IsValidationError(err))

	// the failed resolve left the alert open
	got, err := engine.Get(context.Background(), alert.ID)
	assert.NoError(t, err)
	assert.False(t, got.Resolved)
}

func TestResolve_Terminal(t *testing.T) {
	common.SetTestLoggerNop()

	engine := newTestEngine(t)
	alert := seedAlert(t, engine)

	resolved, err := engine.Resolve(context.Background(), alert.ID, "doctor-2", "patient stabilized")
	require.NoError(t, err)

	// resolving again returns the alert unchanged
	again, err := engine.Resolve(context.Background(), alert.ID, "doctor-9", "different notes")
	assert.NoError(t, err)
	assert.Equal(t, resolved.ResolvedBy, again.ResolvedBy)
	assert.Equal(t, resolved.ResolutionNotes, again.ResolutionNotes)

	// acknowledging a resolved alert is a no-op
	acked, err := engine.Acknowledge(context.Background(), alert.ID, "doctor-9")
	assert.NoError(t, err)
	assert.Equal(t, "doctor-2", acked.AcknowledgedBy)
}

func TestResolve_AfterAcknowledge(t *testing.T) {
	common.SetTestLoggerNop()

	engine := newTestEngine(t)
	alert := seedAlert(t, engine)

	ackTime := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	engine.Now = func() time.Time { return ackTime }
	_, err := engine.Acknowledge(context.Background(), alert.ID, "nurse-7")
	require.NoError(t, err)

	resolveTime := ackTime.Add(30 * time.Minute)
	engine.Now = func() time.Time { return resolveTime }
	resolved, err := engine.Resolve(context.Background(), alert.ID, "doctor-2", "patient stabilized")
	assert.NoError(t, err)

	// the earlier acknowledgement is preserved
	assert.Equal(t, "nurse-7", resolved.AcknowledgedBy)
	assert.True(t, resolved.AcknowledgedAt.Equal(ackTime))
	assert.True(t, resolved.ResolvedAt.Equal(resolveTime))
}
