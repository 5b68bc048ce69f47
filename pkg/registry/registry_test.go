package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/db"
	"vitalbridge.dev/telemetry-service/pkg/models"
	_ "vitalbridge.dev/telemetry-service/pkg/testing"
)

func newTestRegistry(t *testing.T) *Registry {
	common.SetTestLoggerNop()

	dbInstance, err := db.New(db.UseMemorySqliteDialector())
	require.NoError(t, err)
	return New(dbInstance)
}

func mqttDevice(tenantID string) *models.Device {
	return &models.Device{
		TenantID:     tenantID,
		SerialNumber: uuid.NewString(),
		Name:         "bedside monitor",
		Type:         models.DeviceTypeMonitor,
		Protocol:     models.ProtocolMQTT,
		ConnParams: models.ConnectionParams{
			MQTT: &models.MQTTParams{BrokerURL: "tcp://broker:1883", TopicRoot: "devices"},
		},
	}
}

func TestRegisterDevice(t *testing.T) {
	reg := newTestRegistry(t)

	d, err := reg.Register(context.Background(), mqttDevice(uuid.NewString()))
	assert.NoError(t, err)
	assert.NotEmpty(t, d.ID)
	assert.Equal(t, models.DeviceStatusActive, d.Status)
	assert.Equal(t, models.CalibrationValid, d.CalibrationStatus)

	got, err := reg.Get(context.Background(), d.ID)
	assert.NoError(t, err)
	assert.Equal(t, d.SerialNumber, got.SerialNumber)
}

func TestRegisterDevice_Validation(t *testing.T) {
	reg := newTestRegistry(t)

	{
		d := mqttDevice("")
		_, err := reg.Register(context.Background(), d)
		assert.True(t, common.IsValidationError(err))
	}

	{
		d := mqttDevice(uuid.NewString())
		d.SerialNumber = ""
		_, err := reg.Register(context.Background(), d)
		assert.True(t, common.IsValidationError(err))
	}

	{
		// protocol and connection parameters must agree
		d := mqttDevice(uuid.NewString())
		d.Protocol = models.ProtocolKafka
		_, err := reg.Register(context.Background(), d)
		assert.True(t, common.IsValidationError(err))
	}

	{
		// more than one payload set
		d := mqttDevice(uuid.NewString())
		d.ConnParams.Kafka = &models.KafkaParams{Brokers: "b:9092", Topic: "vitals"}
		_, err := reg.Register(context.Background(), d)
		assert.True(t, common.IsValidationError(err))
	}
}

func TestRegisterDevice_DuplicateSerial(t *testing.T) {
	reg := newTestRegistry(t)

	tenantID := uuid.NewString()
	first := mqttDevice(tenantID)
	_, err := reg.Register(context.Background(), first)
	assert.NoError(t, err)

	dup := mqttDevice(tenantID)
	dup.SerialNumber = first.SerialNumber
	_, err = reg.Register(context.Background(), dup)
	assert.True(t, common.IsValidationError(err))

	// same serial under another tenant is fine
	other := mqttDevice(uuid.NewString())
	other.SerialNumber = first.SerialNumber
	_, err = reg.Register(context.Background(), other)
	assert.NoError(t, err)
}

func TestGetDevice_NotFound(t *testing.T) {
	reg := newTestRegistry(t)

	_, err := reg.Get(context.Background(), uuid.NewString())
	assert.True(t, common.IsNotFoundError(err))
}

func TestUpdateStatus_AppendsHistory(t *testing.T) {
	reg := newTestRegistry(t)

	d, err := reg.Register(context.Background(), mqttDevice(uuid.NewString()))
	require.NoError(t, err)

	updated, err := reg.UpdateStatus(context.Background(), d.ID,
		models.DeviceStatusMaintenance, "scheduled service", "", "tech-1")
	assert.NoError(t, err)
	assert.Equal(t, models.DeviceStatusMaintenance, updated.Status)

	updated, err = reg.UpdateStatus(context.Background(), updated.ID,
		models.DeviceStatusError, "pump jam", "E42", "tech-1")
	assert.NoError(t, err)
	assert.Equal(t, "E42", updated.ErrorCode)

	history, err := reg.StatusHistory(context.Background(), d.ID)
	assert.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, models.DeviceStatusActive, history[0].FromStatus)
	assert.Equal(t, models.DeviceStatusMaintenance, history[0].ToStatus)
	assert.Equal(t, models.DeviceStatusMaintenance, history[1].FromStatus)
	assert.Equal(t, models.DeviceStatusError, history[1].ToStatus)
	assert.Equal(t, "pump jam", history[1].Reason)
}

func TestUpdateStatus_EdgeCases(t *testing.T) {
	reg := newTestRegistry(t)

	{
		_, err := reg.UpdateStatus(context.Background(), uuid.NewString(),
			models.DeviceStatusError, "", "", "")
		assert.True(t, common.IsNotFoundError(err))
	}

	{
		d, err := reg.Register(context.Background(), mqttDevice(uuid.NewString()))
		require.NoError(t, err)
		_, err = reg.UpdateStatus(context.Background(), d.ID,
			models.DeviceStatus("broken"), "", "", "")
		assert.True(t, common.IsValidationError(err))

		// the rejected transition must leave no history row
		history, err := reg.StatusHistory(context.Background(), d.ID)
		assert.NoError(t, err)
		assert.Len(t, history, 0)
	}
}

type capturedChange struct {
	deviceID string
	from     models.DeviceStatus
	to       models.DeviceStatus
}

type captureEvents struct {
	changes []capturedChange
}

func (c *captureEvents) DeviceStatusChanged(d *models.Device, prev models.DeviceStatus) {
	c.changes = append(c.changes, capturedChange{deviceID: d.ID, from: prev, to: d.Status})
}

func TestUpdateStatus_EmitsEvent(t *testing.T) {
	reg := newTestRegistry(t)
	events := &captureEvents{}
	reg.Events = events

	d, err := reg.Register(context.Background(), mqttDevice(uuid.NewString()))
	require.NoError(t, err)

	_, err = reg.UpdateStatus(context.Background(), d.ID,
		models.DeviceStatusInactive, "end of shift", "", "nurse-7")
	assert.NoError(t, err)

	// same-status transition still writes history but emits no event
	_, err = reg.UpdateStatus(context.Background(), d.ID,
		models.DeviceStatusInactive, "again", "", "nurse-7")
	assert.NoError(t, err)

	require.Len(t, events.changes, 1)
	assert.Equal(t, d.ID, events.changes[0].deviceID)
	assert.Equal(t, models.DeviceStatusActive, events.changes[0].from)
	assert.Equal(t, models.DeviceStatusInactive, events.changes[0].to)
}

func TestUpdate_Patch(t *testing.T) {
	reg := newTestRegistry(t)

	d, err := reg.Register(context.Background(), mqttDevice(uuid.NewString()))
	require.NoError(t, err)

	name := "icu monitor 3"
	battery := 77.5
	patientID := uuid.NewString()
	updated, err := reg.Update(context.Background(), d.ID, Patch{
		Name:         &name,
		BatteryLevel: &battery,
		PatientID:    &patientID,
		UpdatedBy:    "admin",
	})
	assert.NoError(t, err)
	assert.Equal(t, name, updated.Name)
	assert.Equal(t, battery, *updated.BatteryLevel)
	assert.Equal(t, patientID, *updated.PatientID)
	assert.Equal(t, "admin", updated.UpdatedBy)

	// empty patch is a no-op
	same, err := reg.Update(context.Background(), d.ID, Patch{})
	assert.NoError(t, err)
	assert.Equal(t, name, same.Name)
}

func TestUpdateLiveness(t *testing.T) {
	reg := newTestRegistry(t)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	reg.Now = func() time.Time { return base }

	d, err := reg.Register(context.Background(), mqttDevice(uuid.NewString()))
	require.NoError(t, err)
	assert.False(t, IsOnline(d, base))

	battery := 15.0
	reg.UpdateLiveness(context.Background(), d.ID, Heartbeat{BatteryLevel: &battery})

	d, err = reg.Get(context.Background(), d.ID)
	require.NoError(t, err)
	require.NotNil(t, d.LastSeen)
	assert.True(t, IsOnline(d, base))
	assert.True(t, IsOnline(d, base.Add(OnlineWindow-time.Second)))
	assert.False(t, IsOnline(d, base.Add(OnlineWindow)))
	assert.True(t, IsLowBattery(d))

	// unknown device is swallowed, not an error
	reg.UpdateLiveness(context.Background(), uuid.NewString(), Heartbeat{})
}

func TestHealth(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	seen := now.Add(-time.Minute)
	battery := 50.0
	lowBattery := 10.0

	{
		d := &models.Device{Status: models.DeviceStatusActive}
		assert.Equal(t, HealthOffline, Health(d, now))
	}

	{
		d := &models.Device{
			Status:       models.DeviceStatusError,
			LastSeen:     &seen,
			BatteryLevel: &battery,
		}
		assert.Equal(t, HealthCritical, Health(d, now))
	}

	{
		d := &models.Device{
			Status:       models.DeviceStatusActive,
			LastSeen:     &seen,
			BatteryLevel: &lowBattery,
		}
		assert.Equal(t, HealthWarning, Health(d, now))
	}

	{
		d := &models.Device{
			Status:            models.DeviceStatusActive,
			LastSeen:          &seen,
			BatteryLevel:      &battery,
			CalibrationStatus: models.CalibrationOverdue,
		}
		assert.Equal(t, HealthWarning, Health(d, now))
	}

	{
		due := now.Add(-time.Hour)
		d := &models.Device{
			Status:           models.DeviceStatusActive,
			LastSeen:         &seen,
			BatteryLevel:     &battery,
			CalibrationDueAt: &due,
		}
		assert.True(t, NeedsCalibration(d, now))
		assert.Equal(t, HealthWarning, Health(d, now))
	}

	{
		d := &models.Device{
			Status:            models.DeviceStatusActive,
			LastSeen:          &seen,
			BatteryLevel:      &battery,
			CalibrationStatus: models.CalibrationValid,
		}
		assert.Equal(t, HealthHealthy, Health(d, now))
	}
}

func TestListDevices(t *testing.T) {
	reg := newTestRegistry(t)

	tenantID := uuid.NewString()
	facilityID := uuid.NewString()

	for i := 0; i < 3; i++ {
		d := mqttDevice(tenantID)
		d.FacilityID = facilityID
		_, err := reg.Register(context.Background(), d)
		require.NoError(t, err)
	}

	pump := &models.Device{
		TenantID:     tenantID,
		FacilityID:   facilityID,
		SerialNumber: uuid.NewString(),
		Type:         models.DeviceTypePump,
		Protocol:     models.ProtocolFieldbus,
		ConnParams: models.ConnectionParams{
			Fieldbus: &models.FieldbusParams{Address: "10.0.0.5:502", UnitID: 1},
		},
	}
	_, err := reg.Register(context.Background(), pump)
	require.NoError(t, err)

	devices, total, err := reg.List(context.Background(), ListFilter{FacilityID: facilityID}, Page{})
	assert.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, devices, 4)

	devices, total, err = reg.List(context.Background(),
		ListFilter{FacilityID: facilityID, Type: models.DeviceTypePump}, Page{})
	assert.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, devices, 1)
	assert.Equal(t, pump.ID, devices[0].ID)

	// pagination
	devices, total, err = reg.List(context.Background(),
		ListFilter{FacilityID: facilityID, SortBy: "serialNumber"}, Page{Page: 1, Size: 3})
	assert.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, devices, 3)
}

func TestDeleteDevice(t *testing.T) {
	reg := newTestRegistry(t)

	d, err := reg.Register(context.Background(), mqttDevice(uuid.NewString()))
	require.NoError(t, err)

	assert.NoError(t, reg.Delete(context.Background(), d.ID))

	_, err = reg.Get(context.Background(), d.ID)
	assert.True(t, common.IsNotFoundError(err))

	err = reg.Delete(context.Background(), d.ID)
	assert.True(t, common.IsNotFoundError(err))
}
