package telemetry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
	"vitalbridge.dev/telemetry-service/pkg/registry"
	_ "vitalbridge.dev/telemetry-service/pkg/testing"
)

func f64(v float64) *float64 { return &v }

func seedDevice(t *testing.T, core *Core, patientID *string) *models.Device {
	reg := registry.New(core.Db)
	d, err := reg.Register(context.Background(), &models.Device{
		TenantID:     uuid.NewString(),
		SerialNumber: uuid.NewString(),
		Type:         models.DeviceTypeMonitor,
		Protocol:     models.ProtocolMQTT,
		ConnParams: models.ConnectionParams{
			MQTT: &models.MQTTParams{BrokerURL: "tcp://broker:1883"},
		},
		PatientID: patientID,
	})
	require.NoError(t, err)
	return d
}

func TestIngest(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, core, _, _, _ := GetMockCoreWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	device := seedDevice(t, core, nil)

	observedAt := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	id, err := core.Ingest(context.Background(), &models.Reading{
		DeviceID:         device.ID,
		PatientID:        uuid.NewString(),
		ObservedAt:       observedAt,
		HeartRate:        f64(72),
		Temperature:      f64(36.8),
		OxygenSaturation: f64(98),
		Quality: models.ReadingQuality{
			Signal:     models.SignalGood,
			Confidence: 0.97,
		},
	})
	assert.NoError(t, err)
	assert.NotEmpty(t, id)

	got, err := core.GetReading(context.Background(), id)
	assert.NoError(t, err)
	assert.Equal(t, device.ID, got.DeviceID)
	assert.True(t, got.ObservedAt.Equal(observedAt))
	assert.Equal(t, 72.0, *got.HeartRate)
	assert.Equal(t, 36.8, *got.Temperature)
	assert.Equal(t, 98.0, *got.OxygenSaturation)
	assert.Nil(t, got.RespiratoryRate)
	assert.Equal(t, models.SignalGood, got.Quality.Signal)
	assert.Equal(t, 0.97, got.Quality.Confidence)

	// ingest also touched liveness
	reg := registry.New(core.Db)
	d, err := reg.Get(context.Background(), device.ID)
	assert.NoError(t, err)
	assert.NotNil(t, d.LastSeen)
}

func TestIngest_Defaults(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, core, _, _, _ := GetMockCoreWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	patientID := uuid.NewString()
	device := seedDevice(t, core, &patientID)

	// no id, no observation time, no patient: all defaulted
	id, err := core.Ingest(context.Background(), &models.Reading{
		DeviceID:  device.ID,
		HeartRate: f64(72),
	})
	assert.NoError(t, err)

	got, err := core.GetReading(context.Background(), id)
	assert.NoError(t, err)
	assert.False(t, got.ObservedAt.IsZero())
	assert.Equal(t, patientID, got.PatientID)
}

func TestIngest_UnknownDeviceRejected(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, core, _, _, _ := GetMockCoreWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	readingID := uuid.NewString()
	_, err := core.Ingest(context.Background(), &models.Reading{
		ID:        readingID,
		DeviceID:  uuid.NewString(),
		HeartRate: f64(72),
	})
	assert.True(t, common.IsNotFoundError(err))
	assert.EqualValues(t, 1, core.RejectedCount())

	// nothing was persisted
	_, err = core.GetReading(context.Background(), readingID)
	assert.True(t, common.IsNotFoundError(err))
}

func TestIngest_TenantMismatchRejected(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, core, _, _, _ := GetMockCoreWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	device := seedDevice(t, core, nil)
	core.TenantID = uuid.NewString() // different tenant

	_, err := core.Ingest(context.Background(), &models.Reading{
		DeviceID:  device.ID,
		HeartRate: f64(72),
	})
	assert.True(t, common.IsNotFoundError(err))
	assert.EqualValues(t, 1, core.RejectedCount())
}

func TestIngest_DispatchesDetachedTasks(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, core, mockEvaluator, mockForwarder, mockPublisher :=
		GetMockCoreWithMemorySqliteDialector(t, true, true, true)
	defer ctrl.Finish()

	device := seedDevice(t, core, nil)

	mockEvaluator.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, nil).
		Times(1)
	mockForwarder.EXPECT().
		EnqueueReading(gomock.Any()).
		Times(1)
	mockPublisher.EXPECT().
		PublishReading(gomock.Any()).
		Times(1)

	_, err := core.Ingest(context.Background(), &models.Reading{
		DeviceID:  device.ID,
		HeartRate: f64(35),
	})
	assert.NoError(t, err)

	core.Drain()
}

func TestIngest_EvaluatorFailureDoesNotAffectCaller(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, core, mockEvaluator, _, _ :=
		GetMockCoreWithMemorySqliteDialector(t, true, false, false)
	defer ctrl.Finish()

	device := seedDevice(t, core, nil)

	mockEvaluator.EXPECT().
		Evaluate(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, common.NewDatabaseError("createAlert", assert.AnError)).
		Times(1)

	id, err := core.Ingest(context.Background(), &models.Reading{
		DeviceID:  device.ID,
		HeartRate: f64(35),
	})
	assert.NoError(t, err)
	core.Drain()

	// the reading survived the downstream failure
	_, err = core.GetReading(context.Background(), id)
	assert.NoError(t, err)
}

func TestIngest_Concurrent(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, core, _, _, _ := GetMockCoreWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	deviceA := seedDevice(t, core, nil)
	deviceB := seedDevice(t, core, nil)

	const perDevice = 20
	var wg sync.WaitGroup
	for i := 0; i < perDevice; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := core.Ingest(context.Background(), &models.Reading{
				DeviceID:  deviceA.ID,
				HeartRate: f64(72),
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := core.Ingest(context.Background(), &models.Reading{
				DeviceID:  deviceB.ID,
				HeartRate: f64(80),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	core.Drain()

	readingsA, err := core.ListReadings(context.Background(), deviceA.ID, nil, nil, 0)
	assert.NoError(t, err)
	assert.Len(t, readingsA, perDevice)

	readingsB, err := core.ListReadings(context.Background(), deviceB.ID, nil, nil, 0)
	assert.NoError(t, err)
	assert.Len(t, readingsB, perDevice)
}

func TestListReadings_Window(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl, core, _, _, _ := GetMockCoreWithMemorySqliteDialector(t, false, false, false)
	defer ctrl.Finish()

	device := seedDevice(t, core, nil)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	// arrival order deliberately differs from observation order
	for _, offset := range []time.Duration{2 * time.Minute, 0, time.Minute} {
		_, err := core.Ingest(context.Background(), &models.Reading{
			DeviceID:   device.ID,
			ObservedAt: base.Add(offset),
			HeartRate:  f64(72),
		})
		require.NoError(t, err)
	}

	readings, err := core.ListReadings(context.Background(), device.ID, nil, nil, 0)
	assert.NoError(t, err)
	require.Len(t, readings, 3)
	for i := 1; i < len(readings); i++ {
		assert.True(t, !readings[i].ObservedAt.Before(readings[i-1].ObservedAt))
	}

	from := base.Add(30 * time.Second)
	to := base.Add(90 * time.Second)
	readings, err = core.ListReadings(context.Background(), device.ID, &from, &to, 0)
	assert.NoError(t, err)
	require.Len(t, readings, 1)
	assert.True(t, readings[0].ObservedAt.Equal(base.Add(time.Minute)))
}
