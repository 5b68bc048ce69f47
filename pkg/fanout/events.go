package fanout

import (
	"vitalbridge.dev/telemetry-service/pkg/models"
)

// PublishReading fans a persisted reading out to its device and patient
// topics.
func (b *Broker) PublishReading(r *models.Reading) {
	ev := Event{Type: EventVitalsUpdate, Payload: r}
	b.Publish(DeviceTopic(r.DeviceID), ev)
	if r.PatientID != "" {
		b.Publish(PatientTopic(r.PatientID), ev)
	}
}

// PublishAlert fans a critical alert out to its device and patient topics.
func (b *Broker) PublishAlert(a *models.Alert) {
	ev := Event{Type: EventAlertCritical, Payload: a}
	b.Publish(DeviceTopic(a.DeviceID), ev)
	if a.PatientID != "" {
		b.Publish(PatientTopic(a.PatientID), ev)
	}
}

type statusChange struct {
	Device *models.Device      `json:"device"`
	From   models.DeviceStatus `json:"from"`
	To     models.DeviceStatus `json:"to"`
}

// DeviceStatusChanged satisfies the registry's StatusEvents hook.
func (b *Broker) DeviceStatusChanged(d *models.Device, prev models.DeviceStatus) {
	ev := Event{
		Type:    EventDeviceStatus,
		Payload: statusChange{Device: d, From: prev, To: d.Status},
	}
	b.Publish(DeviceTopic(d.ID), ev)
	if d.PatientID != nil && *d.PatientID != "" {
		b.Publish(PatientTopic(*d.PatientID), ev)
	}
}
