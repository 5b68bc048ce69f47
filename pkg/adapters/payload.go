package adapters

import (
	"encoding/json"
	"fmt"
	"time"

	"vitalbridge.dev/telemetry-service/pkg/models"
)

// vitalsMessage is the broker wire shape for one vitals sample. deviceId may
// be omitted when the topic already names the device.
type vitalsMessage struct {
	DeviceID         string   `json:"deviceId"`
	PatientID        string   `json:"patientId"`
	EpochMillis      int64    `json:"epochMillis"`
	Temperature      *float64 `json:"temperature"`
	HeartRate        *float64 `json:"heartRate"`
	RespiratoryRate  *float64 `json:"respiratoryRate"`
	BPSystolic       *float64 `json:"bloodPressureSystolic"`
	BPDiastolic      *float64 `json:"bloodPressureDiastolic"`
	OxygenSaturation *float64 `json:"oxygenSaturation"`
	PulseRate        *float64 `json:"pulseRate"`
	Quality          *struct {
		Signal     string  `json:"signal"`
		LeadOff    bool    `json:"leadOff"`
		Artifact   bool    `json:"artifact"`
		Confidence float64 `json:"confidence"`
	} `json:"quality"`
}

// DecodeVitals normalizes a raw broker payload into a canonical Reading.
// deviceID overrides the payload's own device id when non-empty (topic-derived
// ids win).
func DecodeVitals(deviceID string, payload []byte) (*models.Reading, error) {
	var msg vitalsMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return nil, fmt.Errorf("malformed vitals payload: %w", err)
	}
	if deviceID == "" {
		deviceID = msg.DeviceID
	}
	if deviceID == "" {
		return nil, fmt.Errorf("vitals payload missing device id")
	}

	reading := &models.Reading{
		DeviceID:         deviceID,
		PatientID:        msg.PatientID,
		Temperature:      msg.Temperature,
		HeartRate:        msg.HeartRate,
		RespiratoryRate:  msg.RespiratoryRate,
		BPSystolic:       msg.BPSystolic,
		BPDiastolic:      msg.BPDiastolic,
		OxygenSaturation: msg.OxygenSaturation,
		PulseRate:        msg.PulseRate,
	}
	if msg.EpochMillis > 0 {
		reading.ObservedAt = time.UnixMilli(msg.EpochMillis)
	}
	if msg.Quality != nil {
		reading.Quality = models.ReadingQuality{
			Signal:     models.SignalQuality(msg.Quality.Signal),
			LeadOff:    msg.Quality.LeadOff,
			Artifact:   msg.Quality.Artifact,
			Confidence: msg.Quality.Confidence,
		}
	}
	return reading, nil
}

// statusMessage is the broker wire shape for a device status change.
type statusMessage struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Error  string `json:"errorCode"`
}
