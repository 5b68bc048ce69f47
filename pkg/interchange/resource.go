package interchange

import (
	"time"

	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

// LOINC codes for the vital-sign parameters carried in observation
// components.
var loincCodes = map[string]string{
	models.ParamTemperature:      "8310-5",
	models.ParamHeartRate:        "8867-4",
	models.ParamRespiratoryRate:  "9279-1",
	models.ParamBPSystolic:       "8480-6",
	models.ParamBPDiastolic:      "8462-4",
	models.ParamOxygenSaturation: "2708-6",
	models.ParamPulseRate:        "8889-8",
}

// ObservationResource converts a canonical reading into the normalized
// observation representation the interchange sink accepts. The sink's exact
// wire format is out of scope; this is the FHIR-style shape it consumes.
func ObservationResource(r *models.Reading) map[string]any {
	components := common.Mapper(r.Parameters(), func(pv models.ParameterValue) map[string]any {
		return map[string]any{
			"code": map[string]any{
				"coding": []map[string]any{
					{"system": "http://loinc.org", "code": loincCodes[pv.Name], "display": pv.Name},
				},
			},
			"valueQuantity": map[string]any{"value": pv.Value},
		}
	})

	return map[string]any{
		"resourceType":      "Observation",
		"id":                r.ID,
		"status":            "final",
		"effectiveDateTime": r.ObservedAt.UTC().Format(time.RFC3339Nano),
		"subject":           map[string]any{"reference": "Patient/" + r.PatientID},
		"device":            map[string]any{"reference": "Device/" + r.DeviceID},
		"component":         components,
	}
}

// FlagResource converts an alert into the normalized flag representation.
func FlagResource(a *models.Alert) map[string]any {
	return map[string]any{
		"resourceType": "Flag",
		"id":           a.ID,
		"status":       flagStatus(a),
		"code": map[string]any{
			"text": a.Message,
		},
		"subject":  map[string]any{"reference": "Patient/" + a.PatientID},
		"author":   map[string]any{"reference": "Device/" + a.DeviceID},
		"category": []map[string]any{{"text": string(a.Type)}},
		"extension": []map[string]any{
			{"url": "severity", "valueString": string(a.Severity)},
		},
	}
}

func flagStatus(a *models.Alert) string {
	if a.Resolved {
		return "inactive"
	}
	return "active"
}
