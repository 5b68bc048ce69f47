package http

import (
	"net/http"
	"time"

	z "github.com/Oudwins/zog"
	"github.com/gin-gonic/gin"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

type VitalSignsRequest struct {
	DeviceID         string   `json:"deviceId"`
	PatientID        string   `json:"patientId"`
	ObservedAt       *int64   `json:"observedAt"`
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

var deviceIdValidator = z.String().Min(1).Required()

func (rs *RestfulServer) PostVitalSigns(c *gin.Context) {
	var req VitalSignsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := deviceIdValidator.Validate(&req.DeviceID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	if !rs.CheckDeviceLimiter(req.DeviceID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	reading := models.Reading{
		DeviceID:         req.DeviceID,
		PatientID:        req.PatientID,
		Temperature:      req.Temperature,
		HeartRate:        req.HeartRate,
		RespiratoryRate:  req.RespiratoryRate,
		BPSystolic:       req.BPSystolic,
		BPDiastolic:      req.BPDiastolic,
		OxygenSaturation: req.OxygenSaturation,
		PulseRate:        req.PulseRate,
	}
	if req.ObservedAt != nil {
		reading.ObservedAt = time.UnixMilli(*req.ObservedAt)
	}
	if req.Quality != nil {
		reading.Quality = models.ReadingQuality{
			Signal:     models.SignalQuality(req.Quality.Signal),
			LeadOff:    req.Quality.LeadOff,
			Artifact:   req.Quality.Artifact,
			Confidence: req.Quality.Confidence,
		}
	}

	id, err := rs.Core.Ingest(c.Request.Context(), &reading)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"observationId": id})
}

func (rs *RestfulServer) ListDeviceReadings(c *gin.Context) {
	deviceID := c.Param("device_id")

	var from, to *time.Time
	if v := c.Query("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from timestamp"})
			return
		}
		from = &t
	}
	if v := c.Query("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to timestamp"})
			return
		}
		to = &t
	}

	readings, err := rs.Core.ListReadings(c.Request.Context(), deviceID, from, to, intQuery(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, readings)
}

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
