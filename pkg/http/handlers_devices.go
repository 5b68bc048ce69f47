package http

import (
	"net/http"
	"strconv"
	"time"

	z "github.com/Oudwins/zog"
	"github.com/gin-gonic/gin"
	"vitalbridge.dev/telemetry-service/pkg/models"
	"vitalbridge.dev/telemetry-service/pkg/registry"
)

func intQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

type RegisterDeviceRequest struct {
	TenantID     string                  `json:"tenantId"`
	FacilityID   string                  `json:"facilityId"`
	SerialNumber string                  `json:"serialNumber"`
	Name         string                  `json:"name"`
	Type         string                  `json:"type"`
	Protocol     string                  `json:"protocol"`
	ConnParams   models.ConnectionParams `json:"connectionParams"`
	PatientID    *string                 `json:"patientId"`
	Thresholds   *models.ThresholdSet    `json:"thresholds"`
	CreatedBy    string                  `json:"createdBy"`
}

var registerDeviceValidator = z.Struct(z.Shape{
	"TenantID":     z.String().Min(1).Required(),
	"SerialNumber": z.String().Min(1).Required(),
	"Type":         z.String().Min(1).Required(),
	"Protocol":     z.String().Min(1).Required(),
})

func (rs *RestfulServer) RegisterDevice(c *gin.Context) {
	var req RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := registerDeviceValidator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	device := models.Device{
		TenantID:     req.TenantID,
		FacilityID:   req.FacilityID,
		SerialNumber: req.SerialNumber,
		Name:         req.Name,
		Type:         models.DeviceType(req.Type),
		Protocol:     models.Protocol(req.Protocol),
		ConnParams:   req.ConnParams,
		PatientID:    req.PatientID,
		Thresholds:   req.Thresholds,
		CreatedBy:    req.CreatedBy,
	}

	created, err := rs.Registry.Register(c.Request.Context(), &device)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (rs *RestfulServer) GetDevice(c *gin.Context) {
	device, err := rs.Registry.Get(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (rs *RestfulServer) ListDevices(c *gin.Context) {
	filter := registry.ListFilter{
		FacilityID:        c.Query("facilityId"),
		Type:              models.DeviceType(c.Query("type")),
		Status:            models.DeviceStatus(c.Query("status")),
		Protocol:          models.Protocol(c.Query("protocol")),
		PatientID:         c.Query("patientId"),
		CalibrationStatus: models.CalibrationStatus(c.Query("calibrationStatus")),
		SortBy:            c.Query("sortBy"),
		SortDesc:          c.Query("sortOrder") == "desc",
	}
	page := registry.Page{
		Page: intQuery(c, "page", 1),
		Size: intQuery(c, "size", 20),
	}

	devices, total, err := rs.Registry.List(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"devices": devices,
		"total":   total,
		"page":    page.Page,
		"size":    page.Size,
	})
}

type PatchDeviceRequest struct {
	Name             *string                   `json:"name"`
	FacilityID       *string                   `json:"facilityId"`
	PatientID        *string                   `json:"patientId"`
	BatteryLevel     *float64                  `json:"batteryLevel"`
	SignalStrength   *float64                  `json:"signalStrength"`
	CalibratedAt     *time.Time                `json:"calibratedAt"`
	CalibrationDueAt *time.Time                `json:"calibrationDueAt"`
	Calibration      *models.CalibrationStatus `json:"calibrationStatus"`
	Thresholds       *models.ThresholdSet      `json:"thresholds"`
	UpdatedBy        string                    `json:"updatedBy"`
}

func (rs *RestfulServer) PatchDevice(c *gin.Context) {
	var req PatchDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	device, err := rs.Registry.Update(c.Request.Context(), c.Param("device_id"), registry.Patch{
		Name:             req.Name,
		FacilityID:       req.FacilityID,
		PatientID:        req.PatientID,
		BatteryLevel:     req.BatteryLevel,
		SignalStrength:   req.SignalStrength,
		CalibratedAt:     req.CalibratedAt,
		CalibrationDueAt: req.CalibrationDueAt,
		Calibration:      req.Calibration,
		Thresholds:       req.Thresholds,
		UpdatedBy:        req.UpdatedBy,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (rs *RestfulServer) DeleteDevice(c *gin.Context) {
	if err := rs.Registry.Delete(c.Request.Context(), c.Param("device_id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type UpdateStatusRequest struct {
	Status    string `json:"status"`
	Reason    string `json:"reason"`
	ErrorCode string `json:"errorCode"`
	UpdatedBy string `json:"updatedBy"`
}

var updateStatusValidator = z.Struct(z.Shape{
	"Status": z.String().Min(1).Required(),
})

func (rs *RestfulServer) UpdateDeviceStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := updateStatusValidator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	device, err := rs.Registry.UpdateStatus(c.Request.Context(), c.Param("device_id"),
		models.DeviceStatus(req.Status), req.Reason, req.ErrorCode, req.UpdatedBy)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (rs *RestfulServer) GetStatusHistory(c *gin.Context) {
	deviceID := c.Param("device_id")
	if _, err := rs.Registry.Get(c.Request.Context(), deviceID); err != nil {
		respondError(c, err)
		return
	}

	history, err := rs.Registry.StatusHistory(c.Request.Context(), deviceID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

func (rs *RestfulServer) GetDeviceHealth(c *gin.Context) {
	device, err := rs.Registry.Get(c.Request.Context(), c.Param("device_id"))
	if err != nil {
		respondError(c, err)
		return
	}

	now := rs.Registry.Now()
	c.JSON(http.StatusOK, gin.H{
		"deviceId":         device.ID,
		"health":           registry.Health(device, now),
		"online":           registry.IsOnline(device, now),
		"lowBattery":       registry.IsLowBattery(device),
		"needsCalibration": registry.NeedsCalibration(device, now),
		"batteryLevel":     device.BatteryLevel,
		"signalStrength":   device.SignalStrength,
		"lastSeen":         device.LastSeen,
	})
}

type HeartbeatRequest struct {
	BatteryLevel   *float64 `json:"batteryLevel"`
	SignalStrength *float64 `json:"signalStrength"`
}

func (rs *RestfulServer) PostHeartbeat(c *gin.Context) {
	deviceID := c.Param("device_id")

	var req HeartbeatRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if _, err := rs.Registry.Get(c.Request.Context(), deviceID); err != nil {
		respondError(c, err)
		return
	}

	rs.Registry.UpdateLiveness(c.Request.Context(), deviceID, registry.Heartbeat{
		BatteryLevel:   req.BatteryLevel,
		SignalStrength: req.SignalStrength,
	})
	c.Status(http.StatusNoContent)
}

type LimiterRequest struct {
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}

var limiterRequestValidator = z.Struct(z.Shape{
	"Rate":  z.Float64().Required(),
	"Burst": z.Int().Required(),
})

func (rs *RestfulServer) PostLimiter(c *gin.Context) {
	deviceID := c.Param("device_id")

	var req LimiterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := limiterRequestValidator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	rs.SetLimiter(deviceID, req.Rate, req.Burst)
	c.Status(http.StatusOK)
}
