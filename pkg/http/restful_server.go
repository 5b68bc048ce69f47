package http

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"vitalbridge.dev/telemetry-service/pkg/alerts"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/fanout"
	"vitalbridge.dev/telemetry-service/pkg/registry"
	"vitalbridge.dev/telemetry-service/pkg/telemetry"
)

type RestfulServer struct {
	Server           *gin.Engine
	Core             *telemetry.Core
	Registry         *registry.Registry
	Alerts           *alerts.Engine
	Broker           *fanout.Broker
	RateLimiterStore *telemetry.RateLimiterStore
}

func (rs *RestfulServer) GetLimiter(deviceID string) *rate.Limiter {
	if rs.RateLimiterStore == nil {
		return nil
	} else {
		return rs.RateLimiterStore.GetLimiter(deviceID)
	}
}

func (rs *RestfulServer) CheckDeviceLimiter(deviceID string) bool {
	limiter := rs.GetLimiter(deviceID)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (rs *RestfulServer) SetLimiter(deviceID string, deviceRate float64, deviceBurst int) {
	if rs.RateLimiterStore == nil {
		return
	}
	rs.RateLimiterStore.SetLimiter(deviceID, rate.Limit(deviceRate), deviceBurst)
}

func (rs *RestfulServer) Setup() {
	rs.Server.GET("/healthz", rs.HealthCheck)

	rs.Server.POST("/vital-signs", rs.PostVitalSigns)

	devices := rs.Server.Group("/devices")
	{
		devices.POST("", rs.RegisterDevice)
		devices.GET("", rs.ListDevices)
		devices.GET("/:device_id", rs.GetDevice)
		devices.PATCH("/:device_id", rs.PatchDevice)
		devices.DELETE("/:device_id", rs.DeleteDevice)
		devices.PATCH("/:device_id/status", rs.UpdateDeviceStatus)
		devices.GET("/:device_id/status-history", rs.GetStatusHistory)
		devices.GET("/:device_id/health", rs.GetDeviceHealth)
		devices.GET("/:device_id/readings", rs.ListDeviceReadings)
		devices.POST("/:device_id/heartbeat", rs.PostHeartbeat)
		devices.POST("/:device_id/limiter", rs.PostLimiter)
	}

	alertRoutes := rs.Server.Group("/alerts")
	{
		alertRoutes.GET("", rs.ListAlerts)
		alertRoutes.POST("/:alert_id/acknowledge", rs.AcknowledgeAlert)
		alertRoutes.POST("/:alert_id/resolve", rs.ResolveAlert)
	}

	rs.Server.GET("/ws", rs.Realtime)
}

// respondError maps the error taxonomy onto HTTP statuses. External-service
// errors never reach here; they are consumed on the background paths.
func respondError(c *gin.Context, err error) {
	switch {
	case common.IsValidationError(err):
		c.JSON(400, gin.H{"error": err.Error()})
	case common.IsNotFoundError(err):
		c.JSON(404, gin.H{"error": err.Error()})
	default:
		c.JSON(500, gin.H{"error": err.Error()})
	}
}
