package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"vitalbridge.dev/telemetry-service/pkg/alerts"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

func boolQuery(c *gin.Context, key string) *bool {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil
	}
	return &b
}

func timeQuery(c *gin.Context, key string) *time.Time {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil
	}
	return &t
}

func (rs *RestfulServer) ListAlerts(c *gin.Context) {
	filter := alerts.Filter{
		DeviceID:     c.Query("deviceId"),
		PatientID:    c.Query("patientId"),
		Type:         models.AlertType(c.Query("type")),
		Severity:     models.AlertSeverity(c.Query("severity")),
		Acknowledged: boolQuery(c, "acknowledged"),
		Resolved:     boolQuery(c, "resolved"),
		From:         timeQuery(c, "from"),
		To:           timeQuery(c, "to"),
	}
	page := alerts.Page{
		Page: intQuery(c, "page", 1),
		Size: intQuery(c, "size", 20),
	}

	list, total, err := rs.Alerts.List(c.Request.Context(), filter, page)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts": list,
		"total":  total,
		"page":   page.Page,
		"size":   page.Size,
	})
}

type AcknowledgeRequest struct {
	By string `json:"by"`
}

func (rs *RestfulServer) AcknowledgeAlert(c *gin.Context) {
	var req AcknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := rs.Alerts.Acknowledge(c.Request.Context(), c.Param("alert_id"), req.By)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}

type ResolveRequest struct {
	By    string `json:"by"`
	Notes string `json:"notes"`
}

func (rs *RestfulServer) ResolveAlert(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	alert, err := rs.Alerts.Resolve(c.Request.Context(), c.Param("alert_id"), req.By, req.Notes)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, alert)
}
