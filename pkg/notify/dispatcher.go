package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

// DefaultChannels are the delivery channels requested for critical alerts.
var DefaultChannels = []string{"sms", "push"}

// Dispatcher sends critical-alert notifications to the external messaging
// collaborator. Best-effort: the caller records the outcome, nothing is
// retried here.
type Dispatcher struct {
	client     *resty.Client
	url        string
	recipients []string
	channels   []string
}

func New(url string, recipients []string) *Dispatcher {
	return &Dispatcher{
		client: resty.New().
			SetTimeout(10 * time.Second).
			SetHeader("Content-Type", "application/json"),
		url:        url,
		recipients: recipients,
		channels:   DefaultChannels,
	}
}

type payload struct {
	Type       string         `json:"type"`
	Priority   string         `json:"priority"`
	Recipients []string       `json:"recipients"`
	Channels   []string       `json:"channels"`
	Subject    string         `json:"subject"`
	Message    string         `json:"message"`
	Metadata   map[string]any `json:"metadata"`
}

// SendCriticalAlert posts the alert to the notification service and returns
// the channels used.
func (d *Dispatcher) SendCriticalAlert(ctx context.Context, a *models.Alert) ([]string, error) {
	logger := common.GetLoggerWith(
		common.LoggerNameNotify,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDispatch),
	)

	body := payload{
		Type:       "critical_alert",
		Priority:   "critical",
		Recipients: d.recipients,
		Channels:   d.channels,
		Subject:    fmt.Sprintf("Critical alert for device %s", a.DeviceID),
		Message:    a.Message,
		Metadata: map[string]any{
			"alertId":   a.ID,
			"deviceId":  a.DeviceID,
			"patientId": a.PatientID,
			"parameter": a.Parameter,
		},
	}

	resp, err := d.client.R().SetContext(ctx).SetBody(body).Post(d.url)
	if err != nil {
		return nil, common.NewExternalServiceError("notification", err)
	}
	if resp.IsError() {
		return nil, common.NewExternalServiceError("notification",
			fmt.Errorf("notification service returned status %d", resp.StatusCode()))
	}

	logger.Info("Critical alert dispatched",
		zap.String("alert_id", a.ID),
		zap.Strings("channels", d.channels))
	return d.channels, nil
}
