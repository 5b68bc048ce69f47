package adapters

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/models"
)

// MQTT topics consumed by the broker-ingress adapter.
const (
	mqttTopicVitals = "devices/+/vitals"
	mqttTopicStatus = "devices/+/status"
	mqttTopicAlerts = "devices/+/alerts"
)

type MQTTConfig struct {
	BrokerURL string
	ClientID  string
	Username  string
	Password  string
	QoS       byte
}

// MQTTAdapter consumes `devices/{deviceId}/vitals|status|alerts` topics and
// normalizes payloads into canonical readings, registry status updates, and
// raised alerts.
type MQTTAdapter struct {
	cfg      MQTTConfig
	sink     Sink
	registry StatusUpdater
	alerts   AlertRaiser

	client         mqtt.Client
	lost           chan error
	decodeFailures atomic.Uint64
}

func NewMQTTAdapter(cfg MQTTConfig, sink Sink, reg StatusUpdater, raiser AlertRaiser) *MQTTAdapter {
	return &MQTTAdapter{
		cfg:      cfg,
		sink:     sink,
		registry: reg,
		alerts:   raiser,
		lost:     make(chan error, 1),
	}
}

func (a *MQTTAdapter) Name() string { return "mqtt" }

// DecodeFailures reports how many per-message decode failures this adapter
// has swallowed.
func (a *MQTTAdapter) DecodeFailures() uint64 { return a.decodeFailures.Load() }

func (a *MQTTAdapter) logger() *zap.Logger {
	return common.GetLoggerWith(
		common.LoggerNameAdapter,
		zap.String("adapter", a.Name()),
	)
}

func (a *MQTTAdapter) Connect(ctx context.Context) error {
	logger := a.logger()

	opts := mqtt.NewClientOptions()
	opts.AddBroker(a.cfg.BrokerURL)
	opts.SetClientID(a.cfg.ClientID)
	opts.SetUsername(a.cfg.Username)
	opts.SetPassword(a.cfg.Password)
	opts.OnConnect = func(client mqtt.Client) {
		logger.Info("Connected to MQTT broker")
		for _, topic := range []string{mqttTopicVitals, mqttTopicStatus, mqttTopicAlerts} {
			token := client.Subscribe(topic, a.cfg.QoS, a.handleMessage)
			token.Wait()
			if token.Error() != nil {
				logger.Warn("MQTT subscribe failed",
					zap.String("topic", topic),
					zap.Error(token.Error()))
				continue
			}
			logger.Info("Subscribed to topic", zap.String("topic", topic))
		}
	}
	opts.OnConnectionLost = func(client mqtt.Client, err error) {
		select {
		case a.lost <- err:
		default:
		}
	}

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	a.client = client
	return nil
}

func (a *MQTTAdapter) Serve(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return nil
	case err := <-a.lost:
		return err
	}
}

func (a *MQTTAdapter) Disconnect() error {
	if a.client != nil {
		a.client.Disconnect(250)
		a.client = nil
	}
	return nil
}

func (a *MQTTAdapter) handleMessage(client mqtt.Client, msg mqtt.Message) {
	logger := common.GetLoggerWith(
		common.LoggerNameAdapter,
		zap.String("adapter", a.Name()),
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryDecode),
	)

	deviceID, kind, err := splitDeviceTopic(msg.Topic())
	if err != nil {
		a.decodeFailures.Add(1)
		logger.Warn("Unroutable MQTT topic",
			zap.String("topic", msg.Topic()),
			zap.Error(err))
		return
	}

	switch kind {
	case "vitals":
		a.handleVitals(deviceID, msg.Payload(), logger)
	case "status":
		a.handleStatus(deviceID, msg.Payload(), logger)
	case "alerts":
		a.handleAlert(deviceID, msg.Payload(), logger)
	default:
		logger.Warn("Unknown topic kind",
			zap.String("topic", msg.Topic()))
	}
}

func (a *MQTTAdapter) handleVitals(deviceID string, payload []byte, logger *zap.Logger) {
	reading, err := DecodeVitals(deviceID, payload)
	if err != nil {
		a.decodeFailures.Add(1)
		logger.Warn("Vitals decode failed",
			zap.String("device_id", deviceID),
			zap.Uint64("decode_failures", a.decodeFailures.Load()),
			zap.Error(err))
		return
	}
	if _, err := a.sink.Ingest(context.Background(), reading); err != nil {
		logger.Warn("Broker reading rejected",
			zap.String("device_id", deviceID),
			zap.Error(err))
	}
}

func (a *MQTTAdapter) handleStatus(deviceID string, payload []byte, logger *zap.Logger) {
	var msg statusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.decodeFailures.Add(1)
		logger.Warn("Status decode failed",
			zap.String("device_id", deviceID),
			zap.Error(err))
		return
	}
	if a.registry == nil {
		return
	}
	_, err := a.registry.UpdateStatus(context.Background(), deviceID,
		models.DeviceStatus(msg.Status), msg.Reason, msg.Error, a.Name())
	if err != nil {
		logger.Warn("Broker status update rejected",
			zap.String("device_id", deviceID),
			zap.Error(err))
	}
}

func (a *MQTTAdapter) handleAlert(deviceID string, payload []byte, logger *zap.Logger) {
	var msg struct {
		Type     string `json:"type"`
		Severity string `json:"severity"`
		Message  string `json:"message"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		a.decodeFailures.Add(1)
		logger.Warn("Alert decode failed",
			zap.String("device_id", deviceID),
			zap.Error(err))
		return
	}
	if a.alerts == nil {
		return
	}
	_, err := a.alerts.Raise(context.Background(), &models.Alert{
		DeviceID: deviceID,
		Type:     models.AlertType(msg.Type),
		Severity: models.AlertSeverity(msg.Severity),
		Message:  msg.Message,
	})
	if err != nil {
		logger.Warn("Broker alert rejected",
			zap.String("device_id", deviceID),
			zap.Error(err))
	}
}

// splitDeviceTopic parses `devices/{deviceId}/{kind}`.
func splitDeviceTopic(topic string) (deviceID, kind string, err error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "devices" || parts[1] == "" {
		return "", "", fmt.Errorf("unexpected topic shape %q", topic)
	}
	return parts[1], parts[2], nil
}
