package adapters

import (
	"context"
	"sync/atomic"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
)

type KafkaConfig struct {
	Brokers string
	GroupID string
	Topic   string
}

// KafkaAdapter consumes a vitals topic whose payloads carry their own device
// id.
type KafkaAdapter struct {
	cfg  KafkaConfig
	sink Sink

	consumer       *kafka.Consumer
	decodeFailures atomic.Uint64
}

func NewKafkaAdapter(cfg KafkaConfig, sink Sink) *KafkaAdapter {
	return &KafkaAdapter{cfg: cfg, sink: sink}
}

func (a *KafkaAdapter) Name() string { return "kafka" }

func (a *KafkaAdapter) DecodeFailures() uint64 { return a.decodeFailures.Load() }

func (a *KafkaAdapter) Connect(ctx context.Context) error {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": a.cfg.Brokers,
		"group.id":          a.cfg.GroupID,
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		return err
	}
	if err := consumer.Subscribe(a.cfg.Topic, nil); err != nil {
		consumer.Close()
		return err
	}
	a.consumer = consumer
	return nil
}

func (a *KafkaAdapter) Serve(ctx context.Context) error {
	logger := common.GetLoggerWith(
		common.LoggerNameAdapter,
		zap.String("adapter", a.Name()),
	)
	logger.Info("Consumer started",
		zap.String("topic", a.cfg.Topic),
		zap.String("group_id", a.cfg.GroupID))

	for {
		select {
		case <-ctx.Done():
			logger.Info("Stopping consumer", zap.String("topic", a.cfg.Topic))
			return nil
		default:
			ev := a.consumer.Poll(100)
			if ev == nil {
				continue
			}
			switch e := ev.(type) {
			case *kafka.Message:
				a.handleMessage(e.Value, logger)
			case kafka.Error:
				if e.IsFatal() {
					return e
				}
				logger.Warn("Kafka error", zap.String("error", e.Error()))
			}
		}
	}
}

func (a *KafkaAdapter) Disconnect() error {
	if a.consumer != nil {
		err := a.consumer.Close()
		a.consumer = nil
		return err
	}
	return nil
}

func (a *KafkaAdapter) handleMessage(value []byte, logger *zap.Logger) {
	reading, err := DecodeVitals("", value)
	if err != nil {
		a.decodeFailures.Add(1)
		logger.Warn("Vitals decode failed",
			zap.Uint64("decode_failures", a.decodeFailures.Load()),
			zap.Error(err))
		return
	}
	if _, err := a.sink.Ingest(context.Background(), reading); err != nil {
		logger.Warn("Broker reading rejected",
			zap.String("device_id", reading.DeviceID),
			zap.Error(err))
	}
}
