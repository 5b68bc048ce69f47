package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"vitalbridge.dev/telemetry-service/pkg/adapters"
	"vitalbridge.dev/telemetry-service/pkg/alerts"
	"vitalbridge.dev/telemetry-service/pkg/common"
	"vitalbridge.dev/telemetry-service/pkg/db"
	"vitalbridge.dev/telemetry-service/pkg/fanout"
	telemetryHttp "vitalbridge.dev/telemetry-service/pkg/http"
	"vitalbridge.dev/telemetry-service/pkg/interchange"
	"vitalbridge.dev/telemetry-service/pkg/notify"
	"vitalbridge.dev/telemetry-service/pkg/registry"
	"vitalbridge.dev/telemetry-service/pkg/telemetry"
)

func main() {
	var err error

	err = godotenv.Load()
	if err != nil {
		log.Fatal("Error loading .env file, copy .env.example to .env first if in development")
	}

	var dbInstance *db.DB
	dbType := os.Getenv(common.EnvKeyTelemetryDBType)
	switch dbType {
	case "file":
		dbInstance, err = db.New(db.UseSqliteDialector())
	case "memory":
		dbInstance, err = db.New(db.UseMemorySqliteDialector())
	default:
		log.Fatal("Unknown TELEMETRY_DB_TYPE: " + dbType)
	}
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	httpHostPort := strings.TrimSpace(os.Getenv(common.EnvKeyTelemetryHttpHostPort))

	var defaultRate float64
	var defaultBurst int64

	if defaultRate, err = strconv.ParseFloat(os.Getenv(common.EnvKeyTelemetryDefaultRate), 64); err != nil {
		log.Fatal("Invalid TELEMETRY_DEFAULT_RATE, or not set in .env, should be a float64 value")
	}

	if defaultBurst, err = strconv.ParseInt(os.Getenv(common.EnvKeyTelemetryDefaultBurst), 10, 64); err != nil {
		log.Fatal("Invalid TELEMETRY_DEFAULT_BURST, or not set in .env, should be an int value")
	}

	logger := common.GetLogger()

	var mirror *redis.Client
	if addr := strings.TrimSpace(os.Getenv(common.EnvKeyTelemetryRedisAddr)); addr != "" {
		mirror = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: os.Getenv(common.EnvKeyTelemetryRedisPassword),
		})
		logger.Info("Redis mirror enabled", zap.String("addr", addr))
	}
	broker := fanout.New(mirror)

	var forwarder *interchange.Forwarder
	if url := strings.TrimSpace(os.Getenv(common.EnvKeyTelemetryInterchangeURL)); url != "" {
		forwarder = interchange.New(url, os.Getenv(common.EnvKeyTelemetryInterchangeAPIKey))
		logger.Info("Interchange forwarding enabled", zap.String("url", url))
	}

	var notifier *notify.Dispatcher
	if url := strings.TrimSpace(os.Getenv(common.EnvKeyTelemetryNotifyURL)); url != "" {
		recipients := splitNonEmpty(os.Getenv(common.EnvKeyTelemetryNotifyRecipients))
		notifier = notify.New(url, recipients)
		logger.Info("Critical alert notifications enabled",
			zap.String("url", url),
			zap.Int("recipients", len(recipients)))
	}

	reg := registry.New(dbInstance)
	reg.Events = broker

	engine := alerts.New(dbInstance)
	engine.Fanout = broker
	if notifier != nil {
		engine.Notifier = notifier
	}
	if forwarder != nil {
		engine.Forwarder = forwarder
	}

	core := telemetry.NewCore(dbInstance, reg)
	core.TenantID = strings.TrimSpace(os.Getenv(common.EnvKeyTelemetryTenantID))
	opts := telemetry.ServiceOpts{
		Evaluator: engine,
		Publisher: broker,
	}
	if forwarder != nil {
		opts.Forwarder = forwarder
	}
	core.WithServices(opts)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if brokerURL := strings.TrimSpace(os.Getenv(common.EnvKeyTelemetryMqttBroker)); brokerURL != "" {
		mqttAdapter := adapters.NewMQTTAdapter(adapters.MQTTConfig{
			BrokerURL: brokerURL,
			ClientID:  os.Getenv(common.EnvKeyTelemetryMqttClientID),
			Username:  os.Getenv(common.EnvKeyTelemetryMqttUsername),
			Password:  os.Getenv(common.EnvKeyTelemetryMqttPassword),
			QoS:       1,
		}, core, reg, engine)
		logger.Info("Starting MQTT adapter", zap.String("broker", brokerURL))
		go adapters.NewSupervisor(mqttAdapter, reg, engine, nil).Run(ctx)
	}

	if kafkaBrokers := strings.TrimSpace(os.Getenv(common.EnvKeyTelemetryKafkaBrokers)); kafkaBrokers != "" {
		kafkaAdapter := adapters.NewKafkaAdapter(adapters.KafkaConfig{
			Brokers: kafkaBrokers,
			GroupID: os.Getenv(common.EnvKeyTelemetryKafkaGroup),
			Topic:   os.Getenv(common.EnvKeyTelemetryKafkaTopic),
		}, core)
		logger.Info("Starting Kafka adapter", zap.String("brokers", kafkaBrokers))
		go adapters.NewSupervisor(kafkaAdapter, reg, engine, nil).Run(ctx)
	}

	if httpHostPort == "" {
		// fallback to default http port
		httpHostPort = ":1080"
	}

	logger.Info("Starting HTTP server on port " + httpHostPort)
	rs := &telemetryHttp.RestfulServer{
		Server:           gin.Default(),
		Core:             core,
		Registry:         reg,
		Alerts:           engine,
		Broker:           broker,
		RateLimiterStore: telemetry.NewRateLimiterStore(rate.Limit(defaultRate), int(defaultBurst)),
	}
	rs.Setup()

	logger.Info("http server created with:",
		zap.String("default_limiter",
			fmt.Sprintf("{\"default_rate\": %v, \"default_burst\": %v}", defaultRate, defaultBurst)))

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- rs.Server.Run(httpHostPort)
	}()

	select {
	case err := <-serverErr:
		log.Fatalf("http server failed to serve: %v", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down")
	core.Close()
	if forwarder != nil {
		forwarder.Close()
	}
	if mirror != nil {
		mirror.Close()
	}
}

func splitNonEmpty(s string) []string {
	return common.Reducer(strings.Split(s, ","), func(acc []string, part string) []string {
		if p := strings.TrimSpace(part); p != "" {
			acc = append(acc, p)
		}
		return acc
	}, nil)
}
