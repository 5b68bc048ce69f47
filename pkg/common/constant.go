package common

const (
	EnvKeyGoEnv string = "GO_ENV"

	EnvKeyRunIntegrationTests string = "RUN_INTEGRATION_TESTS"

	EnvKeyTelemetryDBType string = "TELEMETRY_DB_TYPE"
	EnvKeyTelemetryDbPath string = "TELEMETRY_DB_PATH"

	EnvKeyTelemetryHttpHostPort string = "TELEMETRY_HTTP_HOST_PORT"
	EnvKeyTelemetryTenantID     string = "TELEMETRY_TENANT_ID"

	EnvKeyTelemetryDefaultRate  string = "TELEMETRY_DEFAULT_RATE"
	EnvKeyTelemetryDefaultBurst string = "TELEMETRY_DEFAULT_BURST"

	EnvKeyTelemetryRedisAddr     string = "TELEMETRY_REDIS_ADDR"
	EnvKeyTelemetryRedisPassword string = "TELEMETRY_REDIS_PASSWORD"

	EnvKeyTelemetryMqttBroker   string = "TELEMETRY_MQTT_BROKER_URL"
	EnvKeyTelemetryMqttClientID string = "TELEMETRY_MQTT_CLIENT_ID"
	EnvKeyTelemetryMqttUsername string = "TELEMETRY_MQTT_USERNAME"
	EnvKeyTelemetryMqttPassword string = "TELEMETRY_MQTT_PASSWORD"

	EnvKeyTelemetryKafkaBrokers string = "TELEMETRY_KAFKA_BROKERS"
	EnvKeyTelemetryKafkaTopic   string = "TELEMETRY_KAFKA_TOPIC"
	EnvKeyTelemetryKafkaGroup   string = "TELEMETRY_KAFKA_GROUP"

	EnvKeyTelemetryInterchangeURL    string = "TELEMETRY_INTERCHANGE_URL"
	EnvKeyTelemetryInterchangeAPIKey string = "TELEMETRY_INTERCHANGE_API_KEY"

	EnvKeyTelemetryNotifyURL        string = "TELEMETRY_NOTIFY_URL"
	EnvKeyTelemetryNotifyRecipients string = "TELEMETRY_NOTIFY_RECIPIENTS"

	LoggerNameRegistry      string = "registry"
	LoggerNameTelemetryCore string = "telemetry_core"
	LoggerNameAlertEngine   string = "alert_engine"
	LoggerNameFanout        string = "fanout"
	LoggerNameAdapter       string = "adapter"
	LoggerNameInterchange   string = "interchange"
	LoggerNameNotify        string = "notify"
	LoggerNameRestfulServer string = "restful_server"

	LoggerFieldCategory      string = "category"
	LoggerCategoryReading    string = "reading"
	LoggerCategoryAlert      string = "alert"
	LoggerCategoryLifecycle  string = "lifecycle"
	LoggerCategoryDevice     string = "device"
	LoggerCategoryLiveness   string = "liveness"
	LoggerCategoryDecode     string = "decode"
	LoggerCategoryPublish    string = "publish"
	LoggerCategoryForward    string = "forward"
	LoggerCategoryDispatch   string = "dispatch"
	LoggerCategoryBackground string = "background"
)
