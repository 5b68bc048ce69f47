package models

import (
	"database/sql/driver"
	"fmt"
	"time"
)

type DeviceType string

const (
	DeviceTypeMonitor    DeviceType = "monitor"
	DeviceTypePump       DeviceType = "pump"
	DeviceTypeVentilator DeviceType = "ventilator"
	DeviceTypeECG        DeviceType = "ecg"
	DeviceTypeOximeter   DeviceType = "oximeter"
)

type DeviceStatus string

const (
	DeviceStatusActive         DeviceStatus = "active"
	DeviceStatusInactive       DeviceStatus = "inactive"
	DeviceStatusMaintenance    DeviceStatus = "maintenance"
	DeviceStatusError          DeviceStatus = "error"
	DeviceStatusDecommissioned DeviceStatus = "decommissioned"
)

type Protocol string

const (
	ProtocolMQTT     Protocol = "mqtt"
	ProtocolKafka    Protocol = "kafka"
	ProtocolSerial   Protocol = "serial"
	ProtocolFieldbus Protocol = "fieldbus"
	ProtocolHTTP     Protocol = "http"
)

type CalibrationStatus string

const (
	CalibrationValid   CalibrationStatus = "valid"
	CalibrationDue     CalibrationStatus = "due"
	CalibrationOverdue CalibrationStatus = "overdue"
	CalibrationFailed  CalibrationStatus = "failed"
)

type AlertType string

const (
	AlertTypeCriticalValue       AlertType = "critical_value"
	AlertTypeMalfunction         AlertType = "malfunction"
	AlertTypeLeadOff             AlertType = "lead_off"
	AlertTypeBatteryLow          AlertType = "battery_low"
	AlertTypeCalibrationRequired AlertType = "calibration_required"
	AlertTypeConnectionLost      AlertType = "connection_lost"
	AlertTypeSignalQualityPoor   AlertType = "signal_quality_poor"
)

type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

type SignalQuality string

const (
	SignalExcellent SignalQuality = "excellent"
	SignalGood      SignalQuality = "good"
	SignalFair      SignalQuality = "fair"
	SignalPoor      SignalQuality = "poor"
)

// Clinical parameter names shared by readings and threshold sets.
const (
	ParamTemperature      = "temperature"
	ParamHeartRate        = "heartRate"
	ParamRespiratoryRate  = "respiratoryRate"
	ParamBPSystolic       = "bloodPressureSystolic"
	ParamBPDiastolic      = "bloodPressureDiastolic"
	ParamOxygenSaturation = "oxygenSaturation"
	ParamPulseRate        = "pulseRate"
)

const ErrorCodeConnectionLost = "connection_lost"

// ConnectionParams is the closed tagged union of protocol connection
// parameters. Exactly the payload matching the device's declared protocol must
// be set; Validate enforces this at registration time.
type ConnectionParams struct {
	MQTT     *MQTTParams     `json:"mqtt,omitempty"`
	Kafka    *KafkaParams    `json:"kafka,omitempty"`
	Serial   *SerialParams   `json:"serial,omitempty"`
	Fieldbus *FieldbusParams `json:"fieldbus,omitempty"`
	HTTP     *HTTPParams     `json:"http,omitempty"`
}

type MQTTParams struct {
	BrokerURL string `json:"brokerUrl"`
	TopicRoot string `json:"topicRoot"`
	QoS       int    `json:"qos"`
}

type KafkaParams struct {
	Brokers string `json:"brokers"`
	Topic   string `json:"topic"`
	GroupID string `json:"groupId"`
}

type SerialParams struct {
	Port     string `json:"port"`
	BaudRate int    `json:"baudRate"`
	Parity   string `json:"parity"`
}

type FieldbusParams struct {
	Address    string `json:"address"`
	UnitID     int    `json:"unitId"`
	IntervalMs int    `json:"intervalMs"`
}

type HTTPParams struct {
	SharedSecret string `json:"sharedSecret"`
}

func (p ConnectionParams) Validate(protocol Protocol) error {
	set := 0
	if p.MQTT != nil {
		set++
	}
	if p.Kafka != nil {
		set++
	}
	if p.Serial != nil {
		set++
	}
	if p.Fieldbus != nil {
		set++
	}
	if p.HTTP != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one connection parameter payload must be set, got %d", set)
	}

	switch protocol {
	case ProtocolMQTT:
		if p.MQTT == nil {
			return fmt.Errorf("protocol %s requires mqtt connection parameters", protocol)
		}
		if p.MQTT.BrokerURL == "" {
			return fmt.Errorf("mqtt broker url is required")
		}
	case ProtocolKafka:
		if p.Kafka == nil {
			return fmt.Errorf("protocol %s requires kafka connection parameters", protocol)
		}
		if p.Kafka.Brokers == "" || p.Kafka.Topic == "" {
			return fmt.Errorf("kafka brokers and topic are required")
		}
	case ProtocolSerial:
		if p.Serial == nil {
			return fmt.Errorf("protocol %s requires serial connection parameters", protocol)
		}
		if p.Serial.Port == "" || p.Serial.BaudRate <= 0 {
			return fmt.Errorf("serial port and a positive baud rate are required")
		}
	case ProtocolFieldbus:
		if p.Fieldbus == nil {
			return fmt.Errorf("protocol %s requires fieldbus connection parameters", protocol)
		}
		if p.Fieldbus.Address == "" {
			return fmt.Errorf("fieldbus address is required")
		}
	case ProtocolHTTP:
		if p.HTTP == nil {
			return fmt.Errorf("protocol %s requires http connection parameters", protocol)
		}
	default:
		return fmt.Errorf("unknown protocol %q", protocol)
	}
	return nil
}

func (p ConnectionParams) Value() (driver.Value, error) {
	return jsonValue(p)
}

func (p *ConnectionParams) Scan(src any) error {
	return jsonScan(src, p)
}

// ThresholdRange holds the soft and critical bounds for one parameter. Nil
// bounds are not evaluated; saturation-type parameters carry only Min and
// CriticalMin.
type ThresholdRange struct {
	Min         *float64 `json:"min,omitempty"`
	Max         *float64 `json:"max,omitempty"`
	CriticalMin *float64 `json:"criticalMin,omitempty"`
	CriticalMax *float64 `json:"criticalMax,omitempty"`
}

// ThresholdSet maps parameter name to its bounds. Versionless: changing a set
// affects future evaluations only.
type ThresholdSet map[string]ThresholdRange

func (t ThresholdSet) Value() (driver.Value, error) {
	return jsonValue(t)
}

func (t *ThresholdSet) Scan(src any) error {
	return jsonScan(src, t)
}

// StringList is stored as a JSON array in a text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	return jsonValue(l)
}

func (l *StringList) Scan(src any) error {
	return jsonScan(src, l)
}

// Device is owned by the registry. Status transitions only happen through the
// registry's status-update operation, which appends a DeviceStatusChange in
// the same transaction. Liveness is derived from LastSeen at read time.
type Device struct {
	ID           string `gorm:"primaryKey"`
	TenantID     string `gorm:"index;index:idx_tenant_serial,unique"`
	FacilityID   string `gorm:"index"`
	SerialNumber string `gorm:"index:idx_tenant_serial,unique"`
	Name         string
	Type         DeviceType `gorm:"index"`
	Protocol     Protocol   `gorm:"index"`
	ConnParams   ConnectionParams
	Status       DeviceStatus `gorm:"index"`
	ErrorCode    string
	PatientID    *string `gorm:"index"`

	LastSeen       *time.Time
	LastHeartbeat  *time.Time
	BatteryLevel   *float64
	SignalStrength *float64

	CalibratedAt      *time.Time
	CalibrationDueAt  *time.Time
	CalibrationStatus CalibrationStatus `gorm:"index"`

	// Optional per-device override of the registry-wide default threshold set.
	Thresholds *ThresholdSet

	CreatedBy string
	UpdatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeviceStatusChange is an immutable audit row appended with every status
// transition.
type DeviceStatusChange struct {
	ID         uint   `gorm:"primaryKey"`
	DeviceID   string `gorm:"index"`
	FromStatus DeviceStatus
	ToStatus   DeviceStatus
	Reason     string
	ErrorCode  string
	ChangedBy  string
	CreatedAt  time.Time
}

// ReadingQuality describes the data quality of one observation.
type ReadingQuality struct {
	Signal     SignalQuality `json:"signal,omitempty"`
	LeadOff    bool          `json:"leadOff,omitempty"`
	Artifact   bool          `json:"artifact,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
}

// Reading is one canonical vital-signs observation. Immutable once created.
// Ordering within a device is by ObservedAt, not arrival time; consumers
// needing clinical order must sort by observation time.
type Reading struct {
	ID         string    `gorm:"primaryKey"`
	DeviceID   string    `gorm:"index"`
	PatientID  string    `gorm:"index"`
	ObservedAt time.Time `gorm:"index"`

	Temperature      *float64
	HeartRate        *float64
	RespiratoryRate  *float64
	BPSystolic       *float64
	BPDiastolic      *float64
	OxygenSaturation *float64
	PulseRate        *float64

	Waveform []byte
	Quality  ReadingQuality `gorm:"embedded;embeddedPrefix:quality_"`

	CreatedAt time.Time
}

// Parameters returns the sparse set of clinical parameters present on the
// reading, in a stable order.
func (r *Reading) Parameters() []ParameterValue {
	var out []ParameterValue
	add := func(name string, v *float64) {
		if v != nil {
			out = append(out, ParameterValue{Name: name, Value: *v})
		}
	}
	add(ParamTemperature, r.Temperature)
	add(ParamHeartRate, r.HeartRate)
	add(ParamRespiratoryRate, r.RespiratoryRate)
	add(ParamBPSystolic, r.BPSystolic)
	add(ParamBPDiastolic, r.BPDiastolic)
	add(ParamOxygenSaturation, r.OxygenSaturation)
	add(ParamPulseRate, r.PulseRate)
	return out
}

type ParameterValue struct {
	Name  string
	Value float64
}

// Alert is append-only and never deleted. Only the lifecycle fields
// (acknowledged/resolved/notification) ever change after creation, and only
// forward: Open -> Acknowledged -> Resolved, with Open -> Resolved implying
// acknowledgement.
type Alert struct {
	ID        string `gorm:"primaryKey"`
	DeviceID  string `gorm:"index"`
	PatientID string `gorm:"index"`
	ReadingID string `gorm:"index"`

	Type     AlertType     `gorm:"index"`
	Severity AlertSeverity `gorm:"index"`

	Parameter string
	Value     *float64
	Threshold *float64
	Message   string

	Acknowledged   bool `gorm:"index"`
	AcknowledgedBy string
	AcknowledgedAt *time.Time

	Resolved        bool `gorm:"index"`
	ResolvedBy      string
	ResolvedAt      *time.Time
	ResolutionNotes string

	NotificationSent     bool
	NotificationChannels StringList

	CreatedAt time.Time `gorm:"index"`
}
