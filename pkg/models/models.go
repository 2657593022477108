package models

import "time"

type DeviceStatus string

const (
	DeviceStatusOnline      DeviceStatus = "online"
	DeviceStatusOffline     DeviceStatus = "offline"
	DeviceStatusMaintenance DeviceStatus = "maintenance"
)

type AlertSeverity string

const (
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityCritical AlertSeverity = "critical"
)

type Reading struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	DeviceID    string    `gorm:"index" json:"-"`
	HeartRate   float64   `json:"heartRate"`
	Temperature float64   `json:"temperature"`
	OxygenLevel float64   `json:"oxygenLevel"`
	Timestamp   time.Time `json:"timestamp"`
}

type Device struct {
	DeviceID string       `gorm:"primaryKey" json:"deviceId"`
	Name     string       `json:"name"`
	Status   DeviceStatus `gorm:"type:varchar(20);check:status IN ('online','offline','maintenance')" json:"status"`

	// optional descriptive metadata
	Model           string     `json:"model,omitempty"`
	Manufacturer    string     `json:"manufacturer,omitempty"`
	LastMaintenance *time.Time `json:"lastMaintenance,omitempty"`

	Readings []Reading `gorm:"foreignKey:DeviceID;references:DeviceID" json:"-"`
	Alerts   []Alert   `gorm:"foreignKey:DeviceID;references:DeviceID" json:"-"`
}

type Alert struct {
	ID         string        `gorm:"primaryKey" json:"id"`
	DeviceID   string        `gorm:"index" json:"-"`
	Severity   AlertSeverity `gorm:"type:varchar(20);check:severity IN ('warning','critical')" json:"severity"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	CreatedAt  time.Time     `json:"createdAt"`
	AutoExpire bool          `json:"autoExpire"`
}
