package vitals

import (
	"vitalwatch.dev/vitals-telemetry-service/pkg/db"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
)

// DefaultHistoryCap bounds the durable per-device reading window.
const DefaultHistoryCap = 100

type IHistory interface {
	AppendReading(deviceID string, input *models.Reading) error
	ListReadings(deviceID string) ([]models.Reading, error)
}

type IAlert interface {
	StoreAlerts(deviceID string, alerts []models.Alert) error
	GetDeviceAlerts(deviceID string) ([]models.Alert, error)
}

type IDevice interface {
	EnsureDevice(deviceID string) error
	SetStatus(deviceID string, status models.DeviceStatus) error
	ListDevices() ([]models.Device, error)
}

type Vitals struct {
	Db         db.DB
	HistoryCap int

	History IHistory
	Alert   IAlert
	Device  IDevice
}

type ServiceOpts struct {
	History IHistory
	Alert   IAlert
	Device  IDevice
}

func (v *Vitals) WithServices(opts ServiceOpts) *Vitals {
	if opts.History != nil {
		v.History = opts.History
	}
	if opts.Alert != nil {
		v.Alert = opts.Alert
	}
	if opts.Device != nil {
		v.Device = opts.Device
	}
	return v
}

func (v *Vitals) historyCap() int {
	if v.HistoryCap > 0 {
		return v.HistoryCap
	}
	return DefaultHistoryCap
}
