package vitals

import (
	"go.uber.org/zap"
	"gorm.io/gorm/clause"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
)

// ensureDevice is lookup-or-create: first contact from an unseen id
// registers the device, later calls are no-ops. Device ids stay unique
// via the primary key.
func (v *Vitals) ensureDevice(deviceID string) error {
	logger := common.GetLoggerWith(
		common.LoggerNameVitalsCore,
		zap.String(common.LoggerFieldVitalsCategory, common.LoggerCategoryDevice),
	)

	device := models.Device{
		DeviceID: deviceID,
		Name:     deviceID,
		Status:   models.DeviceStatusOffline,
	}

	err := v.Db.Conn.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "device_id"}},
		DoNothing: true,
	}).Create(&device).Error

	if err == nil {
		logger.Info("Ensured device", zap.String("device_id", deviceID))
	}

	return err
}

func (v *Vitals) setStatus(deviceID string, status models.DeviceStatus) error {
	logger := common.GetLoggerWith(
		common.LoggerNameVitalsCore,
		zap.String(common.LoggerFieldVitalsCategory, common.LoggerCategoryDevice),
	)

	err := v.Db.Conn.
		Model(&models.Device{}).
		Where("device_id = ?", deviceID).
		Update("status", status).Error

	if err == nil {
		logger.Info("Device status changed",
			zap.String("device_id", deviceID),
			zap.String("status", string(status)))
	}

	return err
}

func (v *Vitals) listDevices() ([]models.Device, error) {
	devices := []models.Device{}
	err := v.Db.Conn.Order("device_id asc").Find(&devices).Error
	return devices, err
}

type IDeviceImpl struct {
	vitals *Vitals
}

func (id *IDeviceImpl) EnsureDevice(deviceID string) error {
	return id.vitals.ensureDevice(deviceID)
}

func (id *IDeviceImpl) SetStatus(deviceID string, status models.DeviceStatus) error {
	return id.vitals.setStatus(deviceID, status)
}

func (id *IDeviceImpl) ListDevices() ([]models.Device, error) {
	return id.vitals.listDevices()
}

func (v *Vitals) GetIDevice() IDevice {
	return &IDeviceImpl{vitals: v}
}
