package vitals

import (
	"go.uber.org/zap"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
)

func (v *Vitals) storeAlerts(deviceID string, alerts []models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	logger := common.GetLoggerWith(
		common.LoggerNameVitalsCore,
		zap.String(common.LoggerFieldVitalsCategory, common.LoggerCategoryAlert),
	)

	for i := range alerts {
		alerts[i].DeviceID = deviceID
		logger.Info("Alert found", zap.Reflect("alert", alerts[i]))
	}

	if err := v.Db.Conn.Create(&alerts).Error; err != nil {
		return err
	}

	logger.Info("Alerts saved", zap.String("device_id", deviceID), zap.Int("count", len(alerts)))
	return nil
}

func (v *Vitals) getDeviceAlerts(deviceID string) ([]models.Alert, error) {
	var alerts []models.Alert
	err := v.Db.Conn.
		Where("device_id = ?", deviceID).
		Order("created_at desc").
		Find(&alerts).Error
	return alerts, err
}

type IAlertImpl struct {
	vitals *Vitals
}

func (ia *IAlertImpl) StoreAlerts(deviceID string, alerts []models.Alert) error {
	return ia.vitals.storeAlerts(deviceID, alerts)
}

func (ia *IAlertImpl) GetDeviceAlerts(deviceID string) ([]models.Alert, error) {
	return ia.vitals.getDeviceAlerts(deviceID)
}

func (v *Vitals) GetIAlert() IAlert {
	return &IAlertImpl{vitals: v}
}
