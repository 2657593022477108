package vitals

import (
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
)

var ErrDeviceNotFound = errors.New("device not found")

func (v *Vitals) appendReading(deviceID string, input *models.Reading) error {
	logger := common.GetLoggerWith(
		common.LoggerNameVitalsCore,
		zap.String(common.LoggerFieldVitalsCategory, common.LoggerCategoryHistory),
	)

	reading := models.Reading{
		DeviceID:    deviceID,
		HeartRate:   input.HeartRate,
		Temperature: input.Temperature,
		OxygenLevel: input.OxygenLevel,
		Timestamp:   input.Timestamp,
	}

	logger.Info("Received reading for device", zap.Reflect("reading", reading))

	capacity := v.historyCap()

	// Push-and-trim inside one transaction: a concurrent ListReadings
	// never observes a window longer than the capacity or a torn append.
	err := v.Db.Conn.Transaction(func(tx *gorm.DB) error {
		device := models.Device{
			DeviceID: deviceID,
			Name:     deviceID,
			Status:   models.DeviceStatusOffline,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "device_id"}},
			DoNothing: true,
		}).Create(&device).Error; err != nil {
			return err
		}

		if err := tx.Create(&reading).Error; err != nil {
			return err
		}

		// Oldest rows beyond the window are evicted, newest kept.
		return tx.Exec(
			`DELETE FROM readings
			 WHERE device_id = ?
			   AND id NOT IN (
			     SELECT id FROM readings WHERE device_id = ? ORDER BY id DESC LIMIT ?
			   )`,
			deviceID, deviceID, capacity,
		).Error
	})
	if err != nil {
		return err
	}

	logger.Info("Appended reading for device", zap.Reflect("reading", reading))
	return nil
}

func (v *Vitals) listReadings(deviceID string) ([]models.Reading, error) {
	var device models.Device
	if err := v.Db.Conn.First(&device, "device_id = ?", deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeviceNotFound
		}
		return nil, err
	}

	readings := []models.Reading{}
	err := v.Db.Conn.
		Where("device_id = ?", deviceID).
		Order("timestamp asc, id asc").
		Limit(v.historyCap()).
		Find(&readings).Error
	return readings, err
}

type IHistoryImpl struct {
	vitals *Vitals
}

func (ih *IHistoryImpl) AppendReading(deviceID string, input *models.Reading) error {
	return ih.vitals.appendReading(deviceID, input)
}

func (ih *IHistoryImpl) ListReadings(deviceID string) ([]models.Reading, error) {
	return ih.vitals.listReadings(deviceID)
}

func (v *Vitals) GetIHistory() IHistory {
	return &IHistoryImpl{vitals: v}
}
