package vitals

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
)

// Fixed alert thresholds, evaluated independently per reading.
const (
	HighHeartRateThreshold   = 120.0
	LowHeartRateThreshold    = 50.0
	HighTemperatureThreshold = 38.5
	LowTemperatureThreshold  = 36.0
	LowOxygenLevelThreshold  = 90.0
)

const (
	AlertTitleHeartRate   = "Heart Rate"
	AlertTitleTemperature = "Temperature"
	AlertTitleOxygenLevel = "Oxygen Level"
)

// EvaluateReading maps a validated reading to zero or more alerts. The
// checks are independent, not mutually exclusive, and keep no state
// between calls. Warnings auto-expire on the consumer side; critical
// alerts stay until dismissed.
func EvaluateReading(reading *models.Reading) []models.Alert {
	var alerts []models.Alert
	now := time.Now()

	if reading.HeartRate > HighHeartRateThreshold || reading.HeartRate < LowHeartRateThreshold {
		alerts = append(alerts, models.Alert{
			ID:         uuid.NewString(),
			Severity:   models.AlertSeverityWarning,
			Title:      AlertTitleHeartRate,
			Message:    fmt.Sprintf("Abnormal heart rate detected: %.0f BPM", reading.HeartRate),
			CreatedAt:  now,
			AutoExpire: true,
		})
	}

	if reading.Temperature > HighTemperatureThreshold || reading.Temperature < LowTemperatureThreshold {
		alerts = append(alerts, models.Alert{
			ID:         uuid.NewString(),
			Severity:   models.AlertSeverityWarning,
			Title:      AlertTitleTemperature,
			Message:    fmt.Sprintf("Abnormal temperature detected: %.1f°C", reading.Temperature),
			CreatedAt:  now,
			AutoExpire: true,
		})
	}

	if reading.OxygenLevel < LowOxygenLevelThreshold {
		alerts = append(alerts, models.Alert{
			ID:         uuid.NewString(),
			Severity:   models.AlertSeverityCritical,
			Title:      AlertTitleOxygenLevel,
			Message:    fmt.Sprintf("Low oxygen saturation: %.0f%%", reading.OxygenLevel),
			CreatedAt:  now,
			AutoExpire: false,
		})
	}

	return alerts
}
