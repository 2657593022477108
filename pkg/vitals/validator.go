package vitals

import (
	"errors"
	"fmt"
	"time"

	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
)

// Plausibility window applied at ingestion. Deliberately narrower than
// the domain storage bounds: grossly implausible sensor noise is
// dropped at the edge instead of flowing downstream.
const (
	MinPlausibleHeartRate = 40.0
	MaxPlausibleHeartRate = 200.0

	MinPlausibleTemperature = 35.0
	MaxPlausibleTemperature = 42.0

	MinPlausibleOxygenLevel = 70.0
	MaxPlausibleOxygenLevel = 100.0
)

var ErrImplausibleReading = errors.New("implausible reading")

// ValidateReading gatekeeps a candidate before it enters the pipeline.
// A rejected candidate is never persisted, broadcast, or evaluated for
// alerts. A zero timestamp is replaced with the current time. No side
// effects; rejection handling is the caller's business.
func ValidateReading(candidate *models.Reading) (models.Reading, error) {
	reading := models.Reading{
		HeartRate:   candidate.HeartRate,
		Temperature: candidate.Temperature,
		OxygenLevel: candidate.OxygenLevel,
		Timestamp:   candidate.Timestamp,
	}

	if reading.Timestamp.IsZero() {
		reading.Timestamp = time.Now()
	}

	if reading.HeartRate < MinPlausibleHeartRate || reading.HeartRate > MaxPlausibleHeartRate {
		return models.Reading{}, fmt.Errorf("%w: heart rate %.2f outside [%.0f, %.0f]",
			ErrImplausibleReading, reading.HeartRate, MinPlausibleHeartRate, MaxPlausibleHeartRate)
	}
	if reading.Temperature < MinPlausibleTemperature || reading.Temperature > MaxPlausibleTemperature {
		return models.Reading{}, fmt.Errorf("%w: temperature %.2f outside [%.0f, %.0f]",
			ErrImplausibleReading, reading.Temperature, MinPlausibleTemperature, MaxPlausibleTemperature)
	}
	if reading.OxygenLevel < MinPlausibleOxygenLevel || reading.OxygenLevel > MaxPlausibleOxygenLevel {
		return models.Reading{}, fmt.Errorf("%w: oxygen level %.2f outside [%.0f, %.0f]",
			ErrImplausibleReading, reading.OxygenLevel, MinPlausibleOxygenLevel, MaxPlausibleOxygenLevel)
	}

	return reading, nil
}
