package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	z "github.com/Oudwins/zog"
	"github.com/Oudwins/zog/zhttp"

	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/hub"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
	"vitalwatch.dev/vitals-telemetry-service/pkg/vitals"
)

type ReadingRequest struct {
	HeartRate   float64   `json:"heartRate"`
	Temperature float64   `json:"temperature"`
	OxygenLevel float64   `json:"oxygenLevel"`
	Timestamp   time.Time `json:"timestamp"`
}

var readingRequestSchema = z.Struct(z.Shape{
	"HeartRate":   z.Float64().Required(),
	"Temperature": z.Float64().Required(),
	"OxygenLevel": z.Float64().Required(),
	// timestamp is optional, the validator assigns one if absent
	"Timestamp": z.Time(),
})

// PostReading ingests an externally pushed reading through the full
// pipeline: validate, persist, evaluate, broadcast.
func (rs *RestfulServer) PostReading(c *gin.Context) {
	logger := common.GetLoggerWith(common.LoggerNameRestfulServer)

	deviceID := c.Param("device_id")

	if !rs.CheckDeviceLimiter(deviceID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	var req ReadingRequest
	if err := readingRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	candidate := models.Reading{
		HeartRate:   req.HeartRate,
		Temperature: req.Temperature,
		OxygenLevel: req.OxygenLevel,
		Timestamp:   req.Timestamp,
	}

	reading, err := vitals.ValidateReading(&candidate)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	if err := rs.Vitals.History.AppendReading(deviceID, &reading); err != nil {
		logger.Error("Failed to append reading", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	alerts := vitals.EvaluateReading(&reading)
	if len(alerts) > 0 {
		if err := rs.Vitals.Alert.StoreAlerts(deviceID, alerts); err != nil {
			logger.Warn("Failed to store alerts", zap.String("device_id", deviceID), zap.Error(err))
		}
	}

	if rs.Hub != nil {
		rs.Hub.Publish(deviceID, hub.Envelope{Type: hub.EnvelopeDeviceUpdates, Payload: reading})
		for _, alert := range alerts {
			rs.Hub.Publish(deviceID, hub.Envelope{Type: hub.EnvelopeAlert, Payload: alert})
		}
	}

	c.Status(http.StatusOK)
}

// GetReadings serves the historical-retrieval interface: a bounded,
// ordered snapshot per device. An unknown device is 404, distinct from
// a registered device with no readings yet.
func (rs *RestfulServer) GetReadings(c *gin.Context) {
	logger := common.GetLoggerWith(common.LoggerNameRestfulServer)

	deviceID := c.Param("device_id")

	if !rs.CheckDeviceLimiter(deviceID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	readings, err := rs.Vitals.History.ListReadings(deviceID)
	if err != nil {
		if errors.Is(err, vitals.ErrDeviceNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "device not found"})
			return
		}
		logger.Error("Failed to list readings", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, readings)
}

func (rs *RestfulServer) GetAlerts(c *gin.Context) {
	logger := common.GetLoggerWith(common.LoggerNameRestfulServer)

	deviceID := c.Param("device_id")

	if !rs.CheckDeviceLimiter(deviceID) {
		c.Status(http.StatusTooManyRequests)
		return
	}

	alerts, err := rs.Vitals.Alert.GetDeviceAlerts(deviceID)
	if err != nil {
		logger.Error("Failed to list alerts", zap.String("device_id", deviceID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, alerts)
}

func (rs *RestfulServer) ListDevices(c *gin.Context) {
	logger := common.GetLoggerWith(common.LoggerNameRestfulServer)

	devices, err := rs.Vitals.Device.ListDevices()
	if err != nil {
		logger.Error("Failed to list devices", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.JSON(http.StatusOK, devices)
}

type LimiterRequest struct {
	Rate  float64 `json:"rate"`
	Burst int     `json:"burst"`
}

var limiterRequestSchema = z.Struct(z.Shape{
	"rate":  z.Float64().Required(),
	"burst": z.Int().Required(),
})

func (rs *RestfulServer) PostLimiter(c *gin.Context) {
	deviceID := c.Param("device_id")

	var req LimiterRequest
	if err := limiterRequestSchema.Parse(zhttp.Request(c.Request), &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err})
		return
	}

	rs.SetLimiter(deviceID, req.Rate, req.Burst)

	c.Status(http.StatusOK)
}

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
