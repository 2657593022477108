package ingest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/hub"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
	_ "vitalwatch.dev/vitals-telemetry-service/pkg/testing"
)

func deviceStatus(t *testing.T, m *Manager, deviceID string) models.DeviceStatus {
	t.Helper()

	devices, err := m.Vitals.Device.ListDevices()
	require.NoError(t, err)
	for _, device := range devices {
		if device.DeviceID == deviceID {
			return device.Status
		}
	}
	t.Fatalf("device %s not registered", deviceID)
	return ""
}

func TestManager_AcquireReleaseRefcount(t *testing.T) {
	common.SetTestLoggerNop()

	m := NewManager(newTestVitals(t), hub.NewHub(), NewSimulatedSource())
	m.Interval = time.Hour // keep the loop idle during the test
	defer m.Shutdown()

	deviceID := "ward-7-bed-1"

	require.NoError(t, m.Acquire(deviceID))
	assert.Equal(t, 1, m.ActiveDevices())
	assert.Equal(t, models.DeviceStatusOnline, deviceStatus(t, m, deviceID))

	// a second viewer shares the loop instead of starting another
	require.NoError(t, m.Acquire(deviceID))
	assert.Equal(t, 1, m.ActiveDevices())

	m.Release(deviceID)
	assert.Equal(t, 1, m.ActiveDevices())
	assert.Equal(t, models.DeviceStatusOnline, deviceStatus(t, m, deviceID))

	m.Release(deviceID)
	assert.Equal(t, 0, m.ActiveDevices())
	assert.Equal(t, models.DeviceStatusOffline, deviceStatus(t, m, deviceID))
}

func TestManager_ReleaseUnknownDeviceIsNoop(t *testing.T) {
	common.SetTestLoggerNop()

	m := NewManager(newTestVitals(t), hub.NewHub(), NewSimulatedSource())
	m.Interval = time.Hour
	defer m.Shutdown()

	m.Release("never-acquired")
	assert.Equal(t, 0, m.ActiveDevices())
}

func TestManager_DevicesRunIndependently(t *testing.T) {
	common.SetTestLoggerNop()

	m := NewManager(newTestVitals(t), hub.NewHub(), NewSimulatedSource())
	m.Interval = time.Hour
	defer m.Shutdown()

	require.NoError(t, m.Acquire("ward-7-bed-2"))
	require.NoError(t, m.Acquire("ward-7-bed-3"))
	assert.Equal(t, 2, m.ActiveDevices())

	m.Release("ward-7-bed-2")
	assert.Equal(t, 1, m.ActiveDevices())
	assert.Equal(t, models.DeviceStatusOffline, deviceStatus(t, m, "ward-7-bed-2"))
	assert.Equal(t, models.DeviceStatusOnline, deviceStatus(t, m, "ward-7-bed-3"))
}

func TestManager_Shutdown(t *testing.T) {
	common.SetTestLoggerNop()

	m := NewManager(newTestVitals(t), hub.NewHub(), NewSimulatedSource())
	m.Interval = time.Hour

	require.NoError(t, m.Acquire("ward-7-bed-4"))
	require.NoError(t, m.Acquire("ward-7-bed-5"))

	m.Shutdown()
	assert.Equal(t, 0, m.ActiveDevices())
}
