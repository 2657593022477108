package ingest

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/hub"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
	"vitalwatch.dev/vitals-telemetry-service/pkg/vitals"
)

// Manager refcounts ingestion loops per device. The first session for
// a device starts its loop and flips it online; when the last session
// releases, the loop is cancelled and the device goes offline. Loops
// for different devices run independently.
type Manager struct {
	Vitals   *vitals.Vitals
	Hub      *hub.Hub
	Source   Source
	Bridge   *hub.RedisBridge
	Interval time.Duration

	mu     sync.Mutex
	active map[string]*activeLoop
}

type activeLoop struct {
	cancel context.CancelFunc
	refs   int
}

func NewManager(v *vitals.Vitals, h *hub.Hub, source Source) *Manager {
	return &Manager{
		Vitals: v,
		Hub:    h,
		Source: source,
		active: make(map[string]*activeLoop),
	}
}

func (m *Manager) Acquire(deviceID string) error {
	logger := common.GetLoggerWith(common.LoggerNameIngestLoop)

	m.mu.Lock()
	defer m.mu.Unlock()

	if loop, exists := m.active[deviceID]; exists {
		loop.refs++
		return nil
	}

	if err := m.Vitals.Device.EnsureDevice(deviceID); err != nil {
		return err
	}
	if err := m.Vitals.Device.SetStatus(deviceID, models.DeviceStatusOnline); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	runner := &Runner{
		DeviceID: deviceID,
		Source:   m.Source,
		Vitals:   m.Vitals,
		Hub:      m.Hub,
		Bridge:   m.Bridge,
		Interval: m.Interval,
	}
	go runner.Run(ctx)

	m.active[deviceID] = &activeLoop{cancel: cancel, refs: 1}

	logger.Info("Started ingestion loop for device", zap.String("device_id", deviceID))
	return nil
}

func (m *Manager) Release(deviceID string) {
	logger := common.GetLoggerWith(common.LoggerNameIngestLoop)

	m.mu.Lock()
	defer m.mu.Unlock()

	loop, exists := m.active[deviceID]
	if !exists {
		return
	}

	loop.refs--
	if loop.refs > 0 {
		return
	}

	loop.cancel()
	delete(m.active, deviceID)

	if err := m.Vitals.Device.SetStatus(deviceID, models.DeviceStatusOffline); err != nil {
		logger.Warn("Failed to mark device offline", zap.String("device_id", deviceID), zap.Error(err))
	}

	logger.Info("Stopped ingestion loop for device", zap.String("device_id", deviceID))
}

func (m *Manager) ActiveDevices() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for deviceID, loop := range m.active {
		loop.cancel()
		delete(m.active, deviceID)
	}
}
