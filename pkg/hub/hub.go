package hub

import (
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
)

type EnvelopeType string

const (
	EnvelopeDeviceUpdates EnvelopeType = "deviceUpdates"
	EnvelopeAlert         EnvelopeType = "alert"
	EnvelopeStatus        EnvelopeType = "status"
)

type Envelope struct {
	Type    EnvelopeType `json:"type"`
	Payload any          `json:"payload"`
}

// Subscriber is one session's receive side. C is closed by the hub on
// unsubscribe, or when the subscriber falls too far behind.
type Subscriber struct {
	ID       string
	DeviceID string
	C        chan Envelope
}

const defaultSubscriberBuffer = 16

type topic struct {
	mu   sync.Mutex
	subs map[*Subscriber]bool
}

// Hub fans validated readings out to all sessions subscribed to a
// device. Delivery is ordered per device and independent per session:
// a slow session is dropped rather than blocking the others. Sessions
// subscribing after a publish never receive it retroactively.
type Hub struct {
	mu         sync.RWMutex
	topics     map[string]*topic
	BufferSize int
}

func NewHub() *Hub {
	return &Hub{
		topics: make(map[string]*topic),
	}
}

func (h *Hub) bufferSize() int {
	if h.BufferSize > 0 {
		return h.BufferSize
	}
	return defaultSubscriberBuffer
}

func (h *Hub) topicFor(deviceID string) *topic {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, exists := h.topics[deviceID]
	if !exists {
		t = &topic{subs: make(map[*Subscriber]bool)}
		h.topics[deviceID] = t
	}
	return t
}

func (h *Hub) Subscribe(deviceID string) *Subscriber {
	logger := common.GetLoggerWith(common.LoggerNameBroadcastHub)

	sub := &Subscriber{
		ID:       uuid.NewString(),
		DeviceID: deviceID,
		C:        make(chan Envelope, h.bufferSize()),
	}

	t := h.topicFor(deviceID)
	t.mu.Lock()
	t.subs[sub] = true
	t.mu.Unlock()

	logger.Info("Session subscribed",
		zap.String("device_id", deviceID),
		zap.String("subscriber_id", sub.ID))
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	logger := common.GetLoggerWith(common.LoggerNameBroadcastHub)

	t := h.topicFor(sub.DeviceID)
	t.mu.Lock()
	if t.subs[sub] {
		delete(t.subs, sub)
		close(sub.C)
	}
	t.mu.Unlock()

	logger.Info("Session unsubscribed",
		zap.String("device_id", sub.DeviceID),
		zap.String("subscriber_id", sub.ID))
}

// Publish delivers the envelope exactly once to every session
// currently subscribed to deviceID. The per-topic lock keeps delivery
// ordered per device; a full subscriber buffer means the session is
// dropped so the rest keep receiving.
func (h *Hub) Publish(deviceID string, env Envelope) {
	logger := common.GetLoggerWith(common.LoggerNameBroadcastHub)

	t := h.topicFor(deviceID)
	t.mu.Lock()
	defer t.mu.Unlock()

	for sub := range t.subs {
		select {
		case sub.C <- env:
		default:
			delete(t.subs, sub)
			close(sub.C)
			logger.Warn("Dropping slow subscriber",
				zap.String("device_id", deviceID),
				zap.String("subscriber_id", sub.ID))
		}
	}
}

func (h *Hub) SubscriberCount(deviceID string) int {
	t := h.topicFor(deviceID)
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}
