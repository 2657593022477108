package hub

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	_ "vitalwatch.dev/vitals-telemetry-service/pkg/testing"
)

func TestPublish_FanOutInOrder(t *testing.T) {
	common.SetTestLoggerNop()

	h := NewHub()
	deviceID := uuid.NewString()

	sub1 := h.Subscribe(deviceID)
	sub2 := h.Subscribe(deviceID)
	assert.Equal(t, 2, h.SubscriberCount(deviceID))

	h.Publish(deviceID, Envelope{Type: EnvelopeDeviceUpdates, Payload: "first"})
	h.Publish(deviceID, Envelope{Type: EnvelopeDeviceUpdates, Payload: "second"})

	for _, sub := range []*Subscriber{sub1, sub2} {
		env := <-sub.C
		assert.Equal(t, "first", env.Payload)
		env = <-sub.C
		assert.Equal(t, "second", env.Payload)
	}
}

func TestPublish_DeviceIsolation(t *testing.T) {
	common.SetTestLoggerNop()

	h := NewHub()
	deviceA := uuid.NewString()
	deviceB := uuid.NewString()

	subA := h.Subscribe(deviceA)
	subB := h.Subscribe(deviceB)

	h.Publish(deviceA, Envelope{Type: EnvelopeDeviceUpdates, Payload: "for A"})

	env := <-subA.C
	assert.Equal(t, "for A", env.Payload)

	select {
	case env := <-subB.C:
		t.Fatalf("subscriber of another device received %v", env)
	default:
	}
}

func TestPublish_LateSubscriberMissesEarlier(t *testing.T) {
	common.SetTestLoggerNop()

	h := NewHub()
	deviceID := uuid.NewString()

	h.Publish(deviceID, Envelope{Type: EnvelopeDeviceUpdates, Payload: "before"})

	sub := h.Subscribe(deviceID)
	h.Publish(deviceID, Envelope{Type: EnvelopeDeviceUpdates, Payload: "after"})

	env := <-sub.C
	assert.Equal(t, "after", env.Payload)

	select {
	case env := <-sub.C:
		t.Fatalf("late subscriber received retroactive envelope %v", env)
	default:
	}
}

func TestPublish_SlowSubscriberDropped(t *testing.T) {
	common.SetTestLoggerNop()

	h := NewHub()
	h.BufferSize = 1
	deviceID := uuid.NewString()

	slow := h.Subscribe(deviceID)
	healthy := h.Subscribe(deviceID)

	// fill the slow subscriber's buffer, then publish once more
	h.Publish(deviceID, Envelope{Type: EnvelopeDeviceUpdates, Payload: "one"})
	h.Publish(deviceID, Envelope{Type: EnvelopeDeviceUpdates, Payload: "two"})

	// the healthy subscriber drained nothing either, but buffer size 1
	// means both are dropped after the second publish; drain what made
	// it through and verify the channels were closed
	assert.Equal(t, 0, h.SubscriberCount(deviceID))

	for _, sub := range []*Subscriber{slow, healthy} {
		env, ok := <-sub.C
		require.True(t, ok)
		assert.Equal(t, "one", env.Payload)
		_, ok = <-sub.C
		assert.False(t, ok)
	}
}

func TestPublish_SlowSubscriberDoesNotBlockOthers(t *testing.T) {
	common.SetTestLoggerNop()

	h := NewHub()
	h.BufferSize = 1
	deviceID := uuid.NewString()

	slow := h.Subscribe(deviceID)
	healthy := h.Subscribe(deviceID)

	h.Publish(deviceID, Envelope{Type: EnvelopeDeviceUpdates, Payload: "one"})

	// drain healthy so only slow is saturated
	env := <-healthy.C
	assert.Equal(t, "one", env.Payload)

	h.Publish(deviceID, Envelope{Type: EnvelopeDeviceUpdates, Payload: "two"})

	env = <-healthy.C
	assert.Equal(t, "two", env.Payload)

	// slow got dropped, healthy is still registered
	assert.Equal(t, 1, h.SubscriberCount(deviceID))
	env, ok := <-slow.C
	require.True(t, ok)
	assert.Equal(t, "one", env.Payload)
	_, ok = <-slow.C
	assert.False(t, ok)
}

func TestUnsubscribe_ClosesChannelOnce(t *testing.T) {
	common.SetTestLoggerNop()

	h := NewHub()
	deviceID := uuid.NewString()

	sub := h.Subscribe(deviceID)
	h.Unsubscribe(sub)
	// second unsubscribe must be a no-op, not a double close
	h.Unsubscribe(sub)

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, h.SubscriberCount(deviceID))
}
