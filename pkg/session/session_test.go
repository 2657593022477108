package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
	_ "vitalwatch.dev/vitals-telemetry-service/pkg/testing"
)

type fakeConn struct {
	envs chan Envelope
}

func newFakeConn() *fakeConn {
	return &fakeConn{envs: make(chan Envelope, 32)}
}

func (c *fakeConn) ReadEnvelope() (Envelope, error) {
	env, ok := <-c.envs
	if !ok {
		return Envelope{}, errors.New("link lost")
	}
	return env, nil
}

func (c *fakeConn) Close() error { return nil }

func (c *fakeConn) pushReading(t *testing.T, reading models.Reading) {
	t.Helper()
	payload, err := json.Marshal(reading)
	require.NoError(t, err)
	c.envs <- Envelope{Type: EnvelopeDeviceUpdates, Payload: payload}
}

// fakeTransport fails the first failN dials, then hands out fresh
// fake connections.
type fakeTransport struct {
	failN int32
	dials int32

	mu    sync.Mutex
	conns []*fakeConn
}

func (tr *fakeTransport) Dial(ctx context.Context, url string) (Conn, error) {
	n := atomic.AddInt32(&tr.dials, 1)
	if n <= atomic.LoadInt32(&tr.failN) {
		return nil, errors.New("connection refused")
	}
	conn := newFakeConn()
	tr.mu.Lock()
	tr.conns = append(tr.conns, conn)
	tr.mu.Unlock()
	return conn, nil
}

func (tr *fakeTransport) dialCount() int32 {
	return atomic.LoadInt32(&tr.dials)
}

func (tr *fakeTransport) lastConn() *fakeConn {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if len(tr.conns) == 0 {
		return nil
	}
	return tr.conns[len(tr.conns)-1]
}

func TestSession_ConnectSuccess(t *testing.T) {
	common.SetTestLoggerNop()

	tr := &fakeTransport{}
	s := New(Config{URL: "ws://test"}, tr, Callbacks{})
	defer s.Close()

	s.Start()

	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseConnected
	}, 2*time.Second, 10*time.Millisecond)

	state := s.State()
	assert.Equal(t, 0, state.Attempt)
	assert.Equal(t, "Connected successfully", state.LastMessage)
}

func TestSession_ReconnectExhaustion(t *testing.T) {
	common.SetTestLoggerNop()

	tr := &fakeTransport{failN: 1000} // every dial fails
	s := New(Config{
		URL:                  "ws://test",
		ReconnectDelay:       20 * time.Millisecond,
		MaxReconnectAttempts: 5,
	}, tr, Callbacks{})
	defer s.Close()

	s.Start()

	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseDisconnected
	}, 5*time.Second, 10*time.Millisecond)

	state := s.State()
	assert.Equal(t, 5, state.Attempt)
	assert.Contains(t, state.LastMessage, "Maximum reconnection attempts reached")

	// terminal is terminal: no further dial is ever scheduled
	dialsAtExhaustion := tr.dialCount()
	assert.Equal(t, int32(6), dialsAtExhaustion) // initial + 5 reconnects
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, dialsAtExhaustion, tr.dialCount())
}

func TestSession_ReconnectThenRecover(t *testing.T) {
	common.SetTestLoggerNop()

	tr := &fakeTransport{failN: 2} // first two dials fail
	s := New(Config{
		URL:            "ws://test",
		ReconnectDelay: 20 * time.Millisecond,
	}, tr, Callbacks{})
	defer s.Close()

	s.Start()

	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseConnected
	}, 2*time.Second, 10*time.Millisecond)

	// attempt resets to 0 on every successful connection
	assert.Equal(t, 0, s.State().Attempt)
	assert.Equal(t, int32(3), tr.dialCount())
}

func TestSession_LinkLossTriggersReconnect(t *testing.T) {
	common.SetTestLoggerNop()

	var messages []string
	var mu sync.Mutex

	tr := &fakeTransport{}
	s := New(Config{
		URL:            "ws://test",
		ReconnectDelay: 20 * time.Millisecond,
	}, tr, Callbacks{
		OnStatus: func(connected bool, message string) {
			mu.Lock()
			messages = append(messages, message)
			mu.Unlock()
		},
	})
	defer s.Close()

	s.Start()

	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseConnected
	}, 2*time.Second, 10*time.Millisecond)

	// sever the link, the session reconnects on its own
	close(tr.lastConn().envs)

	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseConnected && tr.dialCount() == 2
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	joined := ""
	for _, m := range messages {
		joined += m + "\n"
	}
	assert.Contains(t, joined, "Disconnected: link lost")
	assert.Contains(t, joined, "Attempting to reconnect (1/5)")
}

func TestSession_ViewWindowBounded(t *testing.T) {
	common.SetTestLoggerNop()

	tr := &fakeTransport{}
	s := New(Config{URL: "ws://test", ViewWindow: 3}, tr, Callbacks{})
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseConnected
	}, 2*time.Second, 10*time.Millisecond)

	conn := tr.lastConn()
	base := time.Now().Truncate(time.Second)
	for i := 0; i < 5; i++ {
		conn.pushReading(t, models.Reading{
			HeartRate:   float64(70 + i),
			Temperature: 37,
			OxygenLevel: 98,
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		})
	}

	require.Eventually(t, func() bool {
		return len(s.Readings()) == 3
	}, 2*time.Second, 10*time.Millisecond)

	readings := s.Readings()
	assert.Equal(t, 72.0, readings[0].HeartRate)
	assert.Equal(t, 74.0, readings[2].HeartRate)
}

func TestSession_ImplausiblePushedReadingDropped(t *testing.T) {
	common.SetTestLoggerNop()

	tr := &fakeTransport{}
	s := New(Config{URL: "ws://test"}, tr, Callbacks{})
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseConnected
	}, 2*time.Second, 10*time.Millisecond)

	conn := tr.lastConn()
	conn.pushReading(t, models.Reading{HeartRate: 210, Temperature: 37, OxygenLevel: 98})
	conn.pushReading(t, models.Reading{HeartRate: 75, Temperature: 37, OxygenLevel: 98})

	require.Eventually(t, func() bool {
		return len(s.Readings()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// the implausible candidate was dropped wholesale
	assert.Equal(t, 75.0, s.Readings()[0].HeartRate)
	assert.Empty(t, s.ActiveAlerts())
}

func TestSession_WarningAlertExpires(t *testing.T) {
	common.SetTestLoggerNop()

	tr := &fakeTransport{}
	s := New(Config{URL: "ws://test", WarningTTL: 50 * time.Millisecond}, tr, Callbacks{})
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseConnected
	}, 2*time.Second, 10*time.Millisecond)

	tr.lastConn().pushReading(t, models.Reading{HeartRate: 130, Temperature: 37, OxygenLevel: 98})

	require.Eventually(t, func() bool {
		return len(s.ActiveAlerts()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, models.AlertSeverityWarning, s.ActiveAlerts()[0].Severity)

	// not dismissed, removed by TTL alone
	require.Eventually(t, func() bool {
		return len(s.ActiveAlerts()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_CriticalAlertPersistsUntilDismissed(t *testing.T) {
	common.SetTestLoggerNop()

	tr := &fakeTransport{}
	s := New(Config{URL: "ws://test", WarningTTL: 50 * time.Millisecond}, tr, Callbacks{})
	defer s.Close()

	s.Start()
	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseConnected
	}, 2*time.Second, 10*time.Millisecond)

	tr.lastConn().pushReading(t, models.Reading{HeartRate: 75, Temperature: 37, OxygenLevel: 85})

	require.Eventually(t, func() bool {
		return len(s.ActiveAlerts()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	alert := s.ActiveAlerts()[0]
	require.Equal(t, models.AlertSeverityCritical, alert.Severity)

	// well past the warning TTL, still present
	time.Sleep(150 * time.Millisecond)
	require.Len(t, s.ActiveAlerts(), 1)

	s.DismissAlert(alert.ID)
	require.Eventually(t, func() bool {
		return len(s.ActiveAlerts()) == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSession_CloseCancelsPendingReconnect(t *testing.T) {
	common.SetTestLoggerNop()

	tr := &fakeTransport{failN: 1000}
	s := New(Config{
		URL:            "ws://test",
		ReconnectDelay: 100 * time.Millisecond,
	}, tr, Callbacks{})

	s.Start()

	require.Eventually(t, func() bool {
		return s.State().Phase == PhaseReconnecting
	}, 2*time.Second, 10*time.Millisecond)

	dialsBeforeClose := tr.dialCount()
	s.Close()

	// no stray reconnect after disposal
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, dialsBeforeClose, tr.dialCount())
}
