package session

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"
	"vitalwatch.dev/vitals-telemetry-service/pkg/common"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
	"vitalwatch.dev/vitals-telemetry-service/pkg/vitals"
)

const (
	DefaultReconnectDelay       = 5 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultWarningTTL           = 5 * time.Second
	// DefaultViewWindow bounds the presentation buffer. Deliberately a
	// separate knob from the durable store capacity.
	DefaultViewWindow = 10
)

type Config struct {
	URL                  string
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	WarningTTL           time.Duration
	ViewWindow           int
}

func (c Config) reconnectDelay() time.Duration {
	if c.ReconnectDelay > 0 {
		return c.ReconnectDelay
	}
	return DefaultReconnectDelay
}

func (c Config) maxReconnectAttempts() int {
	if c.MaxReconnectAttempts > 0 {
		return c.MaxReconnectAttempts
	}
	return DefaultMaxReconnectAttempts
}

func (c Config) warningTTL() time.Duration {
	if c.WarningTTL > 0 {
		return c.WarningTTL
	}
	return DefaultWarningTTL
}

func (c Config) viewWindow() int {
	if c.ViewWindow > 0 {
		return c.ViewWindow
	}
	return DefaultViewWindow
}

// Callbacks surface session activity to the presentation layer. All
// callbacks run on the event-loop goroutine, one at a time.
type Callbacks struct {
	OnReading func(models.Reading)
	OnAlert   func(models.Alert)
	OnStatus  func(connected bool, message string)
}

type eventKind int

const (
	evConnected eventKind = iota
	evConnectError
	evDisconnected
	evEnvelope
	evReconnectTimer
	evAlertExpired
	evDismissAlert
)

type event struct {
	kind eventKind
	gen  int
	conn Conn
	err  error
	env  Envelope
	id   string
}

// Session owns one logical subscriber connection: the connection state
// machine, the bounded reconnection policy and the active-alert set.
// It is explicitly constructed and torn down by its caller; there is
// no process-wide instance. All state transitions happen on a single
// event-loop goroutine, so they need no locking of their own; the
// mutex only guards the snapshots handed out to other goroutines.
type Session struct {
	cfg       Config
	transport Transport
	cb        Callbacks
	logger    *zap.Logger

	events chan event
	ctx    context.Context
	cancel context.CancelFunc
	closed sync.Once

	// event-loop-owned
	gen            int
	conn           Conn
	reconnectTimer *time.Timer
	alertTimers    map[string]*time.Timer

	mu       sync.Mutex
	state    ConnectionState
	readings []models.Reading
	alerts   []models.Alert
}

func New(cfg Config, transport Transport, cb Callbacks) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		cfg:         cfg,
		transport:   transport,
		cb:          cb,
		logger:      common.GetLoggerWith(common.LoggerNameSubscription),
		events:      make(chan event, 32),
		ctx:         ctx,
		cancel:      cancel,
		gen:         1,
		alertTimers: map[string]*time.Timer{},
		state: ConnectionState{
			Phase:       PhaseConnecting,
			LastMessage: "Connecting",
		},
	}
}

// Start launches the event loop and the first connection attempt.
func (s *Session) Start() {
	s.dial()
	go s.run()
}

// Close tears the session down: the pending reconnect timer is
// cancelled so no stray reconnect fires after disposal.
func (s *Session) Close() {
	s.closed.Do(func() {
		s.cancel()
	})
}

// DismissAlert removes an alert from the active set regardless of
// severity; it is the only removal path for critical alerts.
func (s *Session) DismissAlert(id string) {
	s.post(event{kind: evDismissAlert, id: id})
}

// post hands an event to the loop without blocking a torn-down session.
func (s *Session) post(ev event) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) run() {
	for {
		select {
		case <-s.ctx.Done():
			s.cleanup()
			return
		case ev := <-s.events:
			s.handle(ev)
		}
	}
}

func (s *Session) cleanup() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	for id, timer := range s.alertTimers {
		timer.Stop()
		delete(s.alertTimers, id)
	}
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
}

func (s *Session) handle(ev event) {
	// Events raised by a previous connection generation are stale; a
	// reader that lost the race with a reconnect must not disturb the
	// current link.
	if ev.gen != 0 && ev.gen != s.gen {
		return
	}

	switch ev.kind {
	case evConnected:
		s.handleConnected(ev.conn)
	case evConnectError:
		s.handleLinkFailure("Connection error: " + ev.err.Error())
	case evDisconnected:
		s.handleLinkFailure(ev.err.Error())
	case evEnvelope:
		s.handleEnvelope(ev.env)
	case evReconnectTimer:
		s.handleReconnectTimer()
	case evAlertExpired:
		s.expireAlert(ev.id)
	case evDismissAlert:
		s.removeAlert(ev.id)
	}
}

// dial starts one handshake for the current generation. The result
// comes back as an event, keeping the loop single-threaded.
func (s *Session) dial() {
	gen := s.gen
	go func() {
		conn, err := s.transport.Dial(s.ctx, s.cfg.URL)
		if err != nil {
			s.post(event{kind: evConnectError, gen: gen, err: err})
			return
		}
		s.post(event{kind: evConnected, gen: gen, conn: conn})
	}()
}

func (s *Session) handleConnected(conn Conn) {
	s.conn = conn
	s.transitionConnected()
	s.logger.Info("Session connected", zap.String("url", s.cfg.URL))
	s.notifyStatus(true, s.State().LastMessage)

	gen := s.gen
	go func() {
		for {
			env, err := conn.ReadEnvelope()
			if err != nil {
				s.post(event{kind: evDisconnected, gen: gen, err: err})
				return
			}
			s.post(event{kind: evEnvelope, gen: gen, env: env})
		}
	}()
}

// handleLinkFailure covers both handshake failures and link loss. The
// reconnect policy lives here and nowhere else.
func (s *Session) handleLinkFailure(reason string) {
	if s.State().Phase == PhaseDisconnected {
		return
	}

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}

	if s.State().Attempt >= s.cfg.maxReconnectAttempts() {
		s.transitionTerminal()
		s.logger.Warn("Reconnection attempts exhausted", zap.String("url", s.cfg.URL))
		s.notifyStatus(false, s.State().LastMessage)
		return
	}

	s.transitionReconnecting(reason)
	s.logger.Warn("Session link lost", zap.String("reason", reason))
	s.notifyStatus(false, s.State().LastMessage)

	s.reconnectTimer = time.AfterFunc(s.cfg.reconnectDelay(), func() {
		s.post(event{kind: evReconnectTimer})
	})
}

func (s *Session) handleReconnectTimer() {
	if s.State().Phase != PhaseReconnecting {
		return
	}
	s.reconnectTimer = nil
	s.gen++
	s.transitionConnecting()
	s.notifyStatus(false, s.State().LastMessage)
	s.dial()
}

func (s *Session) handleEnvelope(env Envelope) {
	switch env.Type {
	case EnvelopeDeviceUpdates:
		var candidate models.Reading
		if err := json.Unmarshal(env.Payload, &candidate); err != nil {
			s.logger.Warn("Malformed reading payload", zap.Error(err))
			return
		}

		// Pushed payloads go through the same validity and alert logic
		// as server-side ingestion before anything is displayed.
		reading, err := vitals.ValidateReading(&candidate)
		if err != nil {
			s.logger.Debug("Rejected pushed reading", zap.Error(err))
			return
		}

		s.appendReading(reading)
		if s.cb.OnReading != nil {
			s.cb.OnReading(reading)
		}

		for _, alert := range vitals.EvaluateReading(&reading) {
			s.addAlert(alert)
		}
	case EnvelopeAlert:
		// Server-evaluated alerts duplicate the local evaluation above;
		// the local set stays the single authority for the active list.
		s.logger.Debug("Server alert envelope received", zap.ByteString("payload", env.Payload))
	case EnvelopeStatus:
		var msg string
		if err := json.Unmarshal(env.Payload, &msg); err == nil {
			s.notifyStatus(s.State().Phase == PhaseConnected, msg)
		}
	default:
		s.logger.Debug("Unknown envelope type", zap.String("type", env.Type))
	}
}

func (s *Session) appendReading(reading models.Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, reading)
	if window := s.cfg.viewWindow(); len(s.readings) > window {
		s.readings = s.readings[len(s.readings)-window:]
	}
}

// Readings returns the presentation window, oldest first.
func (s *Session) Readings() []models.Reading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

func (s *Session) notifyStatus(connected bool, message string) {
	if s.cb.OnStatus != nil {
		s.cb.OnStatus(connected, message)
	}
}
