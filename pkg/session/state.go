package session

import "fmt"

type Phase string

const (
	PhaseConnecting   Phase = "connecting"
	PhaseConnected    Phase = "connected"
	PhaseReconnecting Phase = "reconnecting"
	// PhaseDisconnected is terminal: no automatic transition leads out
	// of it, recovery needs a fresh session.
	PhaseDisconnected Phase = "disconnected"
)

// ConnectionState is a fixed-field record updated only through the
// transition functions below, one per state-machine edge.
type ConnectionState struct {
	Phase       Phase
	Attempt     int
	LastMessage string
}

func (s *Session) transitionConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Phase = PhaseConnected
	s.state.Attempt = 0
	s.state.LastMessage = "Connected successfully"
}

func (s *Session) transitionReconnecting(reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Phase = PhaseReconnecting
	s.state.LastMessage = fmt.Sprintf("Disconnected: %s", reason)
}

// transitionConnecting is the reconnect edge: it runs when the delay
// timer fires and is the only place the attempt counter grows.
func (s *Session) transitionConnecting() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Phase = PhaseConnecting
	s.state.Attempt++
	s.state.LastMessage = fmt.Sprintf("Attempting to reconnect (%d/%d)",
		s.state.Attempt, s.cfg.maxReconnectAttempts())
}

func (s *Session) transitionTerminal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Phase = PhaseDisconnected
	s.state.LastMessage = "Maximum reconnection attempts reached. Please refresh the page."
}

// State returns a snapshot safe to read outside the event loop.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
