package session

import (
	"time"

	"go.uber.org/zap"
	"vitalwatch.dev/vitals-telemetry-service/pkg/models"
)

// addAlert runs on the event loop. Warning alerts auto-expire after
// the TTL unless dismissed sooner; critical alerts stay until the
// consumer dismisses them explicitly.
func (s *Session) addAlert(alert models.Alert) {
	s.mu.Lock()
	s.alerts = append(s.alerts, alert)
	s.mu.Unlock()

	if alert.AutoExpire {
		id := alert.ID
		s.alertTimers[id] = time.AfterFunc(s.cfg.warningTTL(), func() {
			s.post(event{kind: evAlertExpired, id: id})
		})
	}

	s.logger.Info("Alert raised",
		zap.String("alert_id", alert.ID),
		zap.String("severity", string(alert.Severity)),
		zap.String("title", alert.Title))

	if s.cb.OnAlert != nil {
		s.cb.OnAlert(alert)
	}
}

func (s *Session) expireAlert(id string) {
	delete(s.alertTimers, id)
	s.removeAlert(id)
}

func (s *Session) removeAlert(id string) {
	if timer, exists := s.alertTimers[id]; exists {
		timer.Stop()
		delete(s.alertTimers, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, alert := range s.alerts {
		if alert.ID == id {
			s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
			return
		}
	}
}

// ActiveAlerts returns a snapshot of the active set in arrival order.
func (s *Session) ActiveAlerts() []models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Alert, len(s.alerts))
	copy(out, s.alerts)
	return out
}
