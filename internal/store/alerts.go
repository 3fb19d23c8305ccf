package store

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// AlertStore is a concurrent repository of fraud alerts. Defaults for
// absent fields are derived once, on Add; severity and alert type are
// never re-derived afterwards.
type AlertStore struct {
	mu     sync.RWMutex
	alerts map[string]*domain.FraudAlert
}

// NewAlertStore creates an empty alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{
		alerts: make(map[string]*domain.FraudAlert),
	}
}

// Add stores an alert, deriving any absent field, and returns the stored
// record: generated id, now-timestamps, NEW status, empty triggered
// rules, description joined from reasons, alert type from the first
// triggered rule, severity from the risk score.
func (s *AlertStore) Add(alert *domain.FraudAlert) *domain.FraudAlert {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if alert.ID == "" {
		alert.ID = "ALT-" + strings.ToUpper(uuid.New().String()[:8])
	}
	if alert.Timestamp.IsZero() {
		alert.Timestamp = now
	}
	if alert.CreatedAt.IsZero() {
		alert.CreatedAt = now
	}
	if alert.Status == "" {
		alert.Status = domain.AlertStatusNew
	}
	if alert.TriggeredRules == nil {
		alert.TriggeredRules = []string{}
	}
	if alert.Description == "" && len(alert.Reasons) > 0 {
		alert.Description = strings.Join(alert.Reasons, "; ")
	}
	if alert.AlertType == "" && len(alert.TriggeredRules) > 0 {
		alert.AlertType = domain.AlertTypeForRule(alert.TriggeredRules[0])
	}
	if alert.Severity == "" {
		alert.Severity = domain.SeverityForScore(alert.RiskScore)
	}

	stored := cloneAlert(alert)
	s.alerts[stored.ID] = stored
	return cloneAlert(stored)
}

// Get returns the alert with the given id, or nil when absent.
func (s *AlertStore) Get(id string) *domain.FraudAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	alert, ok := s.alerts[id]
	if !ok {
		return nil
	}
	return cloneAlert(alert)
}

// All returns every stored alert. Order is not guaranteed.
func (s *AlertStore) All() []*domain.FraudAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.FraudAlert, 0, len(s.alerts))
	for _, alert := range s.alerts {
		result = append(result, cloneAlert(alert))
	}
	return result
}

// ByStatus returns the alerts whose status exactly matches.
func (s *AlertStore) ByStatus(status string) []*domain.FraudAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.FraudAlert
	for _, alert := range s.alerts {
		if alert.Status == status {
			result = append(result, cloneAlert(alert))
		}
	}
	return result
}

// UpdateStatus sets an alert's status to any caller-supplied value.
// There is no enumerated workflow guard; RESOLVED is not a sink. Returns
// false when the id is unknown.
func (s *AlertStore) UpdateStatus(id, status string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return false
	}
	alert.Status = status
	return true
}

// Resolve sets the alert's status to RESOLVED and attaches the resolution
// text. Re-resolving is permitted; the last write wins. Returns false
// when the id is unknown.
func (s *AlertStore) Resolve(id, resolution string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	alert, ok := s.alerts[id]
	if !ok {
		return false
	}
	alert.Status = domain.AlertStatusResolved
	alert.Resolution = resolution
	return true
}

// Delete removes an alert. Returns false when the id is unknown.
func (s *AlertStore) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.alerts[id]; !ok {
		return false
	}
	delete(s.alerts, id)
	return true
}

// Count returns the number of stored alerts.
func (s *AlertStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.alerts)
}

// Clear removes all alerts.
func (s *AlertStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = make(map[string]*domain.FraudAlert)
}

func cloneAlert(alert *domain.FraudAlert) *domain.FraudAlert {
	c := *alert
	if alert.Reasons != nil {
		c.Reasons = append([]string(nil), alert.Reasons...)
	}
	if alert.TriggeredRules != nil {
		c.TriggeredRules = append([]string(nil), alert.TriggeredRules...)
	}
	return &c
}
