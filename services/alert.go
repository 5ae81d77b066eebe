package services

import (
	"sync"
	"time"

	"signage-server/models"
)

// AlertState tracks the active emergency alert, if any, so that
// displays connecting after an alert was raised still receive it in
// their initial snapshot.
type AlertState struct {
	mu     sync.RWMutex
	active *models.Alert
}

func NewAlertState() *AlertState {
	return &AlertState{}
}

// Raise activates an alert, replacing any previous one.
func (a *AlertState) Raise(message, level string) models.Alert {
	if level == "" {
		level = "critical"
	}
	alert := models.Alert{
		Message:  message,
		Level:    level,
		RaisedAt: time.Now(),
	}

	a.mu.Lock()
	a.active = &alert
	a.mu.Unlock()
	return alert
}

// Cancel clears the active alert. Returns false when none was active.
func (a *AlertState) Cancel() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active == nil {
		return false
	}
	a.active = nil
	return true
}

// Active returns a copy of the active alert, or nil.
func (a *AlertState) Active() *models.Alert {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.active == nil {
		return nil
	}
	copy := *a.active
	return &copy
}
