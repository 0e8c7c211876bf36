package monitor

import (
	"sync"
	"time"
)

// FitMonitor tracks analytics fit health and failures. Fits are
// demand-driven, so a server that has never fitted is still healthy;
// repeated failures are not.
type FitMonitor struct {
	mu                sync.RWMutex
	lastSuccess       time.Time
	lastAttempt       time.Time
	lastDuration      time.Duration
	consecutiveErrors int
	lastError         string
}

// RecordSuccess records a successful fit.
func (fm *FitMonitor) RecordSuccess(duration time.Duration) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.lastSuccess = time.Now()
	fm.lastAttempt = time.Now()
	fm.lastDuration = duration
	fm.consecutiveErrors = 0
	fm.lastError = ""
}

// RecordFailure records a failed fit.
func (fm *FitMonitor) RecordFailure(err error) {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	fm.lastAttempt = time.Now()
	fm.consecutiveErrors++
	if err != nil {
		fm.lastError = err.Error()
	}
}

// IsHealthy returns true unless fits are failing repeatedly.
func (fm *FitMonitor) IsHealthy() bool {
	fm.mu.RLock()
	defer fm.mu.RUnlock()
	return fm.consecutiveErrors <= 3
}

// FitHealth is the fit portion of the health check response.
type FitHealth struct {
	Healthy           bool   `json:"healthy"`
	LastSuccess       string `json:"last_success,omitempty"`
	TimeSinceSuccess  string `json:"time_since_success,omitempty"`
	LastAttempt       string `json:"last_attempt,omitempty"`
	LastDuration      string `json:"last_duration,omitempty"`
	ConsecutiveErrors int    `json:"consecutive_errors,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// Status returns current fit status for health checks.
func (fm *FitMonitor) Status() FitHealth {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	status := FitHealth{
		Healthy: fm.consecutiveErrors <= 3,
	}

	if !fm.lastSuccess.IsZero() {
		status.LastSuccess = fm.lastSuccess.Format(time.RFC3339)
		status.TimeSinceSuccess = time.Since(fm.lastSuccess).String()
		status.LastDuration = fm.lastDuration.String()
	}
	if !fm.lastAttempt.IsZero() {
		status.LastAttempt = fm.lastAttempt.Format(time.RFC3339)
	}
	if fm.consecutiveErrors > 0 {
		status.ConsecutiveErrors = fm.consecutiveErrors
		status.LastError = fm.lastError
	}
	return status
}
