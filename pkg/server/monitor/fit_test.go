package monitor

import (
	"errors"
	"testing"
	"time"
)

func TestFitMonitor_RecordSuccess(t *testing.T) {
	fm := &FitMonitor{}
	fm.RecordSuccess(120 * time.Millisecond)

	status := fm.Status()
	if !status.Healthy {
		t.Error("Status should be healthy after success")
	}
	if status.ConsecutiveErrors != 0 {
		t.Errorf("ConsecutiveErrors = %d, want 0", status.ConsecutiveErrors)
	}
	if status.LastError != "" {
		t.Errorf("LastError = %q, want empty", status.LastError)
	}
	if status.LastDuration == "" {
		t.Error("LastDuration should be set after success")
	}
}

func TestFitMonitor_RecordFailure(t *testing.T) {
	fm := &FitMonitor{}
	fm.RecordFailure(errors.New("storage unavailable"))

	status := fm.Status()
	if status.ConsecutiveErrors != 1 {
		t.Errorf("ConsecutiveErrors = %d, want 1", status.ConsecutiveErrors)
	}
	if status.LastError != "storage unavailable" {
		t.Errorf("LastError = %q, want %q", status.LastError, "storage unavailable")
	}
}

func TestFitMonitor_IsHealthy(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(*FitMonitor)
		expected bool
	}{
		{
			// Fits are demand-driven; no fit yet is not a failure.
			name:     "never fitted",
			setup:    func(*FitMonitor) {},
			expected: true,
		},
		{
			name: "recent success",
			setup: func(fm *FitMonitor) {
				fm.RecordSuccess(time.Millisecond)
			},
			expected: true,
		},
		{
			name: "a few failures",
			setup: func(fm *FitMonitor) {
				fm.RecordFailure(errors.New("error 1"))
				fm.RecordFailure(errors.New("error 2"))
			},
			expected: true,
		},
		{
			name: "too many consecutive errors",
			setup: func(fm *FitMonitor) {
				fm.RecordSuccess(time.Millisecond)
				fm.RecordFailure(errors.New("error 1"))
				fm.RecordFailure(errors.New("error 2"))
				fm.RecordFailure(errors.New("error 3"))
				fm.RecordFailure(errors.New("error 4"))
			},
			expected: false,
		},
		{
			name: "recovers after success",
			setup: func(fm *FitMonitor) {
				fm.RecordFailure(errors.New("error 1"))
				fm.RecordFailure(errors.New("error 2"))
				fm.RecordFailure(errors.New("error 3"))
				fm.RecordFailure(errors.New("error 4"))
				fm.RecordSuccess(time.Millisecond)
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fm := &FitMonitor{}
			tt.setup(fm)
			if got := fm.IsHealthy(); got != tt.expected {
				t.Errorf("IsHealthy() = %v, want %v", got, tt.expected)
			}
		})
	}
}
