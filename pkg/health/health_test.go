package health

import (
	"testing"
	"time"
)

func TestStatus_UnhealthyAfterRetries(t *testing.T) {
	status := NewStatus()
	config := Config{Interval: time.Second, Timeout: time.Second, Retries: 3}

	failure := Result{Healthy: false, Message: "HTTP 502", CheckedAt: time.Now()}

	status.Update(failure, config)
	status.Update(failure, config)
	if !status.Healthy {
		t.Error("Expected still healthy below retry threshold")
	}

	status.Update(failure, config)
	if status.Healthy {
		t.Error("Expected unhealthy after reaching retry threshold")
	}
	if status.ConsecutiveFailures != 3 {
		t.Errorf("Expected 3 consecutive failures, got %d", status.ConsecutiveFailures)
	}
}

func TestStatus_RecoversOnSuccess(t *testing.T) {
	status := NewStatus()
	config := Config{Retries: 2}

	failure := Result{Healthy: false, CheckedAt: time.Now()}
	success := Result{Healthy: true, CheckedAt: time.Now()}

	status.Update(failure, config)
	status.Update(failure, config)
	if status.Healthy {
		t.Error("Expected unhealthy after threshold")
	}

	status.Update(success, config)
	if !status.Healthy {
		t.Error("Expected healthy after success")
	}
	if status.ConsecutiveFailures != 0 {
		t.Errorf("Expected failure counter reset, got %d", status.ConsecutiveFailures)
	}
}
