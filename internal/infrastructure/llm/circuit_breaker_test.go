package llm

import (
	"testing"
	"time"
)

func TestCircuitBreakerOpensAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Hour)

	if !cb.Allow() {
		t.Fatal("closed circuit refused a call")
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Fatalf("state after 2 failures = %s, want closed", cb.State())
	}
	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state after 3 failures = %s, want open", cb.State())
	}
	if cb.Allow() {
		t.Error("open circuit allowed a call before the recovery timeout")
	}
}

func TestCircuitBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker(3, time.Hour)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != CircuitClosed {
		t.Errorf("state = %s, want closed after the success reset the streak", cb.State())
	}
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker(1, 20*time.Millisecond)

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %s, want open", cb.State())
	}
	if cb.Allow() {
		t.Fatal("open circuit allowed a call immediately")
	}

	time.Sleep(30 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("circuit refused the half-open probe after the recovery timeout")
	}
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %s, want half_open", cb.State())
	}

	cb.RecordSuccess()
	if cb.State() != CircuitClosed {
		t.Errorf("state after probe success = %s, want closed", cb.State())
	}
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker(1, 20*time.Millisecond)

	cb.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("circuit refused the half-open probe")
	}

	cb.RecordFailure()
	if cb.State() != CircuitOpen {
		t.Errorf("state after probe failure = %s, want open", cb.State())
	}
	if cb.Allow() {
		t.Error("re-opened circuit allowed a call")
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Hour)
	cb.RecordFailure()
	cb.Reset()
	if cb.State() != CircuitClosed {
		t.Errorf("state after Reset = %s, want closed", cb.State())
	}
	if !cb.Allow() {
		t.Error("reset circuit refused a call")
	}
}
