package llm

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestHTTPToolExecutorTimeout(t *testing.T) {
	e := NewHTTPToolExecutor("http://executor.local", 30*time.Second, zap.NewNop())
	if e.client.Timeout != 30*time.Second {
		t.Errorf("client timeout = %v, want the configured 30s", e.client.Timeout)
	}

	e = NewHTTPToolExecutor("http://executor.local", 0, zap.NewNop())
	if e.client.Timeout != 5*time.Minute {
		t.Errorf("client timeout = %v, want the 5m default", e.client.Timeout)
	}
}
