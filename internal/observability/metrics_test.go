package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsSnapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/api/login", "POST", 200, 10*time.Millisecond)
	m.RecordRequest("/api/login", "POST", 200, 30*time.Millisecond)
	m.RecordRequest("/api/login", "POST", 401, 20*time.Millisecond)
	m.RecordError("/api/login", "POST", "INVALID_CREDENTIALS")

	snap := m.Snapshot()
	assert.Equal(t, int64(3), snap.TotalRequests)
	assert.Equal(t, int64(2), snap.Requests["/api/login|POST|200"])
	assert.Equal(t, int64(1), snap.Errors["/api/login|POST|INVALID_CREDENTIALS"])
	assert.InDelta(t, 20.0, snap.AverageDurationMs, 0.01)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, time.Millisecond)
	m.RecordError("/", "GET", "X")
	assert.Zero(t, m.Snapshot().TotalRequests)
}
