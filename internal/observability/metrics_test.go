package observability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetrics_Snapshot(t *testing.T) {
	m := NewMetrics()
	m.RecordRequest("/users/me", "GET", 200, time.Millisecond)
	m.RecordRequest("/users/me", "GET", 200, time.Millisecond)
	m.RecordError("/users/me", "GET", "NO_ACTIVE_SESSION")
	m.RecordDecision("ACCESS_VALID")

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.Requests["/users/me|GET|200"])
	assert.Equal(t, int64(1), snap.Errors["/users/me|GET|NO_ACTIVE_SESSION"])
	assert.Equal(t, int64(1), snap.Decisions["ACCESS_VALID"])

	m.RecordDecision("ACCESS_VALID")
	assert.Equal(t, int64(1), snap.Decisions["ACCESS_VALID"], "snapshot must not alias live counters")
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.RecordRequest("/", "GET", 200, 0)
	m.RecordError("/", "GET", "X")
	m.RecordDecision("INVALID")
	assert.Empty(t, m.Snapshot().Decisions)
}
