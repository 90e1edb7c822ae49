package health

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_CheckAggregates(t *testing.T) {
	m := NewMonitor("eventlatency")
	m.Register("report", func() Status { return NewHealthy("", "ok") })
	m.Register("appender", func() Status { return NewDegraded("", "dropped windows") })

	status := m.Check()

	assert.Equal(t, "eventlatency", status.Component)
	assert.True(t, status.IsDegraded())
	require.Len(t, status.SubStatuses, 2)
	assert.Equal(t, "appender", status.SubStatuses[0].Component, "sub-statuses are ordered by name")
	assert.Equal(t, "report", status.SubStatuses[1].Component)
	assert.Equal(t, "dropped windows", status.SubStatuses[0].Message)
}

func TestMonitor_RegisterReplaces(t *testing.T) {
	m := NewMonitor("eventlatency")
	m.Register("nats", func() Status { return NewUnhealthy("", "disconnected") })
	m.Register("nats", func() Status { return NewHealthy("", "connected") })

	status := m.Check()
	assert.True(t, status.IsHealthy())
	require.Len(t, status.SubStatuses, 1)
	assert.Equal(t, "connected", status.SubStatuses[0].Message)
}

func TestMonitor_NoChecksIsHealthy(t *testing.T) {
	assert.True(t, NewMonitor("eventlatency").Check().IsHealthy())
}

func TestMonitor_ConcurrentChecks(t *testing.T) {
	m := NewMonitor("eventlatency")
	m.Register("appender", func() Status { return NewHealthy("", "ok") })

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = m.Check()
		}()
		go func() {
			defer wg.Done()
			m.Register("report", func() Status { return NewHealthy("", "ok") })
		}()
	}
	wg.Wait()

	assert.Len(t, m.Check().SubStatuses, 2)
}
