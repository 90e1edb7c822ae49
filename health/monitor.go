package health

import (
	"sort"
	"sync"
)

// CheckFunc reports the current status of one named part
type CheckFunc func() Status

// Monitor runs registered checks and aggregates their results. It is safe for
// concurrent use.
type Monitor struct {
	name string

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewMonitor creates a monitor whose aggregate status is reported as name
func NewMonitor(name string) *Monitor {
	return &Monitor{
		name:   name,
		checks: make(map[string]CheckFunc),
	}
}

// Register adds or replaces the check for name
func (m *Monitor) Register(name string, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checks[name] = check
}

// Check runs every registered check and returns the aggregate. Sub-statuses
// are ordered by name.
func (m *Monitor) Check() Status {
	m.mu.RLock()
	names := make([]string, 0, len(m.checks))
	checks := make(map[string]CheckFunc, len(m.checks))
	for name, check := range m.checks {
		names = append(names, name)
		checks[name] = check
	}
	m.mu.RUnlock()

	sort.Strings(names)

	results := make([]Status, 0, len(names))
	for _, name := range names {
		status := checks[name]()
		status.Component = name
		results = append(results, status)
	}

	return Aggregate(m.name, results)
}
