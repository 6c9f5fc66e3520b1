package circuitbreaker

import (
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// Manager owns the named breakers of a process so their state can be
// reported from the health endpoint.
type Manager struct {
	breakers map[string]*CircuitBreaker
	mutex    sync.RWMutex
	logger   *logrus.Logger
}

func NewManager(logger *logrus.Logger) *Manager {
	return &Manager{
		breakers: make(map[string]*CircuitBreaker),
		logger:   logger,
	}
}

func (m *Manager) GetOrCreate(name string, config Config) *CircuitBreaker {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if breaker, exists := m.breakers[name]; exists {
		return breaker
	}

	config.Name = name
	breaker := New(config, m.logger)
	m.breakers[name] = breaker

	m.logger.WithFields(logrus.Fields{
		"circuit_breaker": name,
		"max_failures":    breaker.maxFailures,
		"timeout":         breaker.timeout.String(),
		"max_requests":    breaker.maxRequests,
	}).Info("Circuit breaker created")

	return breaker
}

// AllMetrics returns a snapshot of every breaker sorted by name.
func (m *Manager) AllMetrics() []Metrics {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	out := make([]Metrics, 0, len(m.breakers))
	for _, breaker := range m.breakers {
		out = append(out, breaker.Metrics())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset closes the named breaker and reports whether it exists.
func (m *Manager) Reset(name string) bool {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	breaker, exists := m.breakers[name]
	if !exists {
		return false
	}
	breaker.Reset()
	m.logger.WithField("circuit_breaker", name).Info("Circuit breaker reset")
	return true
}
