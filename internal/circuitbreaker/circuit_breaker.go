// Package circuitbreaker guards calls to flaky downstream dependencies such as
// the Kafka brokers behind order event publishing.
package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

var ErrOpen = errors.New("circuit breaker is open")

const (
	defaultMaxFailures = 5
	defaultTimeout     = 30 * time.Second
	defaultMaxRequests = 1
)

type Config struct {
	Name string
	// MaxFailures consecutive failures trip the breaker.
	MaxFailures int
	// Timeout is how long the breaker stays open before probing.
	Timeout time.Duration
	// MaxRequests is the number of probes allowed while half-open.
	MaxRequests   int
	OnStateChange func(name string, from State, to State)
}

// Metrics is a point-in-time snapshot of a breaker.
type Metrics struct {
	Name            string    `json:"name"`
	State           string    `json:"state"`
	Failures        int       `json:"failures"`
	TotalRequests   int64     `json:"total_requests"`
	TotalFailures   int64     `json:"total_failures"`
	TotalSuccesses  int64     `json:"total_successes"`
	TotalRejected   int64     `json:"total_rejected"`
	StateChanges    int64     `json:"state_changes"`
	LastFailure     time.Time `json:"last_failure"`
	LastStateChange time.Time `json:"last_state_change"`
}

type CircuitBreaker struct {
	name          string
	maxFailures   int
	timeout       time.Duration
	maxRequests   int
	onStateChange func(name string, from State, to State)

	mutex        sync.Mutex
	state        State
	failures     int
	requests     int
	lastFailTime time.Time

	totalRequests   int64
	totalFailures   int64
	totalSuccesses  int64
	totalRejected   int64
	stateChanges    int64
	lastStateChange time.Time

	nowFunc func() time.Time
	logger  *logrus.Logger
}

func New(config Config, logger *logrus.Logger) *CircuitBreaker {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaultMaxFailures
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.MaxRequests <= 0 {
		config.MaxRequests = defaultMaxRequests
	}

	return &CircuitBreaker{
		name:          config.Name,
		maxFailures:   config.MaxFailures,
		timeout:       config.Timeout,
		maxRequests:   config.MaxRequests,
		onStateChange: config.OnStateChange,
		state:         StateClosed,
		nowFunc:       time.Now,
		logger:        logger,
	}
}

// Execute runs fn unless the breaker is open. Rejected calls return ErrOpen
// and are not counted as requests.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cb.before(); err != nil {
		return err
	}

	err := fn()

	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	if err != nil {
		cb.totalFailures++
		cb.onFailure()
		return err
	}
	cb.totalSuccesses++
	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) before() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		if cb.nowFunc().Sub(cb.lastFailTime) <= cb.timeout {
			cb.totalRejected++
			return ErrOpen
		}
		cb.setState(StateHalfOpen)
		cb.requests = 0
	}

	if cb.state == StateHalfOpen {
		if cb.requests >= cb.maxRequests {
			cb.totalRejected++
			return ErrOpen
		}
		cb.requests++
	}

	cb.totalRequests++
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.failures = 0
	if cb.state == StateHalfOpen {
		cb.setState(StateClosed)
		cb.requests = 0
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailTime = cb.nowFunc()

	switch {
	case cb.state == StateClosed && cb.failures >= cb.maxFailures:
		cb.setState(StateOpen)
	case cb.state == StateHalfOpen:
		cb.setState(StateOpen)
	}
	cb.requests = 0
}

func (cb *CircuitBreaker) setState(newState State) {
	if cb.state == newState {
		return
	}

	oldState := cb.state
	cb.state = newState
	cb.stateChanges++
	cb.lastStateChange = cb.nowFunc()

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"from_state":      oldState.String(),
		"to_state":        newState.String(),
	}).Info("Circuit breaker state changed")

	if cb.onStateChange != nil {
		go cb.notify(oldState, newState)
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	defer func() {
		if r := recover(); r != nil {
			cb.logger.WithFields(logrus.Fields{
				"circuit_breaker": cb.name,
				"panic":           r,
			}).Error("Circuit breaker state change callback panicked")
		}
	}()
	cb.onStateChange(cb.name, from, to)
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return cb.state
}

func (cb *CircuitBreaker) Metrics() Metrics {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	return Metrics{
		Name:            cb.name,
		State:           cb.state.String(),
		Failures:        cb.failures,
		TotalRequests:   cb.totalRequests,
		TotalFailures:   cb.totalFailures,
		TotalSuccesses:  cb.totalSuccesses,
		TotalRejected:   cb.totalRejected,
		StateChanges:    cb.stateChanges,
		LastFailure:     cb.lastFailTime,
		LastStateChange: cb.lastStateChange,
	}
}

func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.setState(StateClosed)
	cb.failures = 0
	cb.requests = 0
	cb.lastFailTime = time.Time{}
}
