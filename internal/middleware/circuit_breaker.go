package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBreakerOpen is returned by Execute while the breaker refuses calls
var ErrBreakerOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of the circuit breaker
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateOpen
	StateHalfOpen
)

// CircuitBreaker guards Docker engine calls. When the daemon keeps failing
// the breaker opens and privileged operations are refused outright instead
// of piling up against a dead socket.
type CircuitBreaker struct {
	name              string
	logger            *logrus.Logger
	state             CircuitBreakerState
	failureCount      int
	successCount      int
	lastFailureTime   time.Time
	mu                sync.RWMutex
	maxFailures       int
	resetTimeout      time.Duration
	halfOpenSuccesses int
}

// NewCircuitBreaker creates a circuit breaker for the named collaborator
func NewCircuitBreaker(name string, logger *logrus.Logger) *CircuitBreaker {
	return &CircuitBreaker{
		name:              name,
		logger:            logger,
		state:             StateClosed,
		maxFailures:       5,
		resetTimeout:      10 * time.Second,
		halfOpenSuccesses: 3,
	}
}

// Execute runs a collaborator call with circuit breaker protection
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func() error) error {
	cb.mu.RLock()
	state := cb.state
	cb.mu.RUnlock()

	if state == StateOpen {
		cb.mu.Lock()
		if time.Since(cb.lastFailureTime) > cb.resetTimeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
			cb.logger.WithField("breaker", cb.name).Info("Circuit breaker: OPEN -> HALF_OPEN (retry attempt)")
			cb.mu.Unlock()
		} else {
			cb.mu.Unlock()
			return fmt.Errorf("%s: %w", cb.name, ErrBreakerOpen)
		}
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err != nil {
		cb.onFailure(err)
		return err
	}

	cb.onSuccess()
	return nil
}

func (cb *CircuitBreaker) onFailure(err error) {
	cb.failureCount++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.maxFailures {
			cb.state = StateOpen
			cb.logger.WithFields(logrus.Fields{
				"breaker":       cb.name,
				"failure_count": cb.failureCount,
				"error":         err.Error(),
			}).Error("Circuit breaker: CLOSED -> OPEN")
		}

	case StateHalfOpen:
		cb.state = StateOpen
		cb.failureCount = 0
		cb.logger.WithField("breaker", cb.name).WithError(err).Error("Circuit breaker: HALF_OPEN -> OPEN")
	}
}

func (cb *CircuitBreaker) onSuccess() {
	cb.successCount++

	switch cb.state {
	case StateClosed:
		if cb.failureCount > 0 {
			cb.failureCount = 0
		}

	case StateHalfOpen:
		if cb.successCount >= cb.halfOpenSuccesses {
			cb.state = StateClosed
			cb.failureCount = 0
			cb.successCount = 0
			cb.logger.WithField("breaker", cb.name).Info("Circuit breaker: HALF_OPEN -> CLOSED")
		}
	}
}

// GetState returns the current circuit breaker state
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.state
}

// GetStats returns current circuit breaker statistics
func (cb *CircuitBreaker) GetStats() map[string]interface{} {
	cb.mu.RLock()
	defer cb.mu.RUnlock()

	stateStr := "CLOSED"
	switch cb.state {
	case StateOpen:
		stateStr = "OPEN"
	case StateHalfOpen:
		stateStr = "HALF_OPEN"
	}

	return map[string]interface{}{
		"breaker":       cb.name,
		"state":         stateStr,
		"failure_count": cb.failureCount,
		"success_count": cb.successCount,
		"max_failures":  cb.maxFailures,
		"last_failure":  cb.lastFailureTime,
		"reset_timeout": cb.resetTimeout.String(),
	}
}
