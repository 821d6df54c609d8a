// Package resilience holds the fault-tolerance primitives the search
// service wraps around its dependencies: a circuit breaker for the shared
// cache tier, backoff retry for catalog loads, and per-call deadlines.
package resilience

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned, wrapped, for calls the breaker rejects.
var ErrCircuitOpen = errors.New("circuit breaker is open")

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
	}
	return "unknown"
}

// CircuitBreakerConfig sets when the breaker trips and how it recovers.
// Zero fields fall back to 5 failures, a 30s cool-down and one probe.
type CircuitBreakerConfig struct {
	FailureThreshold    int
	ResetTimeout        time.Duration
	HalfOpenMaxRequests int
	// OnStateChange, when set, is called with the lock held after every
	// transition; it must not call back into the breaker.
	OnStateChange func(name string, to State)
}

// CircuitBreaker fails fast once a dependency has failed
// FailureThreshold times in a row. After ResetTimeout it lets up to
// HalfOpenMaxRequests probes through; one success closes it again and one
// failure re-opens it.
//
// Each state change starts a new epoch. A call that began in an earlier
// epoch does not count toward the current one, so a slow failure from
// before a recovery cannot re-open the circuit.
type CircuitBreaker struct {
	name   string
	cfg    CircuitBreakerConfig
	logger *slog.Logger

	mu       sync.Mutex
	state    State
	epoch    uint64
	failures int
	inFlight int
	openedAt time.Time
}

func NewCircuitBreaker(name string, cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxRequests <= 0 {
		cfg.HalfOpenMaxRequests = 1
	}
	return &CircuitBreaker{
		name:   name,
		cfg:    cfg,
		logger: slog.Default().With("component", "circuit-breaker", "name", name),
	}
}

// Execute runs fn unless the circuit is open and records its outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	epoch, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.record(epoch, err)
	return err
}

// GetState reports the state, moving an expired open circuit to half-open.
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.expireOpen(time.Now())
	return cb.state
}

// Reset closes the circuit and forgets recorded failures.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transition(StateClosed)
	cb.logger.Info("circuit reset")
}

func (cb *CircuitBreaker) admit() (uint64, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	now := time.Now()
	cb.expireOpen(now)
	switch cb.state {
	case StateOpen:
		wait := cb.cfg.ResetTimeout - now.Sub(cb.openedAt)
		return 0, fmt.Errorf("%w: %s, retry in %v", ErrCircuitOpen, cb.name, wait.Round(time.Millisecond))
	case StateHalfOpen:
		if cb.inFlight >= cb.cfg.HalfOpenMaxRequests {
			return 0, fmt.Errorf("%w: %s, probe already in flight", ErrCircuitOpen, cb.name)
		}
		cb.inFlight++
	}
	return cb.epoch, nil
}

func (cb *CircuitBreaker) record(epoch uint64, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if epoch != cb.epoch {
		return
	}
	if err == nil {
		switch cb.state {
		case StateClosed:
			cb.failures = 0
		case StateHalfOpen:
			cb.transition(StateClosed)
			cb.logger.Info("circuit closed, dependency recovered")
		}
		return
	}
	cb.failures++
	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.transition(StateOpen)
			cb.logger.Warn("circuit opened", "consecutive_failures", cb.failures, "cooldown", cb.cfg.ResetTimeout)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
		cb.logger.Warn("probe failed, circuit re-opened", "error", err)
	}
}

// expireOpen must be called with mu held.
func (cb *CircuitBreaker) expireOpen(now time.Time) {
	if cb.state == StateOpen && now.Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.transition(StateHalfOpen)
		cb.logger.Info("circuit half-open, allowing probes", "max_probes", cb.cfg.HalfOpenMaxRequests)
	}
}

// transition must be called with mu held. It starts a new epoch even when
// the state is unchanged, as Reset relies on.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.epoch++
	cb.failures = 0
	cb.inFlight = 0
	if to == StateOpen {
		cb.openedAt = time.Now()
	}
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(cb.name, to)
	}
}
