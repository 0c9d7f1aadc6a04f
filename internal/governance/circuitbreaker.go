package governance

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is in the open state.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the state of a circuit breaker.
type CircuitBreakerState string

const (
	// StateClosed lets every call through.
	StateClosed CircuitBreakerState = "closed"
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen CircuitBreakerState = "open"
	// StateHalfOpen lets a single probe call through.
	StateHalfOpen CircuitBreakerState = "half-open"
)

// CircuitBreakerConfig defines when the breaker opens and for how long.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures int
	// Cooldown is how long the circuit stays open before allowing a probe.
	Cooldown time.Duration
}

// DefaultCircuitBreakerConfig returns the defaults used for remote catalogs.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		MaxFailures: 3,
		Cooldown:    30 * time.Second,
	}
}

// CircuitBreakerStats is a point-in-time view of a breaker.
type CircuitBreakerStats struct {
	State               CircuitBreakerState `json:"state"`
	ConsecutiveFailures int                 `json:"consecutiveFailures"`
	Rejected            int                 `json:"rejected"`
	OpenUntil           time.Time           `json:"openUntil,omitempty"`
}

// CircuitBreaker counts consecutive failures of a call and short-circuits it
// while the upstream is considered down. It never retries.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	now    func() time.Time

	mu            sync.Mutex
	state         CircuitBreakerState
	failures      int
	rejected      int
	openUntil     time.Time
	probeInFlight bool
	onChange      func(from, to CircuitBreakerState)
}

// NewCircuitBreaker creates a closed breaker. Non-positive values fall back to defaults.
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig()
	if config.MaxFailures <= 0 {
		config.MaxFailures = defaults.MaxFailures
	}
	if config.Cooldown <= 0 {
		config.Cooldown = defaults.Cooldown
	}
	return &CircuitBreaker{
		config: config,
		now:    time.Now,
		state:  StateClosed,
	}
}

// OnStateChange registers a callback invoked, under the breaker's lock, on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to CircuitBreakerState)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.onChange = fn
}

// Execute runs fn unless the circuit is open. Context cancellation is not
// counted as an upstream failure.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	probe, err := cb.beforeCall()
	if err != nil {
		return err
	}

	err = fn(ctx)
	cb.afterCall(probe, err, ctx.Err() != nil)
	return err
}

func (cb *CircuitBreaker) beforeCall() (bool, error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Before(cb.openUntil) {
			cb.rejected++
			return false, ErrCircuitOpen
		}
		cb.transitionLocked(StateHalfOpen)
		fallthrough
	case StateHalfOpen:
		if cb.probeInFlight {
			cb.rejected++
			return false, ErrCircuitOpen
		}
		cb.probeInFlight = true
		return true, nil
	default:
		return false, nil
	}
}

func (cb *CircuitBreaker) afterCall(probe bool, err error, cancelled bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if probe {
		cb.probeInFlight = false
	}

	switch {
	case err == nil:
		cb.failures = 0
		if cb.state != StateClosed {
			cb.transitionLocked(StateClosed)
		}
	case cancelled:
		if probe && cb.state == StateHalfOpen {
			cb.transitionLocked(StateOpen)
			cb.openUntil = cb.now()
		}
	default:
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.config.MaxFailures {
			cb.transitionLocked(StateOpen)
			cb.openUntil = cb.now().Add(cb.config.Cooldown)
		}
	}
}

func (cb *CircuitBreaker) transitionLocked(to CircuitBreakerState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	if cb.onChange != nil {
		cb.onChange(from, to)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats returns the current counters.
func (cb *CircuitBreaker) Stats() CircuitBreakerStats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	stats := CircuitBreakerStats{
		State:               cb.state,
		ConsecutiveFailures: cb.failures,
		Rejected:            cb.rejected,
	}
	if cb.state == StateOpen {
		stats.OpenUntil = cb.openUntil
	}
	return stats
}

// Reset closes the circuit and clears the counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.transitionLocked(StateClosed)
	cb.failures = 0
	cb.rejected = 0
	cb.probeInFlight = false
	cb.openUntil = time.Time{}
}
