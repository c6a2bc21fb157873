package breaker

import (
	"errors"
	"sync"
	"time"

	"github.com/private-doc-vault/docvault-backend-sub002/pkg/logger"
)

// State of the breaker.
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

// ErrOpen is returned while the breaker rejects calls without invoking the
// wrapped function. Rejections do not count as failures.
var ErrOpen = errors.New("circuit breaker is open")

// Config for a breaker instance.
type Config struct {
	// Name identifies the guarded endpoint in log output.
	Name string
	// FailureThreshold is the number of consecutive failures that opens
	// the breaker.
	FailureThreshold int
	// ResetTimeout is how long the breaker stays open before allowing a
	// single trial call.
	ResetTimeout time.Duration
}

// CircuitBreaker guards an unreliable call. One instance must be shared by
// all callers of the same logical endpoint; failure counting is only
// meaningful in aggregate.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        State
	failures     int
	openedAt     time.Time
	trialPending bool

	cfg    Config
	logger logger.Logger
}

func New(cfg Config, log logger.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		state:  StateClosed,
		cfg:    cfg,
		logger: log,
	}
}

// State returns the current state, accounting for an elapsed reset timeout.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.ResetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Call runs fn under the breaker. While open it returns ErrOpen without
// invoking fn. After the reset timeout the next call becomes the single
// half-open trial: its success closes the breaker, its failure re-opens it.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}
	err := fn()
	cb.afterCall(err)
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil
	case StateOpen:
		if time.Since(cb.openedAt) < cb.cfg.ResetTimeout {
			return ErrOpen
		}
		// Lazy transition: the first caller past the timeout gets the trial.
		cb.state = StateHalfOpen
		cb.trialPending = true
		return nil
	case StateHalfOpen:
		if cb.trialPending {
			return ErrOpen
		}
		cb.trialPending = true
		return nil
	}
	return nil
}

func (cb *CircuitBreaker) afterCall(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if err == nil {
		cb.failures = 0
		cb.trialPending = false
		cb.state = StateClosed
		return
	}

	switch cb.state {
	case StateHalfOpen:
		cb.open()
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.open()
		}
	}
}

// open transitions to OPEN and logs the event. Called with cb.mu held.
// The warning fires once per transition, not on every rejected call.
func (cb *CircuitBreaker) open() {
	cb.state = StateOpen
	cb.failures = 0
	cb.trialPending = false
	cb.openedAt = time.Now()
	cb.logger.Warn("Circuit breaker opened",
		logger.String("breaker", cb.cfg.Name),
		logger.Duration("resetTimeout", cb.cfg.ResetTimeout),
	)
}
