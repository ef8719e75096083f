package circuitbreaker

import (
	"context"
	"errors"
	"fmt"
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

// ErrOpen is returned without calling the guarded function while the
// breaker is open or its half-open probes are used up.
var ErrOpen = errors.New("circuit breaker is open")

type Config struct {
	Name string
	// MaxFailures consecutive failures open the breaker.
	MaxFailures int
	// OpenTimeout is how long the breaker stays open before it lets
	// probe calls through.
	OpenTimeout time.Duration
	// MaxProbes is the number of calls allowed while half-open.
	MaxProbes     int
	OnStateChange func(name string, from, to State)
	// Now defaults to time.Now.
	Now func() time.Time
}

const (
	DefaultMaxFailures = 5
	DefaultOpenTimeout = 30 * time.Second
	DefaultMaxProbes   = 1
)

type CircuitBreaker struct {
	name          string
	maxFailures   int
	openTimeout   time.Duration
	maxProbes     int
	onStateChange func(name string, from, to State)
	now           func() time.Time

	mutex        sync.Mutex
	state        State
	failures     int
	probes       int
	openedAt     time.Time
	lastFailure  time.Time
	lastChange   time.Time
	stateChanges int64
	calls        int64
	rejected     int64
	failed       int64

	logger *logrus.Logger
}

func New(config Config, logger *logrus.Logger) *CircuitBreaker {
	if config.Name == "" {
		config.Name = "unnamed"
	}
	if config.MaxFailures <= 0 {
		logger.WithFields(logrus.Fields{
			"circuit_breaker": config.Name,
			"invalid_value":   config.MaxFailures,
			"default_value":   DefaultMaxFailures,
		}).Warn("Invalid MaxFailures value, using default")
		config.MaxFailures = DefaultMaxFailures
	}
	if config.OpenTimeout <= 0 {
		config.OpenTimeout = DefaultOpenTimeout
	}
	if config.MaxProbes <= 0 {
		config.MaxProbes = DefaultMaxProbes
	}
	if config.Now == nil {
		config.Now = time.Now
	}

	return &CircuitBreaker{
		name:          config.Name,
		maxFailures:   config.MaxFailures,
		openTimeout:   config.OpenTimeout,
		maxProbes:     config.MaxProbes,
		onStateChange: config.OnStateChange,
		now:           config.Now,
		state:         StateClosed,
		logger:        logger,
	}
}

// Execute runs fn unless the breaker is open. A context cancellation is
// returned as is and does not count as a failure of the remote side.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}

	err := fn(ctx)

	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	switch {
	case err == nil:
		cb.failures = 0
		if cb.state == StateHalfOpen {
			cb.setState(StateClosed)
		}
	case ctx.Err() != nil:
		if cb.state == StateHalfOpen {
			cb.probes--
		}
	default:
		cb.failed++
		cb.failures++
		cb.lastFailure = cb.now()
		if cb.state == StateHalfOpen || cb.failures >= cb.maxFailures {
			cb.setState(StateOpen)
		}
	}
	return err
}

func (cb *CircuitBreaker) admit() error {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	if cb.state == StateOpen {
		if cb.now().Sub(cb.openedAt) < cb.openTimeout {
			cb.rejected++
			return ErrOpen
		}
		cb.setState(StateHalfOpen)
	}

	if cb.state == StateHalfOpen {
		if cb.probes >= cb.maxProbes {
			cb.rejected++
			return ErrOpen
		}
		cb.probes++
	}

	cb.calls++
	return nil
}

// setState must be called with the mutex held.
func (cb *CircuitBreaker) setState(to State) {
	from := cb.state
	if from == to {
		return
	}

	cb.state = to
	cb.stateChanges++
	cb.lastChange = cb.now()
	cb.probes = 0
	switch to {
	case StateOpen:
		cb.openedAt = cb.lastChange
	case StateClosed:
		cb.failures = 0
	}

	cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"from_state":      from.String(),
		"to_state":        to.String(),
		"failures":        cb.failures,
	}).Info("Circuit breaker state changed")

	if cb.onStateChange != nil {
		go cb.notify(from, to)
	}
}

func (cb *CircuitBreaker) notify(from, to State) {
	defer func() {
		if r := recover(); r != nil {
			cb.logger.WithFields(logrus.Fields{
				"circuit_breaker": cb.name,
				"from_state":      from.String(),
				"to_state":        to.String(),
				"panic":           r,
			}).Error("Circuit breaker state change callback panicked")
		}
	}()
	cb.onStateChange(cb.name, from, to)
}

func (cb *CircuitBreaker) State() State {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.openTimeout {
		return StateHalfOpen
	}
	return cb.state
}

type Snapshot struct {
	Name         string    `json:"name"`
	State        string    `json:"state"`
	Failures     int       `json:"failures"`
	MaxFailures  int       `json:"max_failures"`
	Calls        int64     `json:"calls"`
	Failed       int64     `json:"failed"`
	Rejected     int64     `json:"rejected"`
	StateChanges int64     `json:"state_changes"`
	LastFailure  time.Time `json:"last_failure,omitempty"`
	LastChange   time.Time `json:"last_state_change,omitempty"`
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	state := cb.State()

	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return Snapshot{
		Name:         cb.name,
		State:        state.String(),
		Failures:     cb.failures,
		MaxFailures:  cb.maxFailures,
		Calls:        cb.calls,
		Failed:       cb.failed,
		Rejected:     cb.rejected,
		StateChanges: cb.stateChanges,
		LastFailure:  cb.lastFailure,
		LastChange:   cb.lastChange,
	}
}

func (cb *CircuitBreaker) Reset() {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()

	cb.setState(StateClosed)
	cb.failures = 0
	cb.probes = 0
	cb.lastFailure = time.Time{}
}

func (cb *CircuitBreaker) String() string {
	cb.mutex.Lock()
	defer cb.mutex.Unlock()
	return fmt.Sprintf("CircuitBreaker(name=%s, state=%s, failures=%d/%d)",
		cb.name, cb.state, cb.failures, cb.maxFailures)
}
