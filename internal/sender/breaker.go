package sender

import (
	"sync"
	"time"

	"github.com/parcoord/parcoord/internal/constants"
	"github.com/parcoord/parcoord/internal/fault"
)

// BreakerState is the circuit breaker position.
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

// String returns the lowercase state name.
func (s BreakerState) String() string {
	switch s {
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// Breaker is a circuit breaker shared by all send attempts. Consecutive
// failures open it; after the open window a limited number of probes may
// pass, and consecutive probe successes close it again.
type Breaker struct {
	mu        sync.Mutex
	state     BreakerState
	failures  int // consecutive, while closed
	successes int // consecutive, while half-open
	probes    int // issued this half-open round
	openedAt  time.Time

	failureThreshold int
	openWindow       time.Duration
	halfOpenProbes   int
	closeSuccesses   int
	now              func() time.Time
}

// NewBreaker creates a closed breaker with default thresholds.
func NewBreaker() *Breaker {
	return &Breaker{
		failureThreshold: constants.BreakerFailureThreshold,
		openWindow:       constants.BreakerOpenWindow,
		halfOpenProbes:   constants.BreakerHalfOpenProbes,
		closeSuccesses:   constants.BreakerCloseSuccesses,
		now:              time.Now,
	}
}

// Do runs fn if the breaker admits the call and records the outcome.
// Rejections are permanent so callers' retry loops stop immediately.
func (b *Breaker) Do(fn func() error) error {
	if err := b.allow(); err != nil {
		return Permanent(err)
	}
	err := fn()
	b.record(err == nil)
	return err
}

// allow admits or rejects a call, moving open to half-open once the
// window has elapsed.
func (b *Breaker) allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		return nil
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.openWindow {
			return fault.New(fault.KindResourceExhausted, "circuit breaker open")
		}
		b.state = BreakerHalfOpen
		b.probes = 0
		b.successes = 0
		fallthrough
	default: // half-open
		if b.probes >= b.halfOpenProbes {
			return fault.New(fault.KindResourceExhausted, "circuit breaker half-open, probe budget spent")
		}
		b.probes++
		return nil
	}
}

// record applies a call outcome.
func (b *Breaker) record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.failureThreshold {
			b.trip()
		}
	case BreakerHalfOpen:
		if !success {
			b.trip()
			return
		}
		b.successes++
		if b.successes >= b.closeSuccesses {
			b.state = BreakerClosed
			b.failures = 0
		}
	}
}

func (b *Breaker) trip() {
	b.state = BreakerOpen
	b.openedAt = b.now()
	b.failures = 0
	b.successes = 0
	b.probes = 0
}

// State returns the current position without side effects.
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
