// Package sender delivers messages into tmux sessions with a two-phase
// protocol: paste the content literally, pause, then send a discrete
// Enter keystroke. Interactive terminals misorder a paste and its
// trailing newline under load, and the downstream agent must observe a
// complete prompt. A worker pool drains two FIFO queues; each worker
// holds an exclusive per-session lease for a request's full lifetime so
// deliveries to the same session never interleave.
package sender

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parcoord/parcoord/internal/constants"
	"github.com/parcoord/parcoord/internal/fault"
	"github.com/parcoord/parcoord/internal/tmux"
)

// Priority orders requests across the two queues. High and Urgent drain
// before Low and Normal.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
	PriorityUrgent
)

// String returns the lowercase priority name.
func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityHigh:
		return "high"
	case PriorityUrgent:
		return "urgent"
	default:
		return "normal"
	}
}

// ParsePriority maps a wire name to a Priority.
func ParsePriority(s string) (Priority, error) {
	switch s {
	case "low":
		return PriorityLow, nil
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	case "urgent":
		return PriorityUrgent, nil
	}
	return PriorityNormal, fault.New(fault.KindInvalidArgument, "unknown priority %q", s)
}

// RequestStatus is a delayed request's lifecycle state.
type RequestStatus string

const (
	StatusPending        RequestStatus = "Pending"
	StatusMessageSent    RequestStatus = "MessageSent"
	StatusEnterScheduled RequestStatus = "EnterScheduled"
	StatusCompleted      RequestStatus = "Completed"
	StatusFailed         RequestStatus = "Failed"
	StatusCancelled      RequestStatus = "Cancelled"
)

// KeySender is the tmux surface the sender needs. *tmux.Tmux satisfies
// it.
type KeySender interface {
	SendKeysLiteral(target, content string) error
	SendEnter(target string) error
}

// EnqueueRequest describes one delayed delivery.
type EnqueueRequest struct {
	SessionName string
	Content     string
	Delay       time.Duration // zero means the default
	Priority    Priority
	Window      *int
	Pane        *int
	Callback    func(ok bool) // optional, fired once at a terminal state
}

// request is the internal tracked form. Status is guarded by the sender
// mutex.
type request struct {
	id        string
	session   string
	content   string
	delay     time.Duration
	priority  Priority
	window    *int
	pane      *int
	createdAt time.Time
	status    RequestStatus
	inflight  bool
	cancelled chan struct{}
	callback  func(bool)
}

// Sender owns the queues, the per-session leases, and the worker pool.
type Sender struct {
	tmux    KeySender
	breaker *Breaker
	metrics *metrics
	logf    func(format string, args ...interface{})

	maxWorkers   int
	queueCap     int
	defaultDelay time.Duration
	contentRetry RetryConfig
	enterRetry   RetryConfig

	mu       sync.Mutex
	priority []*request
	normal   []*request
	leased   map[string]bool
	requests map[string]*request

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a sender with default limits. Start must be called before
// requests are processed.
func New(tm KeySender) *Sender {
	return &Sender{
		tmux:         tm,
		breaker:      NewBreaker(),
		metrics:      &metrics{},
		logf:         log.Printf,
		maxWorkers:   constants.DefaultMaxConcurrentSessions,
		queueCap:     constants.DefaultSenderQueueCap,
		defaultDelay: constants.DefaultSendDelay,
		contentRetry: RetryConfig{
			MaxRetries: constants.ContentRetries,
			BaseDelay:  constants.ContentRetryBase,
			MaxDelay:   constants.ContentRetryMax,
			JitterFrac: 0.2,
		},
		enterRetry: RetryConfig{
			MaxRetries: constants.EnterRetries,
			BaseDelay:  constants.EnterRetryBase,
			MaxDelay:   constants.EnterRetryMax,
			JitterFrac: 0.2,
		},
		leased:   make(map[string]bool),
		requests: make(map[string]*request),
		wake:     make(chan struct{}, constants.DefaultMaxConcurrentSessions),
	}
}

// SetLogger overrides the logger.
func (s *Sender) SetLogger(logf func(format string, args ...interface{})) {
	if logf != nil {
		s.logf = logf
	}
}

// SetWorkers overrides the worker pool size. Takes effect at Start.
func (s *Sender) SetWorkers(n int) {
	if n > 0 {
		s.maxWorkers = n
	}
}

// SetQueueCap overrides the total queue capacity.
func (s *Sender) SetQueueCap(n int) {
	if n > 0 {
		s.queueCap = n
	}
}

// SetDefaultDelay overrides the default content-to-Enter pause.
func (s *Sender) SetDefaultDelay(d time.Duration) {
	if d > 0 {
		s.defaultDelay = d
	}
}

// Breaker exposes the shared circuit breaker.
func (s *Sender) Breaker() *Breaker {
	return s.breaker
}

// Start launches the worker pool. Calling Start on a running sender is a
// no-op.
func (s *Sender) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for i := 0; i < s.maxWorkers; i++ {
		s.wg.Add(1)
		go s.worker(ctx)
	}
}

// Stop shuts the pool down and waits for in-flight requests to settle.
// Calling Stop on a stopped sender is a no-op.
func (s *Sender) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}

// Enqueue accepts a request and returns its ID. Over-cap queues reject
// with ResourceExhausted.
func (s *Sender) Enqueue(er EnqueueRequest) (string, error) {
	if er.SessionName == "" {
		return "", fault.New(fault.KindInvalidArgument, "empty session name")
	}
	if er.Content == "" {
		return "", fault.New(fault.KindInvalidArgument, "empty content")
	}
	delay := er.Delay
	if delay <= 0 {
		delay = s.defaultDelay
	}

	r := &request{
		id:        uuid.NewString(),
		session:   er.SessionName,
		content:   er.Content,
		delay:     delay,
		priority:  er.Priority,
		window:    er.Window,
		pane:      er.Pane,
		createdAt: time.Now(),
		status:    StatusPending,
		cancelled: make(chan struct{}),
		callback:  er.Callback,
	}

	s.mu.Lock()
	if len(s.priority)+len(s.normal) >= s.queueCap {
		s.mu.Unlock()
		return "", fault.New(fault.KindResourceExhausted, "send queue full (%d)", s.queueCap)
	}
	if r.priority >= PriorityHigh {
		s.priority = append(s.priority, r)
	} else {
		s.normal = append(s.normal, r)
	}
	s.requests[r.id] = r
	s.mu.Unlock()

	s.metrics.addEnqueued()
	s.notify()
	return r.id, nil
}

// Cancel aborts a request. Queued requests are dropped immediately; an
// in-flight request finishes its content phase but skips the Enter.
// Returns false if the request is unknown or already terminal.
func (s *Sender) Cancel(id string) bool {
	s.mu.Lock()
	r, ok := s.requests[id]
	if !ok {
		s.mu.Unlock()
		return false
	}
	r.status = StatusCancelled
	close(r.cancelled)
	inflight := r.inflight
	delete(s.requests, id)
	s.mu.Unlock()

	if !inflight {
		// Dequeue discards it; settle the request here.
		s.metrics.addCancelled()
		if r.callback != nil {
			r.callback(false)
		}
	}
	return true
}

// Status returns a request's current state. Terminal requests are
// forgotten and report NotFound.
func (s *Sender) Status(id string) (RequestStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return "", fault.New(fault.KindNotFound, "no request %q", id)
	}
	return r.status, nil
}

// Metrics returns a snapshot of sender counters.
func (s *Sender) Metrics() MetricsSnapshot {
	snap := s.metrics.snapshot()
	s.mu.Lock()
	snap.QueueDepth = len(s.priority) + len(s.normal)
	snap.ActiveLeases = len(s.leased)
	s.mu.Unlock()
	snap.BreakerState = s.breaker.State().String()
	return snap
}

// notify wakes a worker without blocking.
func (s *Sender) notify() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// worker drains the queues until shutdown.
func (s *Sender) worker(ctx context.Context) {
	defer s.wg.Done()

	// The poll ticker is a fallback against lost wakeups; the wake
	// channel is the normal path.
	poll := time.NewTicker(100 * time.Millisecond)
	defer poll.Stop()

	for {
		r := s.take()
		if r == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.wake:
			case <-poll.C:
			}
			continue
		}
		s.process(ctx, r)
		s.notify()
	}
}

// take pops the first request whose session is unleased, priority queue
// first, and leases its session. Requests skipped over a held lease move
// to the tail of their queue to preserve fairness. Cancelled entries are
// discarded.
func (s *Sender) take() *request {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range []*[]*request{&s.priority, &s.normal} {
		var skipped []*request
		var taken *request
		for len(*q) > 0 {
			r := (*q)[0]
			*q = (*q)[1:]
			if r.status == StatusCancelled {
				continue
			}
			if s.leased[r.session] {
				skipped = append(skipped, r)
				continue
			}
			taken = r
			break
		}
		*q = append(*q, skipped...)
		if taken != nil {
			s.leased[taken.session] = true
			taken.inflight = true
			return taken
		}
	}
	return nil
}

// process runs both phases for one request and settles it.
func (s *Sender) process(ctx context.Context, r *request) {
	target := tmux.Target(r.session, r.window, r.pane)

	start := time.Now()
	attempts, err := retryDo(ctx, s.contentRetry, func() error {
		return s.breaker.Do(func() error {
			return s.tmux.SendKeysLiteral(target, r.content)
		})
	})
	s.metrics.observePhaseA(time.Since(start))
	s.metrics.addRetries(attempts - 1)
	if err != nil {
		s.logf("sender: content phase for %s failed: %v", r.session, err)
		s.settle(r, StatusFailed)
		return
	}

	s.mu.Lock()
	if r.status == StatusCancelled {
		s.mu.Unlock()
		s.settle(r, StatusCancelled)
		return
	}
	// The paste succeeded and the Enter wait starts immediately, so the
	// request moves through MessageSent straight into EnterScheduled.
	r.status = StatusEnterScheduled
	s.mu.Unlock()

	select {
	case <-time.After(r.delay):
	case <-r.cancelled:
		s.settle(r, StatusCancelled)
		return
	case <-ctx.Done():
		s.settle(r, StatusCancelled)
		return
	}

	s.mu.Lock()
	if r.status == StatusCancelled {
		s.mu.Unlock()
		s.settle(r, StatusCancelled)
		return
	}
	s.mu.Unlock()

	attempts, err = retryDo(ctx, s.enterRetry, func() error {
		return s.tmux.SendEnter(target)
	})
	s.metrics.addRetries(attempts - 1)
	if err != nil {
		s.logf("sender: enter phase for %s failed: %v", r.session, err)
		s.settle(r, StatusFailed)
		return
	}
	s.settle(r, StatusCompleted)
}

// settle records a terminal state, releases the lease, and fires the
// callback exactly once.
func (s *Sender) settle(r *request, status RequestStatus) {
	s.mu.Lock()
	if r.status != StatusCancelled {
		r.status = status
	}
	final := r.status
	delete(s.requests, r.id)
	delete(s.leased, r.session)
	s.mu.Unlock()

	switch final {
	case StatusCompleted:
		s.metrics.addCompleted()
	case StatusFailed:
		s.metrics.addFailed()
	default:
		s.metrics.addCancelled()
	}
	if r.callback != nil {
		r.callback(final == StatusCompleted)
	}
}
