package sender

import (
	"sync"
	"time"
)

// MetricsSnapshot is a point-in-time copy of sender counters.
type MetricsSnapshot struct {
	Enqueued    int64
	Completed   int64
	Failed      int64
	Cancelled   int64
	Retries     int64
	QueueDepth  int
	ActiveLeases int

	SuccessRate float64 // completed / (completed + failed)

	PhaseAAvg time.Duration
	PhaseAMin time.Duration
	PhaseAMax time.Duration

	BreakerState string
}

// metrics accumulates sender counters behind its own lock.
type metrics struct {
	mu        sync.Mutex
	enqueued  int64
	completed int64
	failed    int64
	cancelled int64
	retries   int64

	phaseACount int64
	phaseATotal time.Duration
	phaseAMin   time.Duration
	phaseAMax   time.Duration
}

func (m *metrics) addEnqueued() {
	m.mu.Lock()
	m.enqueued++
	m.mu.Unlock()
}

func (m *metrics) addCompleted() {
	m.mu.Lock()
	m.completed++
	m.mu.Unlock()
}

func (m *metrics) addFailed() {
	m.mu.Lock()
	m.failed++
	m.mu.Unlock()
}

func (m *metrics) addCancelled() {
	m.mu.Lock()
	m.cancelled++
	m.mu.Unlock()
}

func (m *metrics) addRetries(n int) {
	if n <= 0 {
		return
	}
	m.mu.Lock()
	m.retries += int64(n)
	m.mu.Unlock()
}

func (m *metrics) observePhaseA(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.phaseACount++
	m.phaseATotal += d
	if m.phaseAMin == 0 || d < m.phaseAMin {
		m.phaseAMin = d
	}
	if d > m.phaseAMax {
		m.phaseAMax = d
	}
}

func (m *metrics) snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MetricsSnapshot{
		Enqueued:  m.enqueued,
		Completed: m.completed,
		Failed:    m.failed,
		Cancelled: m.cancelled,
		Retries:   m.retries,
		PhaseAMin: m.phaseAMin,
		PhaseAMax: m.phaseAMax,
	}
	if m.phaseACount > 0 {
		snap.PhaseAAvg = m.phaseATotal / time.Duration(m.phaseACount)
	}
	if done := m.completed + m.failed; done > 0 {
		snap.SuccessRate = float64(m.completed) / float64(done)
	}
	return snap
}
