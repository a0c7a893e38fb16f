// Package observability aggregates runtime telemetry for logs and the debug
// surface. It observes the pipeline; it never participates in it.
package observability

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"
)

// QueueDepth is a point-in-time sample of one pipeline channel.
type QueueDepth struct {
	Length   int `json:"length"`
	Capacity int `json:"capacity"`
}

// Stats aggregates the metrics exposed on the debug endpoint.
type Stats struct {
	MessagesStored uint64                `json:"messages_stored"`
	StatusMerges   uint64                `json:"status_merges"`
	EventsFanned   uint64                `json:"events_fanned"`
	MessagesPerSec float64               `json:"messages_per_sec"`
	QueueDepths    map[string]QueueDepth `json:"queue_depths"`
	AllocMemMb     uint64                `json:"alloc_mem_mb"`
	NumGC          uint32                `json:"num_gc"`
}

// Monitor collects counters from the pipeline workers and periodically folds
// them into a consistent snapshot.
type Monitor struct {
	log    *slog.Logger
	mu     sync.RWMutex
	latest Stats

	// Atomic counters, folded into latest by updateStats
	messagesStored uint64
	statusMerges   uint64
	eventsFanned   uint64
	windowStored   uint64
	lastCheck      time.Time
}

func NewMonitor(log *slog.Logger) *Monitor {
	return &Monitor{
		log:       log,
		lastCheck: time.Now(),
		latest: Stats{
			QueueDepths: make(map[string]QueueDepth),
		},
	}
}

func (m *Monitor) IncrMessagesStored() {
	atomic.AddUint64(&m.messagesStored, 1)
	atomic.AddUint64(&m.windowStored, 1)
}

func (m *Monitor) IncrStatusMerges() {
	atomic.AddUint64(&m.statusMerges, 1)
}

func (m *Monitor) IncrEventsFanned() {
	atomic.AddUint64(&m.eventsFanned, 1)
}

// UpdateQueue records the current fill level of a named pipeline channel.
func (m *Monitor) UpdateQueue(name string, length, capacity int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest.QueueDepths[name] = QueueDepth{Length: length, Capacity: capacity}
}

// Listen periodically folds atomic counters and Go memory stats into the
// published snapshot until the context is canceled.
func (m *Monitor) Listen(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Monitoring stopped")
			return
		case <-ticker.C:
			m.updateStats()
		}
	}
}

func (m *Monitor) updateStats() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	duration := now.Sub(m.lastCheck).Seconds()
	if duration > 0 {
		stored := atomic.SwapUint64(&m.windowStored, 0)
		m.latest.MessagesPerSec = float64(stored) / duration
	}
	m.lastCheck = now

	m.latest.MessagesStored = atomic.LoadUint64(&m.messagesStored)
	m.latest.StatusMerges = atomic.LoadUint64(&m.statusMerges)
	m.latest.EventsFanned = atomic.LoadUint64(&m.eventsFanned)

	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.latest.AllocMemMb = ms.Alloc / 1024 / 1024
	m.latest.NumGC = ms.NumGC

	m.log.Debug("Stats updated",
		"messages_stored", m.latest.MessagesStored,
		"messages_per_sec", m.latest.MessagesPerSec,
		"mem_mb", m.latest.AllocMemMb,
	)
}

func (m *Monitor) GetLatest() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Copy the map so callers cannot observe concurrent updates
	snapshot := m.latest
	snapshot.QueueDepths = make(map[string]QueueDepth, len(m.latest.QueueDepths))
	for name, depth := range m.latest.QueueDepths {
		snapshot.QueueDepths[name] = depth
	}
	return snapshot
}
