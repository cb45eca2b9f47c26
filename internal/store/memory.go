package store

import (
	"sync"
	"time"

	"github.com/jpalmerr/envboard/internal/sensor"
)

// subscriberBuffer is the channel capacity of each subscription.
const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// One [History] per metric is created at construction and lives as long as
// the store. Record and Snapshot hold the same mutex, so a snapshot never
// observes a partially applied cycle.
type MemoryStore struct {
	mu       sync.RWMutex
	series   [sensor.NumMetrics]*History
	capacity int
	cycle    uint64
	takenAt  time.Time
	now      func() time.Time

	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a [MemoryStore] keeping capacity samples per metric,
// every buffer pre-filled with zeros. A capacity below 1 uses [DefaultCapacity].
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	m := &MemoryStore{
		capacity:    capacity,
		now:         time.Now,
		subscribers: make(map[chan Snapshot]struct{}),
	}
	for i := range m.series {
		m.series[i] = NewHistory(capacity)
	}
	return m
}

// Capacity returns the number of samples kept per metric.
func (m *MemoryStore) Capacity() int {
	return m.capacity
}

// Push appends v to the buffer of metric. Unknown metrics are ignored.
func (m *MemoryStore) Push(metric sensor.Metric, v float64) {
	if !metric.Valid() {
		return
	}
	m.mu.Lock()
	m.series[metric].Push(v)
	m.mu.Unlock()
}

// Record appends one value per metric, advances the cycle counter and
// notifies subscribers with the resulting snapshot.
func (m *MemoryStore) Record(values [sensor.NumMetrics]float64) Snapshot {
	m.mu.Lock()
	for i, v := range values {
		m.series[i].Push(v)
	}
	m.cycle++
	m.takenAt = m.now()
	snap := m.snapshotLocked()
	m.mu.Unlock()

	m.notifySubscribers(snap)
	return snap
}

// Latest returns the newest value of metric, or 0 for an unknown metric.
func (m *MemoryStore) Latest(metric sensor.Metric) float64 {
	if !metric.Valid() {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.series[metric].Latest()
}

// Snapshot returns a deep copy of every buffer.
func (m *MemoryStore) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *MemoryStore) snapshotLocked() Snapshot {
	snap := Snapshot{Cycle: m.cycle, TakenAt: m.takenAt}
	for i, h := range m.series {
		snap.Series[i] = h.Values()
	}
	return snap
}

// Subscribe creates a new subscription and returns a channel for receiving
// snapshots. If the buffer fills, new snapshots are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends snap to every subscriber without blocking.
func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap.Clone():
		default:
			// subscriber is slow, drop the snapshot
		}
	}
}
