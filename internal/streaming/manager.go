// Package streaming provides in-memory pub/sub for research session events,
// with a per-session ring buffer so SSE and WebSocket clients can replay what
// they missed via Last-Event-ID.
package streaming

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/praxis-labs/deepresearch/internal/metrics"
)

// Event is one research progress update.
type Event struct {
	ResearchID string    `json:"research_id"`
	Type       string    `json:"type"`
	Message    string    `json:"message,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Seq        uint64    `json:"seq"`
}

// Marshal returns the JSON encoding for SSE data lines and WebSocket frames.
func (e Event) Marshal() []byte {
	b, _ := json.Marshal(e)
	return b
}

// Manager fans research events out to subscribers. Slow subscribers drop
// events rather than block publishers; the ring buffer covers the gap.
type Manager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
	history     map[string]*ring
	capacity    int
}

// NewManager creates a manager whose per-session replay rings hold capacity
// events each.
func NewManager(capacity int) *Manager {
	if capacity <= 0 {
		capacity = 256
	}
	return &Manager{
		subscribers: make(map[string]map[chan Event]struct{}),
		history:     make(map[string]*ring),
		capacity:    capacity,
	}
}

// Subscribe adds a subscriber channel for a research session; the caller must
// drain it and call Unsubscribe.
func (m *Manager) Subscribe(researchID string, buffer int) chan Event {
	ch := make(chan Event, buffer)
	m.mu.Lock()
	defer m.mu.Unlock()
	subs := m.subscribers[researchID]
	if subs == nil {
		subs = make(map[chan Event]struct{})
		m.subscribers[researchID] = subs
	}
	subs[ch] = struct{}{}
	metrics.StreamSubscribers.Inc()
	return ch
}

// Unsubscribe removes the subscriber channel and closes it.
func (m *Manager) Unsubscribe(researchID string, ch chan Event) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if subs, ok := m.subscribers[researchID]; ok {
		if _, found := subs[ch]; found {
			delete(subs, ch)
			close(ch)
			metrics.StreamSubscribers.Dec()
		}
		if len(subs) == 0 {
			delete(m.subscribers, researchID)
		}
	}
}

// Publish assigns a sequence number, records the event for replay, and fans
// it out without blocking.
func (m *Manager) Publish(researchID string, evt Event) {
	evt.ResearchID = researchID
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	m.mu.Lock()
	rg := m.history[researchID]
	if rg == nil {
		rg = newRing(m.capacity)
		m.history[researchID] = rg
	}
	evt.Seq = rg.nextSeq
	rg.nextSeq++
	rg.push(evt)
	subs := m.subscribers[researchID]
	m.mu.Unlock()

	metrics.StreamEventsPublished.Inc()

	for ch := range subs {
		select {
		case ch <- evt:
		default:
			// Drop for slow subscribers; replay covers the gap.
		}
	}
}

// PublishResearchEvent implements research.EventSink.
func (m *Manager) PublishResearchEvent(researchID, eventType, message string) {
	m.Publish(researchID, Event{Type: eventType, Message: message})
}

// ReplaySince returns recorded events with Seq > since, best-effort within
// ring capacity.
func (m *Manager) ReplaySince(researchID string, since uint64) []Event {
	m.mu.RLock()
	rg := m.history[researchID]
	m.mu.RUnlock()
	if rg == nil {
		return nil
	}
	return rg.since(since)
}

// ring is a fixed-capacity buffer of the newest events for one session.
type ring struct {
	buf     []Event
	start   int
	count   int
	nextSeq uint64
}

func newRing(capacity int) *ring { return &ring{buf: make([]Event, capacity), nextSeq: 1} }

func (r *ring) push(e Event) {
	if len(r.buf) == 0 {
		return
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

func (r *ring) since(seq uint64) []Event {
	if r.count == 0 {
		return nil
	}
	out := make([]Event, 0, r.count)
	for i := 0; i < r.count; i++ {
		ev := r.buf[(r.start+i)%len(r.buf)]
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}
