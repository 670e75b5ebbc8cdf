package streaming

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversToSubscribers(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("r1", 4)
	defer m.Unsubscribe("r1", ch)

	m.Publish("r1", Event{Type: "searching", Message: "found 3 sources"})

	select {
	case evt := <-ch:
		assert.Equal(t, "r1", evt.ResearchID)
		assert.Equal(t, "searching", evt.Type)
		assert.Equal(t, uint64(1), evt.Seq)
		assert.False(t, evt.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}
}

func TestPublishIsolatesSessions(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("r1", 4)
	defer m.Unsubscribe("r1", ch)

	m.Publish("r2", Event{Type: "searching"})

	select {
	case evt := <-ch:
		t.Fatalf("unexpected cross-session event: %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("r1", 1)
	defer m.Unsubscribe("r1", ch)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			m.Publish("r1", Event{Type: "planning"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
}

func TestReplaySince(t *testing.T) {
	m := NewManager(16)
	for i := 0; i < 5; i++ {
		m.Publish("r1", Event{Type: "analyzing"})
	}

	all := m.ReplaySince("r1", 0)
	require.Len(t, all, 5)
	assert.Equal(t, uint64(1), all[0].Seq)

	tail := m.ReplaySince("r1", 3)
	require.Len(t, tail, 2)
	assert.Equal(t, uint64(4), tail[0].Seq)
	assert.Equal(t, uint64(5), tail[1].Seq)

	assert.Nil(t, m.ReplaySince("unknown", 0))
}

func TestReplayBoundedByCapacity(t *testing.T) {
	m := NewManager(3)
	for i := 0; i < 10; i++ {
		m.Publish("r1", Event{Type: "searching"})
	}

	events := m.ReplaySince("r1", 0)
	require.Len(t, events, 3)
	assert.Equal(t, uint64(8), events[0].Seq)
	assert.Equal(t, uint64(10), events[2].Seq)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("r1", 4)
	m.Unsubscribe("r1", ch)

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is harmless.
	m.Unsubscribe("r1", ch)
}

func TestPublishResearchEvent(t *testing.T) {
	m := NewManager(16)
	ch := m.Subscribe("r1", 4)
	defer m.Unsubscribe("r1", ch)

	m.PublishResearchEvent("r1", "reporting", "final report generated")

	evt := <-ch
	assert.Equal(t, "reporting", evt.Type)
	assert.Equal(t, "final report generated", evt.Message)
}
