package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBus()
	ch, unsubscribe := b.Subscribe("s1")
	defer unsubscribe()

	b.PublishRoundStart("s1", RoundStartPayload{SessionID: "s1", Round: 1, Timestamp: time.Now()})

	select {
	case ev := <-ch:
		assert.Equal(t, TypeV2RoundStart, ev.Type)
		assert.Equal(t, "s1", ev.SessionID)
	case <-time.After(time.Second):
		t.Fatal("expected an event")
	}
}

func TestBus_PublishOnlyReachesMatchingSession(t *testing.T) {
	b := NewBus()
	ch, unsubscribe := b.Subscribe("s1")
	defer unsubscribe()

	b.PublishRoundStart("s2", RoundStartPayload{SessionID: "s2", Round: 1})

	select {
	case ev := <-ch:
		t.Fatalf("unexpected event for unrelated session: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBus_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBus()
	ch, unsubscribe := b.Subscribe("s1")
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "channel should be closed after unsubscribe")
}

func TestBus_MultipleSubscribersAllReceive(t *testing.T) {
	b := NewBus()
	ch1, unsub1 := b.Subscribe("s1")
	ch2, unsub2 := b.Subscribe("s1")
	defer unsub1()
	defer unsub2()

	b.PublishConsensusUpdate("s1", ConsensusUpdatePayload{SessionID: "s1", ConsensusLevel: 7.5, Round: 2})

	for _, ch := range []<-chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			assert.Equal(t, TypeV2ConsensusUpdate, ev.Type)
		case <-time.After(time.Second):
			t.Fatal("expected an event on every subscriber")
		}
	}
}

func TestBus_FullBufferDropsOldestRatherThanBlocking(t *testing.T) {
	b := NewBus()
	_, unsubscribe := b.Subscribe("s1")
	defer unsubscribe()

	require.NotPanics(t, func() {
		for i := 0; i < 200; i++ {
			b.PublishRoundStart("s1", RoundStartPayload{SessionID: "s1", Round: i})
		}
	})
}
