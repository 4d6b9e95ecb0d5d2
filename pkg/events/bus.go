package events

import (
	"sync"
)

// Bus is an in-process, per-session publish/subscribe fan-out. The dynamic
// router publishes v2-* events as it runs; pkg/api subscribes one listener
// per open WebSocket connection and forwards events over the wire. The bus
// itself is transport-agnostic — it has no notion of sockets or clients.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan Event
	next int
}

// NewBus constructs an empty Bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers a new listener for sessionID and returns a channel of
// events plus an unsubscribe func the caller must call when done (typically
// on WebSocket disconnect). The channel is buffered so a slow subscriber
// does not block Publish; a full channel drops the oldest-pending event
// rather than stalling the publishing router.
func (b *Bus) Subscribe(sessionID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[sessionID] == nil {
		b.subs[sessionID] = make(map[int]chan Event)
	}
	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[sessionID][id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if set, ok := b.subs[sessionID]; ok {
			if c, ok := set[id]; ok {
				close(c)
				delete(set, id)
			}
			if len(set) == 0 {
				delete(b.subs, sessionID)
			}
		}
	}
	return ch, unsubscribe
}

// Publish delivers ev to every current subscriber of ev.SessionID. A
// subscriber whose buffer is full has its oldest event dropped to make
// room — realtime delivery favors recency over completeness; the session
// store remains the durable source of truth.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs[ev.SessionID] {
		select {
		case ch <- ev:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- ev:
			default:
			}
		}
	}
}

// PublishMessage publishes a "v2-message" event.
func (b *Bus) PublishMessage(sessionID string, payload MessagePayload) {
	b.Publish(Event{Type: TypeV2Message, SessionID: sessionID, Payload: payload})
}

// PublishRoundStart publishes a "v2-round-start" event.
func (b *Bus) PublishRoundStart(sessionID string, payload RoundStartPayload) {
	b.Publish(Event{Type: TypeV2RoundStart, SessionID: sessionID, Payload: payload})
}

// PublishConsensusUpdate publishes a "v2-consensus-update" event.
func (b *Bus) PublishConsensusUpdate(sessionID string, payload ConsensusUpdatePayload) {
	b.Publish(Event{Type: TypeV2ConsensusUpdate, SessionID: sessionID, Payload: payload})
}

// PublishFacilitatorAction publishes a "v2-facilitator-action" event.
func (b *Bus) PublishFacilitatorAction(sessionID string, payload FacilitatorActionPayload) {
	b.Publish(Event{Type: TypeV2FacilitatorAction, SessionID: sessionID, Payload: payload})
}
