package app

import "sync"

// Event is a typed state-change broadcast. Transient events fire when a
// connect or disconnect is initiated; settled events fire at most once
// per observed transition.
type Event string

const (
	EventConnecting    Event = "connecting"
	EventConnected     Event = "connected"
	EventDisconnecting Event = "disconnecting"
	EventDisconnected  Event = "disconnected"
	EventServerChanged Event = "server-changed"
)

// Bus fans events out to subscribers. Publish never blocks; a
// subscriber that falls behind loses events rather than stalling the
// session flow.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe returns a receive channel and a cancel func. The buffer
// bounds how far a slow consumer may lag.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if sub, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
