package updates

import "sync"

// Bus is an in-process fan-out for live progress events.
// Delivery is best-effort: a subscriber that falls behind has
// events dropped rather than blocking the publisher.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[chan Event]struct{})}
}

// Publish fans the event out to all current subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber is behind; drop to avoid blocking the pipeline
		}
	}
	b.mu.RUnlock()
}

// Subscribe returns a buffered channel that receives all new events.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}
