package controller

import "sync"

const defaultSubscriberBuffer = 16

// stateBroadcaster fans state transitions out to subscribers. Delivery never
// blocks the controller: a full subscriber channel skips the transition.
type stateBroadcaster struct {
	mu     sync.Mutex
	subs   []chan State
	closed bool
}

func newStateBroadcaster() *stateBroadcaster {
	return &stateBroadcaster{}
}

// Subscribe returns a channel of state transitions and a cancel function.
// The channel is closed by cancel or once the disposed state is delivered.
func (b *stateBroadcaster) Subscribe(buffer int) (<-chan State, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan State, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs = append(b.subs, ch)
	return ch, func() { b.remove(ch) }
}

func (b *stateBroadcaster) remove(ch chan State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}

func (b *stateBroadcaster) Broadcast(state State) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		select {
		case sub <- state:
		default:
		}
	}
}

func (b *stateBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, sub := range b.subs {
		close(sub)
	}
	b.subs = nil
}
