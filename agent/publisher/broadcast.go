package publisher

import (
	"sync"

	rmm "github.com/vpscope/vpsagent/shared"
)

type listener struct {
	ch   chan rmm.OutputEvent
	done chan struct{}
}

// Broadcaster fans one session's events out to any number of listeners.
// A listener only sees events delivered while it is subscribed.
type Broadcaster struct {
	deliverMu sync.Mutex

	mu        sync.Mutex
	listeners map[uint64]*listener
	next      uint64
	closed    bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{listeners: make(map[uint64]*listener)}
}

// Subscribe returns the listener channel and a func that detaches it. The
// channel is closed after the terminal event or when the broadcaster closes.
func (b *Broadcaster) Subscribe(buf int) (<-chan rmm.OutputEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	l := &listener{
		ch:   make(chan rmm.OutputEvent, buf),
		done: make(chan struct{}),
	}

	if b.closed {
		close(l.ch)
		return l.ch, func() {}
	}

	id := b.next
	b.next++
	b.listeners[id] = l

	var once sync.Once
	return l.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			if _, ok := b.listeners[id]; ok {
				delete(b.listeners, id)
			}
			b.mu.Unlock()
			close(l.done)
		})
	}
}

func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners)
}

// Deliver blocks until every current listener took the event or detached
func (b *Broadcaster) Deliver(ev rmm.OutputEvent) {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	ls := make([]*listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		ls = append(ls, l)
	}
	b.mu.Unlock()

	for _, l := range ls {
		select {
		case l.ch <- ev:
		case <-l.done:
		}
	}

	if ev.Terminal() {
		b.close()
	}
}

// Close ends every subscription
func (b *Broadcaster) Close() {
	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()
	b.close()
}

func (b *Broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, l := range b.listeners {
		close(l.ch)
		delete(b.listeners, id)
	}
}
