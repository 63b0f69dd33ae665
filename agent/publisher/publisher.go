package publisher

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
	rmm "github.com/vpscope/vpsagent/shared"
)

var ErrNoRoute = errors.New("no sink registered for session")

// Sink is the transport a session's events are written to
type Sink interface {
	Deliver(ev rmm.OutputEvent) error
}

// SinkFunc adapts a plain function to a Sink
type SinkFunc func(ev rmm.OutputEvent) error

func (f SinkFunc) Deliver(ev rmm.OutputEvent) error { return f(ev) }

type route struct {
	sink Sink
	bc   *Broadcaster
}

// Publisher routes each session's events to the sink registered for it and
// to any observers attached to that session.
type Publisher struct {
	logger logrus.FieldLogger

	mu     sync.RWMutex
	routes map[string]*route
}

func New(logger logrus.FieldLogger) *Publisher {
	return &Publisher{
		logger: logger,
		routes: make(map[string]*route),
	}
}

func (p *Publisher) Register(sessionID string, sink Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.routes[sessionID] = &route{sink: sink, bc: NewBroadcaster()}
}

func (p *Publisher) Unregister(sessionID string) {
	p.mu.Lock()
	r, ok := p.routes[sessionID]
	delete(p.routes, sessionID)
	p.mu.Unlock()

	if ok {
		r.bc.Close()
	}
}

// Publish hands one event to the session's observers, then to its sink
func (p *Publisher) Publish(ev rmm.OutputEvent) error {
	p.mu.RLock()
	r, ok := p.routes[ev.SessionID]
	p.mu.RUnlock()
	if !ok {
		return ErrNoRoute
	}

	r.bc.Deliver(ev)
	return r.sink.Deliver(ev)
}

// Attach subscribes an extra observer to a live session. Events published
// before the call are not replayed.
func (p *Publisher) Attach(sessionID string) (<-chan rmm.OutputEvent, func(), error) {
	p.mu.RLock()
	r, ok := p.routes[sessionID]
	p.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNoRoute
	}

	ch, cancel := r.bc.Subscribe(64)
	return ch, cancel, nil
}

// Watchers returns the number of observers attached to a live session
func (p *Publisher) Watchers(sessionID string) int {
	p.mu.RLock()
	r, ok := p.routes[sessionID]
	p.mu.RUnlock()
	if !ok {
		return 0
	}
	return r.bc.Len()
}

// Stream registers sink for the session and pumps events to it in order
// until events is closed. The returned channel is closed once the last
// event was delivered and the route removed.
func (p *Publisher) Stream(sessionID string, sink Sink, events <-chan rmm.OutputEvent) <-chan struct{} {
	p.Register(sessionID, sink)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer p.Unregister(sessionID)

		failed := false
		for ev := range events {
			if err := p.Publish(ev); err != nil && !failed {
				// keep draining so the producer never blocks on a dead listener
				failed = true
				p.logger.Debugf("session %s: delivery failed at seq %d: %v", sessionID, ev.Seq, err)
			}
		}
	}()

	return done
}
