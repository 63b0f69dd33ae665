package command

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vpscope/vpsagent/agent/publisher"
	rmm "github.com/vpscope/vpsagent/shared"
)

const eventBuffer = 256

type entry struct {
	session *Session
	cancel  context.CancelFunc
}

// Manager accepts commands, runs each one in its own goroutine and streams
// its events through the publisher.
type Manager struct {
	exec    Executor
	pub     *publisher.Publisher
	logger  logrus.FieldLogger
	timeout time.Duration

	ctx       context.Context
	cancelAll context.CancelFunc

	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

// NewManager builds a Manager. A zero timeout lets commands run to completion.
func NewManager(exec Executor, pub *publisher.Publisher, timeout time.Duration, logger logrus.FieldLogger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		exec:      exec,
		pub:       pub,
		logger:    logger,
		timeout:   timeout,
		ctx:       ctx,
		cancelAll: cancel,
		sessions:  make(map[string]*entry),
	}
}

func (m *Manager) Publisher() *publisher.Publisher { return m.pub }

// Start validates the command and returns as soon as it is accepted or
// rejected. A rejected command still gets a session id, its single blocked
// event is delivered to sink and the validation error is returned.
func (m *Manager) Start(command string, sink publisher.Sink) (string, error) {
	s := NewSession(uuid.NewString(), command)
	if err := s.Transition(StateValidating); err != nil {
		return "", err
	}

	events := make(chan rmm.OutputEvent, eventBuffer)
	done := m.pub.Stream(s.ID, sink, events)

	v := Validate(command)
	if !v.Allowed {
		s.Transition(StateBlocked)
		events <- s.Event(rmm.EventBlocked, v.Reason, 0)
		close(events)

		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			<-done
		}()

		m.logger.Infof("session %s blocked: %s", s.ID, v.Reason)
		return s.ID, v.Err
	}

	s.Transition(StateSpawning)

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(m.ctx, m.timeout)
	} else {
		ctx, cancel = context.WithCancel(m.ctx)
	}

	m.mu.Lock()
	m.sessions[s.ID] = &entry{session: s, cancel: cancel}
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer cancel()

		err := m.exec.Run(ctx, s, events)
		close(events)
		<-done

		m.mu.Lock()
		delete(m.sessions, s.ID)
		m.mu.Unlock()

		if err != nil {
			m.logger.Debugf("session %s ended in %s: %v", s.ID, s.State(), err)
		}
	}()

	m.logger.Debugf("session %s accepted", s.ID)
	return s.ID, nil
}

// Cancel stops a running session. Its terminal event reports the cancellation.
func (m *Manager) Cancel(sessionID string) error {
	m.mu.Lock()
	e, ok := m.sessions[sessionID]
	m.mu.Unlock()
	if !ok {
		return ErrUnknownSession
	}

	e.cancel()
	return nil
}

// Sessions lists live sessions, oldest first
func (m *Manager) Sessions() []rmm.SessionInfo {
	m.mu.Lock()
	ret := make([]rmm.SessionInfo, 0, len(m.sessions))
	for _, e := range m.sessions {
		ret = append(ret, e.session.Info())
	}
	m.mu.Unlock()

	sort.Slice(ret, func(i, j int) bool {
		return ret[i].StartedAt.Before(ret[j].StartedAt)
	})
	return ret
}

// Wait blocks until every session delivered its final event
func (m *Manager) Wait() {
	m.wg.Wait()
}

// Shutdown cancels every running session and waits for them
func (m *Manager) Shutdown() {
	m.cancelAll()
	m.wg.Wait()
}
