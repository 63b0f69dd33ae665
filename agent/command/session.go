package command

import (
	"fmt"
	"sync"
	"time"

	rmm "github.com/vpscope/vpsagent/shared"
)

type State int

const (
	StateIdle State = iota
	StateValidating
	StateBlocked
	StateSpawning
	StateRunning
	StateCompleted
	StateSpawnFailed
	StateRuntimeFailed
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateValidating:    "validating",
	StateBlocked:       "blocked",
	StateSpawning:      "spawning",
	StateRunning:       "running",
	StateCompleted:     "completed",
	StateSpawnFailed:   "spawn_failed",
	StateRuntimeFailed: "runtime_failed",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// Terminal reports whether no transition leaves s
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

var transitions = map[State][]State{
	StateIdle:       {StateValidating},
	StateValidating: {StateBlocked, StateSpawning},
	StateSpawning:   {StateRunning, StateSpawnFailed, StateRuntimeFailed},
	StateRunning:    {StateCompleted, StateRuntimeFailed},
}

// Session is one command execution request
type Session struct {
	ID        string
	Command   string
	StartedAt time.Time

	mu    sync.Mutex
	state State
	seq   uint64
}

func NewSession(id, command string) *Session {
	return &Session{
		ID:        id,
		Command:   command,
		StartedAt: time.Now(),
		state:     StateIdle,
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range transitions[s.state] {
		if allowed == to {
			s.state = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.state, to)
}

// Event stamps the next sequence number on a new event
func (s *Session) Event(kind rmm.EventKind, line string, code int) rmm.OutputEvent {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	return rmm.OutputEvent{
		SessionID: s.ID,
		Seq:       s.seq,
		Kind:      kind,
		Line:      line,
		ExitCode:  code,
	}
}

func (s *Session) Info() rmm.SessionInfo {
	return rmm.SessionInfo{
		ID:        s.ID,
		Command:   s.Command,
		State:     s.State().String(),
		StartedAt: s.StartedAt,
	}
}
