package command

import (
	"context"
	"math/rand"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vpscope/vpsagent/agent/publisher"
	rmm "github.com/vpscope/vpsagent/shared"
)

// countingExec records spawns and echoes the command back as one line
type countingExec struct {
	spawns int64
	block  chan struct{}
}

func (c *countingExec) Run(ctx context.Context, s *Session, out chan<- rmm.OutputEvent) error {
	atomic.AddInt64(&c.spawns, 1)
	if err := s.Transition(StateRunning); err != nil {
		return err
	}
	out <- s.Event(rmm.EventOutput, s.Command, 0)

	if c.block != nil {
		select {
		case <-c.block:
		case <-ctx.Done():
			s.Transition(StateRuntimeFailed)
			out <- s.Event(rmm.EventError, "Error: "+ErrCancelled.Error(), -1)
			return ErrCancelled
		}
	}

	s.Transition(StateCompleted)
	out <- s.Event(rmm.EventExit, "", 0)
	return nil
}

func newTestManager(exec Executor, timeout time.Duration) *Manager {
	return NewManager(exec, publisher.New(quietLogger()), timeout, quietLogger())
}

func TestManagerBlockedNeverSpawns(t *testing.T) {
	exec := &countingExec{}
	m := newTestManager(exec, 0)
	sink := newCollector()

	r := rand.New(rand.NewSource(7))
	ids := make([]string, 0, 500)
	for i := 0; i < 500; i++ {
		id, err := m.Start(randomDenied(r), sink)
		require.ErrorIs(t, err, ErrBlocked)
		require.NotEmpty(t, id)
		ids = append(ids, id)
	}

	id, err := m.Start("rm -rf /", sink)
	require.ErrorIs(t, err, ErrBlocked)
	ids = append(ids, id)

	m.Wait()

	assert.Equal(t, int64(0), atomic.LoadInt64(&exec.spawns))
	for _, id := range ids {
		evs := sink.Session(id)
		require.Len(t, evs, 1)
		assert.Equal(t, rmm.EventBlocked, evs[0].Kind)
		assert.Nil(t, evs[0].Wire().Exit)
		assert.NotNil(t, evs[0].Wire().Output)
	}
	assert.Empty(t, m.Sessions())
}

func TestManagerEmptyCommand(t *testing.T) {
	m := newTestManager(&countingExec{}, 0)
	sink := newCollector()

	id, err := m.Start("   ", sink)
	require.ErrorIs(t, err, ErrEmptyCommand)
	m.Wait()

	evs := sink.Session(id)
	require.Len(t, evs, 1)
	assert.Equal(t, "Error: empty command", evs[0].Line)
}

func TestManagerRunsAcceptedCommand(t *testing.T) {
	exec := &countingExec{}
	m := newTestManager(exec, 0)
	sink := newCollector()

	id, err := m.Start("uptime", sink)
	require.NoError(t, err)
	m.Wait()

	assert.Equal(t, int64(1), atomic.LoadInt64(&exec.spawns))
	expected := []rmm.CmdOutput{{Output: strp("uptime")}, {Exit: intp(0)}}
	assert.Equal(t, expected, wire(sink.Session(id)))
}

func TestManagerCancel(t *testing.T) {
	exec := &countingExec{block: make(chan struct{})}
	m := newTestManager(exec, 0)
	sink := newCollector()

	assert.ErrorIs(t, m.Cancel("nope"), ErrUnknownSession)

	id, err := m.Start("uptime", sink)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return len(m.Sessions()) == 1 }, 5*time.Second, 5*time.Millisecond)
	info := m.Sessions()[0]
	assert.Equal(t, id, info.ID)
	assert.Equal(t, "uptime", info.Command)

	require.NoError(t, m.Cancel(id))
	m.Wait()

	evs := sink.Session(id)
	require.Len(t, evs, 2)
	assert.Equal(t, rmm.CmdOutput{Output: strp("Error: command cancelled"), Exit: intp(-1)}, evs[1].Wire())
	assert.Empty(t, m.Sessions())
	assert.ErrorIs(t, m.Cancel(id), ErrUnknownSession)
}

func TestManagerShutdown(t *testing.T) {
	exec := &countingExec{block: make(chan struct{})}
	m := newTestManager(exec, 0)
	sink := newCollector()

	for i := 0; i < 3; i++ {
		_, err := m.Start("uptime", sink)
		require.NoError(t, err)
	}

	finished := make(chan struct{})
	go func() {
		m.Shutdown()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("shutdown did not stop sessions")
	}
}

func TestManagerConcurrentSessionsKeepOrder(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses seq")
	}

	m := newTestManager(NewRunner("", quietLogger()), 0)
	sink := newCollector()

	var wg sync.WaitGroup
	ids := make([]string, 2)
	errs := make([]error, 2)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = m.Start("seq 1 200", sink)
		}(i)
	}
	wg.Wait()
	m.Wait()

	for i, id := range ids {
		require.NoError(t, errs[i])
		evs := sink.Session(id)
		require.Len(t, evs, 201)
		for n, ev := range evs[:200] {
			assert.Equal(t, uint64(n+1), ev.Seq)
			assert.Equal(t, rmm.EventOutput, ev.Kind)
		}
		assert.Equal(t, "1", evs[0].Line)
		assert.Equal(t, "200", evs[199].Line)
		assert.Equal(t, rmm.EventExit, evs[200].Kind)
		assert.Equal(t, 0, evs[200].ExitCode)
	}
}

func TestManagerCommandTimeout(t *testing.T) {
	exec := &countingExec{block: make(chan struct{})}
	m := newTestManager(exec, 100*time.Millisecond)
	sink := newCollector()

	id, err := m.Start("uptime", sink)
	require.NoError(t, err)
	m.Wait()

	evs := sink.Session(id)
	require.Len(t, evs, 2)
	assert.Equal(t, "Error: command cancelled", evs[1].Line)
	assert.Equal(t, -1, evs[1].ExitCode)
}
