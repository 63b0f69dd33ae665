package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	gocmd "github.com/go-cmd/cmd"
	"github.com/sirupsen/logrus"
	"github.com/vpscope/vpsagent/agent/system"
	"github.com/vpscope/vpsagent/agent/utils"
	rmm "github.com/vpscope/vpsagent/shared"
)

const (
	killGrace    = 3 * time.Second
	startPollInt = 10 * time.Millisecond

	// DefaultLineBufferSize is the longest output line a session can stream
	DefaultLineBufferSize = 1 << 20
)

// Executor runs one validated session and writes its events to out
type Executor interface {
	Run(ctx context.Context, s *Session, out chan<- rmm.OutputEvent) error
}

// Runner spawns the command through the platform shell and streams every
// line of stdout and stderr as an event.
type Runner struct {
	Shell          string
	LineBufferSize uint
	Logger         logrus.FieldLogger
}

func NewRunner(shell string, logger logrus.FieldLogger) *Runner {
	if shell == "" {
		shell = system.DefaultShell
	}
	return &Runner{Shell: shell, LineBufferSize: DefaultLineBufferSize, Logger: logger}
}

// streamWriter remembers the first error the line splitter returned, which
// exec.Cmd.Wait hides behind the child's exit status.
type streamWriter struct {
	w io.Writer

	mu  sync.Mutex
	err error
}

func (sw *streamWriter) Write(p []byte) (int, error) {
	n, err := sw.w.Write(p)
	if err != nil {
		sw.mu.Lock()
		if sw.err == nil {
			sw.err = err
		}
		sw.mu.Unlock()
	}
	return n, err
}

func (sw *streamWriter) Err() error {
	if sw == nil {
		return nil
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.err
}

func streamErr(err error) string {
	var overflow gocmd.ErrLineBufferOverflow
	if errors.As(err, &overflow) {
		return fmt.Sprintf("Error: output line too long (over %d bytes)", overflow.BufferSize)
	}
	return fmt.Sprintf("Error: %s", utils.CleanString(err.Error()))
}

// Run blocks until the process exited and the terminal event was sent.
// The session must be in StateSpawning.
func (r *Runner) Run(ctx context.Context, s *Session, out chan<- rmm.OutputEvent) error {
	var (
		proc          *exec.Cmd
		stdoutW, errW *streamWriter
	)
	cmdOptions := gocmd.Options{
		Buffered:       false,
		Streaming:      true,
		LineBufferSize: r.LineBufferSize,
		BeforeExec: []func(cmd *exec.Cmd){
			func(cmd *exec.Cmd) {
				cmd.SysProcAttr = system.SetDetached()
				stdoutW = &streamWriter{w: cmd.Stdout}
				errW = &streamWriter{w: cmd.Stderr}
				cmd.Stdout = stdoutW
				cmd.Stderr = errW
				proc = cmd
			},
		},
	}

	envCmd := gocmd.NewCmdOptions(cmdOptions, r.Shell, system.ShellArgs(s.Command)...)

	running := false
	markRunning := func() {
		if running {
			return
		}
		running = true
		if err := s.Transition(StateRunning); err != nil {
			r.Logger.Debugln(s.ID, err)
		}
	}

	emit := func(line string) {
		markRunning()
		out <- s.Event(rmm.EventOutput, utils.CleanLine(line), 0)
	}

	envCmd.Start()
	r.Logger.Debugf("session %s started %s %v", s.ID, r.Shell, system.ShellArgs(s.Command))

	go func() {
		select {
		case <-envCmd.Done():
		case <-ctx.Done():
			r.stop(envCmd)
		}
	}()

	ticker := time.NewTicker(startPollInt)
	defer ticker.Stop()
	tick := ticker.C

	stdout, stderr := envCmd.Stdout, envCmd.Stderr
	done := envCmd.Done()
	// Done when both channels have been closed
	// https://dave.cheney.net/2013/04/30/curious-channels
loop:
	for stdout != nil || stderr != nil {
		select {
		case line, open := <-stdout:
			if !open {
				stdout = nil
				continue
			}
			emit(line)

		case line, open := <-stderr:
			if !open {
				stderr = nil
				continue
			}
			emit(line)

		case <-tick:
			if envCmd.Status().PID != 0 {
				markRunning()
				ticker.Stop()
				tick = nil
			}

		case <-done:
			// the streams are not closed when the process never started
			for {
				select {
				case line, open := <-stdout:
					if !open {
						stdout = nil
						continue
					}
					emit(line)
				case line, open := <-stderr:
					if !open {
						stderr = nil
						continue
					}
					emit(line)
				default:
					break loop
				}
			}
		}
	}

	<-envCmd.Done()
	st := envCmd.Status()

	switch {
	case st.PID == 0 && st.Error != nil:
		msg := fmt.Sprintf("Error: %s", utils.CleanString(st.Error.Error()))
		return r.finish(s, out, StateSpawnFailed, msg, fmt.Errorf("%w: %v", ErrSpawn, st.Error))

	case ctx.Err() != nil && !st.Complete:
		markRunning()
		err := ErrCancelled
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = ErrTimedOut
		}
		return r.finish(s, out, StateRuntimeFailed, fmt.Sprintf("Error: %s", err), err)

	case stdoutW.Err() != nil || errW.Err() != nil:
		markRunning()
		err := stdoutW.Err()
		if err == nil {
			err = errW.Err()
		}
		return r.finish(s, out, StateRuntimeFailed, streamErr(err), fmt.Errorf("%w: %v", ErrStreaming, err))
	}

	code := st.Exit
	var ps *os.ProcessState
	if proc != nil {
		ps = proc.ProcessState
	}
	if signo, ok := system.ExitSignal(ps); ok {
		code = -signo
	} else if st.Error != nil {
		markRunning()
		return r.finish(s, out, StateRuntimeFailed, streamErr(st.Error), fmt.Errorf("%w: %v", ErrStreaming, st.Error))
	}

	markRunning()
	if err := s.Transition(StateCompleted); err != nil {
		r.Logger.Debugln(s.ID, err)
	}
	out <- s.Event(rmm.EventExit, "", code)
	r.Logger.Debugf("session %s exited with %d", s.ID, code)
	return nil
}

func (r *Runner) finish(s *Session, out chan<- rmm.OutputEvent, state State, msg string, err error) error {
	if tErr := s.Transition(state); tErr != nil {
		r.Logger.Debugln(s.ID, tErr)
	}
	out <- s.Event(rmm.EventError, msg, -1)
	r.Logger.Debugf("session %s: %v", s.ID, err)
	return err
}

// stop kills the process tree and its process group
func (r *Runner) stop(envCmd *gocmd.Cmd) {
	kill := func() {
		if pid := envCmd.Status().PID; pid != 0 {
			if err := system.KillProc(int32(pid)); err != nil {
				r.Logger.Debugln("KillProc():", err)
			}
		}
	}

	kill()
	if err := envCmd.Stop(); err != nil {
		r.Logger.Debugln("Stop():", err)
	}

	select {
	case <-envCmd.Done():
	case <-time.After(killGrace):
		r.Logger.Warnln("process still alive after stop, killing again")
		kill()
	}
}
