package command

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	rmm "github.com/vpscope/vpsagent/shared"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// collector is a sink that keeps every event per session
type collector struct {
	mu     sync.Mutex
	all    []rmm.OutputEvent
	bySess map[string][]rmm.OutputEvent
}

func newCollector() *collector {
	return &collector{bySess: make(map[string][]rmm.OutputEvent)}
}

func (c *collector) Deliver(ev rmm.OutputEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all = append(c.all, ev)
	c.bySess[ev.SessionID] = append(c.bySess[ev.SessionID], ev)
	return nil
}

func (c *collector) Session(id string) []rmm.OutputEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]rmm.OutputEvent(nil), c.bySess[id]...)
}

func wire(evs []rmm.OutputEvent) []rmm.CmdOutput {
	ret := make([]rmm.CmdOutput, len(evs))
	for i, ev := range evs {
		ret[i] = ev.Wire()
	}
	return ret
}

func strp(s string) *string { return &s }

func intp(i int) *int { return &i }
