package publisher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	rmm "github.com/vpscope/vpsagent/shared"
)

func TestBroadcasterFanOut(t *testing.T) {
	b := NewBroadcaster()
	a, cancelA := b.Subscribe(8)
	defer cancelA()
	c, cancelC := b.Subscribe(8)
	defer cancelC()

	evs := sessionEvents("s1", "x", "y")
	go func() {
		for _, ev := range evs {
			b.Deliver(ev)
		}
	}()

	for _, ch := range []<-chan rmm.OutputEvent{a, c} {
		got := make([]rmm.OutputEvent, 0)
		for ev := range ch {
			got = append(got, ev)
		}
		assert.Equal(t, evs, got)
	}
	assert.Equal(t, 0, b.Len())
}

func TestBroadcasterDetachedListenerDoesNotBlock(t *testing.T) {
	b := NewBroadcaster()
	_, cancel := b.Subscribe(0)
	cancel()
	cancel()

	finished := make(chan struct{})
	go func() {
		b.Deliver(rmm.OutputEvent{SessionID: "s1", Seq: 1, Line: "x"})
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("deliver blocked on a detached listener")
	}
}

func TestBroadcasterSubscribeAfterClose(t *testing.T) {
	b := NewBroadcaster()
	b.Close()

	ch, cancel := b.Subscribe(1)
	defer cancel()

	_, open := <-ch
	assert.False(t, open)
}
