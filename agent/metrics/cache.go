package metrics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vpscope/vpsagent/agent/config"
	rmm "github.com/vpscope/vpsagent/shared"
)

// Cache memoizes the last snapshot for a short ttl. The lock is held for the
// whole refresh so concurrent callers share one sampling pass.
type Cache struct {
	sampler       Sampler
	ttl           time.Duration
	sampleTimeout time.Duration
	logger        logrus.FieldLogger
	now           func() time.Time

	mu       sync.Mutex
	last     *rmm.Snapshot
	sampleAt time.Time
}

// NewCache clamps ttl to the 3 to 5 second window. A zero sampleTimeout
// lets a pass run as long as the caller's context allows.
func NewCache(sampler Sampler, ttl, sampleTimeout time.Duration, logger logrus.FieldLogger) *Cache {
	return &Cache{
		sampler:       sampler,
		ttl:           config.ClampTTL(ttl),
		sampleTimeout: sampleTimeout,
		logger:        logger,
		now:           time.Now,
	}
}

func (c *Cache) TTL() time.Duration { return c.ttl }

// Get returns a private copy of a snapshot no older than the ttl. A refresh
// runs to completion even when ctx is cancelled while it is in progress.
func (c *Cache) Get(ctx context.Context) (*rmm.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.last != nil && c.now().Sub(c.sampleAt) < c.ttl {
		return c.last.Clone(), nil
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSamplingUnavailable, err)
	}

	// the pass is shared by every waiting caller, only sampleTimeout bounds it
	sctx := context.Background()
	if c.sampleTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(sctx, c.sampleTimeout)
		defer cancel()
	}

	start := c.now()
	snap, err := c.sampler.Sample(sctx)
	if err != nil {
		return nil, err
	}

	ts := c.now()
	if !ts.After(c.sampleAt) {
		ts = c.sampleAt.Add(time.Nanosecond)
	}
	snap.Timestamp = ts
	c.last = snap
	c.sampleAt = ts

	c.logger.Debugf("metrics refreshed in %s", ts.Sub(start))
	return snap.Clone(), nil
}
