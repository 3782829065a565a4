package service

import (
	"context"
	"sync"
	"time"

	"github.com/kjstillabower/daily-forecast-service/internal/models"
)

// call is one in-flight document load shared by every caller asking for the same key.
type call struct {
	done chan struct{}
	doc  models.Document
	err  error
}

// loadCoalescer collapses concurrent loads of the same key into one. The load runs detached
// from any single caller so a caller giving up does not fail the others.
type loadCoalescer struct {
	mu       sync.Mutex
	inFlight map[string]*call
	timeout  time.Duration
}

func newLoadCoalescer(timeout time.Duration) *loadCoalescer {
	return &loadCoalescer{
		inFlight: make(map[string]*call),
		timeout:  timeout,
	}
}

// Do returns the result of fn for key, sharing it with concurrent callers. shared reports
// whether this caller joined a load started by someone else. Waiting is bounded by ctx and
// the coalescer timeout.
func (lc *loadCoalescer) Do(ctx context.Context, key string, fn func(context.Context) (models.Document, error)) (doc models.Document, shared bool, err error) {
	lc.mu.Lock()
	c, ok := lc.inFlight[key]
	if !ok {
		c = &call{done: make(chan struct{})}
		lc.inFlight[key] = c
		go lc.run(key, c, fn)
	}
	lc.mu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, lc.timeout)
	defer cancel()
	select {
	case <-c.done:
		return c.doc, ok, c.err
	case <-waitCtx.Done():
		return models.Document{}, ok, waitCtx.Err()
	}
}

func (lc *loadCoalescer) run(key string, c *call, fn func(context.Context) (models.Document, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), lc.timeout)
	defer cancel()
	c.doc, c.err = fn(ctx)

	lc.mu.Lock()
	delete(lc.inFlight, key)
	lc.mu.Unlock()
	close(c.done)
}
