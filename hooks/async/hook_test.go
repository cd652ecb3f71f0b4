package asynchook

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/unkn0wn-root/statecache"
	"github.com/unkn0wn-root/statecache/fingerprint"
)

type countingHooks struct {
	statecache.NopHooks
	mu    sync.Mutex
	hits  int
	block chan struct{}
}

func (c *countingHooks) CacheHit(statecache.Method, fingerprint.Key) {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func TestHooks_DeliversAndDrains(t *testing.T) {
	inner := &countingHooks{}
	h := New(inner, 2, 64)
	for i := 0; i < 50; i++ {
		h.CacheHit("DoubleValue", "[1]")
	}
	h.Close()
	assert.Equal(t, 50, inner.hits)
	assert.Zero(t, h.Dropped())
}

func TestHooks_DropsWhenFull(t *testing.T) {
	inner := &countingHooks{block: make(chan struct{})}
	h := New(inner, 1, 1)

	// one event parks the worker, one fills the queue, the rest are dropped
	for i := 0; i < 10; i++ {
		h.CacheHit("DoubleValue", "[1]")
	}
	assert.GreaterOrEqual(t, h.Dropped(), uint64(8))

	close(inner.block)
	h.Close()
	assert.Equal(t, uint64(10), h.Dropped()+uint64(inner.hits))
}

func TestHooks_AfterClose(t *testing.T) {
	h := New(statecache.NopHooks{}, 1, 4)
	h.Close()
	h.Close()
	assert.NotPanics(t, func() { h.Swept(statecache.SweepStats{}) })
	assert.Equal(t, uint64(1), h.Dropped())
}
