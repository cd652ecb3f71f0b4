package statecache

import (
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/statecache/internal/invariant"
)

// SweepStats describes one sweep pass.
type SweepStats struct {
	EntriesRemoved  int
	StatesRemoved   int
	StatesRemaining int
	Duration        time.Duration
}

func (e *engine[T]) sweepLoop() {
	defer e.closeWg.Done()
	for {
		select {
		case <-e.ticker.C:
			e.sweep()
		case <-e.stopCh:
			return
		}
	}
}

func (e *engine[T]) StopBackgroundSweep() {
	e.closeOnce.Do(func() {
		if e.stopCh != nil {
			close(e.stopCh)
			e.closeWg.Wait()
			if e.ticker != nil {
				e.ticker.Stop()
			}
		}
	})
}

func (e *engine[T]) RunSweepNow() SweepStats { return e.sweep() }

// sweep prunes dead entries from every registered StateCache, then drops the
// StateCaches left empty. It never panics.
//
//  1. snapshot the registry (registry lock);
//  2. prune each state under its own lock, up to sweepWorkers at a time;
//  3. retire and unregister empty states (registry lock, then each state lock).
func (e *engine[T]) sweep() (stats SweepStats) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			invariant.Raise("sweep", "sweep_panicked", "Sweep pass panicked.", "engine", e.name, "panic", r)
			e.log.Error("sweep pass panicked", e.fields.with("panic", fmt.Sprint(r)))
		}
		stats.Duration = time.Since(start)
		e.hooks.Swept(stats)
	}()

	e.regMu.Lock()
	states := make([]*stateCache, 0, len(e.registry))
	for _, st := range e.registry {
		states = append(states, st)
	}
	e.regMu.Unlock()

	now := e.now()
	var removed atomic.Int64
	var g errgroup.Group
	g.SetLimit(e.sweepWorkers)
	for _, st := range states {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("prune %s: %v", st.key.Short(), r)
				}
			}()
			removed.Add(int64(st.prune(now)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		invariant.Raise("sweep", "prune_panicked", "Pruning a state panicked.", "engine", e.name, "error", err)
		e.log.Error("prune failed", e.fields.with("err", err))
	}
	stats.EntriesRemoved = int(removed.Load())

	e.regMu.Lock()
	for k, st := range e.registry {
		if st.retireIfEmpty() {
			delete(e.registry, k)
			stats.StatesRemoved++
		}
	}
	stats.StatesRemaining = len(e.registry)
	e.regMu.Unlock()

	if stats.EntriesRemoved > 0 || stats.StatesRemoved > 0 {
		e.log.Debug("sweep", e.fields.with(
			"entries_removed", stats.EntriesRemoved,
			"states_removed", stats.StatesRemoved,
			"states", stats.StatesRemaining))
	}
	return stats
}
