package statecache

import (
	"sort"
	"sync"
	"time"

	"github.com/unkn0wn-root/statecache/fingerprint"
)

// stateCache holds every cached result valid for one fingerprint.
// mu guards entries and retired. It is the only lock taken by the read path and
// the one the sweeper takes while pruning this state.
type stateCache struct {
	key fingerprint.Key

	mu      sync.Mutex
	entries map[string]*timedEntry
	// retired is set by the sweeper when it drops this state from the registry
	// for being empty. A retired stateCache is never registered again.
	retired bool
}

func newStateCache(key fingerprint.Key) *stateCache {
	return &stateCache{key: key, entries: make(map[string]*timedEntry)}
}

// prune removes dead entries and reports how many were removed.
func (s *stateCache) prune(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for k, e := range s.entries {
		if e == nil || !e.live(now) {
			delete(s.entries, k)
			removed++
		}
	}
	return removed
}

// retireIfEmpty marks an empty state retired. Caller holds the registry lock.
func (s *stateCache) retireIfEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) > 0 {
		return false
	}
	s.retired = true
	return true
}

func (s *stateCache) info(now time.Time, active bool) StateInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	si := StateInfo{Active: active, Entries: make([]EntryInfo, 0, len(s.entries))}
	for k, e := range s.entries {
		si.Entries = append(si.Entries, EntryInfo{
			Key:      k,
			Deadline: e.deadline,
			Live:     e.live(now),
		})
	}
	sort.Slice(si.Entries, func(i, j int) bool { return si.Entries[i].Key < si.Entries[j].Key })
	return si
}
