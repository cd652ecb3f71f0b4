package statecache

import (
	"sort"
	"time"

	"github.com/unkn0wn-root/statecache/fingerprint"
)

// EntryInfo describes one cached result. A zero Deadline means the entry
// never expires.
type EntryInfo struct {
	Key      string    `json:"key" msgpack:"key" cbor:"key"`
	Deadline time.Time `json:"deadline" msgpack:"deadline" cbor:"deadline"`
	Live     bool      `json:"live" msgpack:"live" cbor:"live"`
}

// StateInfo describes one StateCache.
type StateInfo struct {
	Active  bool        `json:"active" msgpack:"active" cbor:"active"`
	Entries []EntryInfo `json:"entries" msgpack:"entries" cbor:"entries"`
}

// Snapshot is a point-in-time copy of the registry. Encode it with any
// codec.Codec[Snapshot] for dumps.
type Snapshot map[fingerprint.Key]StateInfo

// Keys returns the registered fingerprints, sorted.
func (s Snapshot) Keys() []fingerprint.Key {
	keys := make([]fingerprint.Key, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Entries returns the total number of entries across states.
func (s Snapshot) Entries() int {
	n := 0
	for _, si := range s {
		n += len(si.Entries)
	}
	return n
}

func (e *engine[T]) SnapshotRegistry() Snapshot {
	e.regMu.Lock()
	states := make(map[fingerprint.Key]*stateCache, len(e.registry))
	for k, st := range e.registry {
		states[k] = st
	}
	active := e.active.Load()
	e.regMu.Unlock()

	now := e.now()
	out := make(Snapshot, len(states))
	for k, st := range states {
		out[k] = st.info(now, st == active)
	}
	return out
}
