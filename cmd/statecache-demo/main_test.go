package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/statecache"
	"github.com/unkn0wn-root/statecache/codec"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) wait(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return nil
}

func testOptions(backend, hooks, dumpName string) runOptions {
	clk := &testClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	return runOptions{
		log:   logSetup{backend: backend, level: "info", format: "json"},
		hooks: hooks,
		dump:  dumpName,
		ttl:   time.Second,
		now:   clk.now,
		wait:  clk.wait,
		// the scenario inspects dead entries before sweeping them
		sweepEvery: -1,
	}
}

// servedSequence extracts the "served" field of each DoubleValue log line.
func servedSequence(t *testing.T, logs string) []string {
	t.Helper()
	var out []string
	for _, ln := range strings.Split(strings.TrimSpace(logs), "\n") {
		m := map[string]any{}
		if err := json.Unmarshal([]byte(ln), &m); err != nil {
			continue
		}
		if m["msg"] == "DoubleValue." {
			out = append(out, m["served"].(string))
		}
	}
	return out
}

func TestRun_Scenario(t *testing.T) {
	var out, logs bytes.Buffer
	require.NoError(t, run(context.Background(), &out, &logs, testOptions("slog", "none", "json")))

	assert.Equal(t,
		[]string{"miss", "hit", "miss", "hit", "hit", "miss"},
		servedSequence(t, logs.String()))

	snap, err := codec.JSON[statecache.Snapshot]{}.Decode(out.Bytes())
	require.NoError(t, err)
	require.Len(t, snap, 2)
	active := snap["[3:2]"]
	assert.True(t, active.Active)
	require.Len(t, active.Entries, 1)
	assert.Equal(t, "DoubleValue", active.Entries[0].Key)
	assert.True(t, active.Entries[0].Live)
	assert.False(t, snap["[3:5]"].Entries[0].Live, "the 5/3 entry expired during the wait")
}

func TestRun_LoggersAndHooks(t *testing.T) {
	for _, backend := range []string{"slog", "zap", "logrus"} {
		for _, hooks := range []string{"slog", "prom", "otel", "none"} {
			t.Run(backend+"/"+hooks, func(t *testing.T) {
				var out, logs bytes.Buffer
				require.NoError(t, run(context.Background(), &out, &logs, testOptions(backend, hooks, "")))
				assert.Empty(t, out.String(), "no dump requested")
				assert.Len(t, servedSequence(t, logs.String()), 6)
			})
		}
	}
}

func TestRun_PromReport(t *testing.T) {
	var out, logs bytes.Buffer
	require.NoError(t, run(context.Background(), &out, &logs, testOptions("slog", "prom", "")))
	assert.Contains(t, logs.String(), `"name":"statecache_hits_total","value":3`)
	assert.Contains(t, logs.String(), `"name":"statecache_misses_total","value":3`)
}

func TestRun_BinaryDumps(t *testing.T) {
	for _, name := range []string{"msgpack", "cbor"} {
		var out, logs bytes.Buffer
		require.NoError(t, run(context.Background(), &out, &logs, testOptions("slog", "none", name)))
		c, err := codec.Named[statecache.Snapshot](name, 0)
		require.NoError(t, err)
		snap, err := c.Decode(out.Bytes())
		require.NoError(t, err, name)
		assert.Len(t, snap, 2, name)
	}
}

func TestRun_Config(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	cfg := `
name: from-config
sweep_interval: -1s
methods:
  SetNum: {kind: mutator}
  SetDenum: {kind: mutator}
  DoubleValue: {kind: cacheable, ttl: 0s}
extra: true
`
	require.NoError(t, os.WriteFile(path, []byte(cfg), 0o600))

	ro := testOptions("slog", "none", "")
	ro.configPath = path
	var out, logs bytes.Buffer
	require.NoError(t, run(context.Background(), &out, &logs, ro))

	// untimed: the last read is still a hit after the wait
	assert.Equal(t,
		[]string{"miss", "hit", "miss", "hit", "hit", "hit"},
		servedSequence(t, logs.String()))
	assert.Contains(t, logs.String(), "unknown configuration keys: extra")

	ro.strict = true
	err := run(context.Background(), &out, &logs, ro)
	assert.ErrorContains(t, err, "extra")
}

func TestRun_BadFlags(t *testing.T) {
	var out, logs bytes.Buffer
	ro := testOptions("glog", "none", "")
	assert.ErrorContains(t, run(context.Background(), &out, &logs, ro), "unknown logger")

	ro = testOptions("slog", "statsd", "")
	assert.ErrorContains(t, run(context.Background(), &out, &logs, ro), "unknown hooks")

	ro = testOptions("slog", "none", "xml")
	assert.ErrorContains(t, run(context.Background(), &out, &logs, ro), "unknown codec")
}
