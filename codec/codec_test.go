package codec_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unkn0wn-root/statecache"
	"github.com/unkn0wn-root/statecache/codec"
)

func sampleSnapshot() statecache.Snapshot {
	deadline := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return statecache.Snapshot{
		"[][3:2]": {Active: true, Entries: []statecache.EntryInfo{
			{Key: "DoubleValue", Deadline: deadline, Live: true},
		}},
		"[][3:5]": {Entries: []statecache.EntryInfo{
			{Key: "Forever", Live: true},
		}},
	}
}

func TestNamed_RoundTripSnapshot(t *testing.T) {
	for _, name := range codec.Names {
		t.Run(name, func(t *testing.T) {
			c, err := codec.Named[statecache.Snapshot](name, 0)
			require.NoError(t, err)

			in := sampleSnapshot()
			b, err := c.Encode(in)
			require.NoError(t, err)
			out, err := c.Decode(b)
			require.NoError(t, err)

			// compare instants; decoders may attach a different Location
			if diff := cmp.Diff(in, out, cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })); diff != "" {
				t.Fatalf("round trip (-in +out):\n%s", diff)
			}
		})
	}
}

func TestNamed_Unknown(t *testing.T) {
	_, err := codec.Named[int]("xml", 0)
	assert.ErrorContains(t, err, "unknown codec")
}

func TestCBOR_DeterministicBytes(t *testing.T) {
	c, err := codec.NewCBOR[map[string]int](true)
	require.NoError(t, err)
	a, err := c.Encode(map[string]int{"a": 1, "b": 2, "c": 3})
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		b, err := c.Encode(map[string]int{"c": 3, "b": 2, "a": 1})
		require.NoError(t, err)
		assert.Equal(t, a, b)
	}
}

func TestLimit_RejectsLargePayloads(t *testing.T) {
	c, err := codec.Named[statecache.Snapshot]("json", 16)
	require.NoError(t, err)

	b, err := c.Encode(sampleSnapshot())
	require.NoError(t, err, "Encode is not limited")

	_, err = c.Decode(b)
	assert.ErrorContains(t, err, "payload too large")

	_, err = c.Decode([]byte(`{}`))
	assert.NoError(t, err)
}
