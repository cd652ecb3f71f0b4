package fingerprint

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/durationpb"
)

type fraction struct {
	num   int
	denum int
}

type fraction4Test struct {
	fraction
	counter         int
	ReturnFromCache *bool `statecache:"hit"`
}

type labels struct {
	Tags  map[string]int
	Owner *string
	Note  string `statecache:"-"`
}

type panicky struct{}

func (*panicky) String() string { panic("boom") }

type withPanicky struct {
	A int
	P *panicky
}

type described struct{ x, y int }

func (d described) DescribeState() []Field {
	return []Field{{Name: "y", Value: d.y}, {Name: "x", Value: d.x}}
}

func TestOf_SortedLevelsMostDerivedFirst(t *testing.T) {
	fr := &fraction4Test{fraction: fraction{num: 2, denum: 3}, counter: 7}
	got := Of(fr)
	// own level: counter; embedded level: denum, num (sorted by name)
	assert.Equal(t, Key("[7][3:2]"), got)
}

func TestOf_Determinism(t *testing.T) {
	a := &fraction4Test{fraction: fraction{num: 5, denum: 3}}
	b := &fraction4Test{fraction: fraction{num: 5, denum: 3}}
	assert.Equal(t, Of(a), Of(b))
	assert.Equal(t, Of(a).Digest(), Of(b).Digest())
	assert.Len(t, Of(a).Short(), 16)
}

func TestOf_StateSensitivity(t *testing.T) {
	fr := &fraction4Test{fraction: fraction{num: 2, denum: 3}}
	before := Of(fr)
	fr.num = 5
	assert.NotEqual(t, before, Of(fr))
	fr.num = 2
	assert.Equal(t, before, Of(fr))
}

func TestOf_HitFlagFieldIgnored(t *testing.T) {
	fr := &fraction4Test{fraction: fraction{num: 2, denum: 3}}
	before := Of(fr)
	hit := true
	fr.ReturnFromCache = &hit
	assert.Equal(t, before, Of(fr))
}

func TestOf_NilPointersAndSkippedFields(t *testing.T) {
	owner := "ada"
	a := labels{Tags: map[string]int{"b": 2, "a": 1}, Note: "x"}
	b := labels{Tags: map[string]int{"a": 1, "b": 2}, Note: "y"}
	assert.Equal(t, Of(a), Of(b), "map order and skipped fields must not matter")
	assert.Equal(t, Key(`[:"map[a:1 b:2]"]`), Of(a))

	b.Owner = &owner
	assert.Equal(t, Key(`[ada:"map[a:1 b:2]"]`), Of(b), "pointers are dereferenced")
}

func TestOf_NonStruct(t *testing.T) {
	assert.Equal(t, Key("[42]"), Of(42))
	assert.Equal(t, Key("[]"), Of(nil))
	assert.Equal(t, Key(`["a:b"]`), Of("a:b"), "separators are quoted")
}

func TestOf_Describer(t *testing.T) {
	got := Of(described{x: 1, y: 2})
	assert.Equal(t, Key("[1:2]"), got)
}

func TestOf_RenderPanicIsRecovered(t *testing.T) {
	k, err := New().Of(withPanicky{A: 1, P: &panicky{}})
	require.Error(t, err)
	assert.Equal(t, Key("[1:]"), k)

	var fe *FieldError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "P", fe.Field)
	assert.Equal(t, 0, fe.Level)
}

func TestOf_ProtoMessageRenderedDeterministically(t *testing.T) {
	type timed struct{ D *durationpb.Duration }
	a := Of(timed{D: durationpb.New(1500)})
	b := Of(timed{D: durationpb.New(1500)})
	c := Of(timed{D: durationpb.New(1501)})
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestCBORRenderer(t *testing.T) {
	fp := New(WithRenderer(CBOR()))
	type bag struct {
		M map[string][]int
		N int
	}
	k1, err := fp.Of(bag{M: map[string][]int{"x": {1}, "y": {2, 3}}, N: 4})
	require.NoError(t, err)
	k2, err := fp.Of(bag{M: map[string][]int{"y": {2, 3}, "x": {1}}, N: 4})
	require.NoError(t, err)
	if diff := cmp.Diff(k1, k2); diff != "" {
		t.Fatalf("keys differ (-first +second):\n%s", diff)
	}
	assert.Contains(t, string(k1), ":4]")
}

func TestNilEmbeddedPointerKeepsLevel(t *testing.T) {
	type base struct{ V int }
	type derived struct {
		*base
		W int
	}
	assert.Equal(t, Key("[1][]"), Of(derived{W: 1}))
	assert.Equal(t, Key("[1][2]"), Of(derived{W: 1, base: &base{V: 2}}))
}

func TestWithSkip(t *testing.T) {
	type flagged struct {
		fraction
		Served *bool
		N      int
	}
	served := true
	v := flagged{fraction: fraction{num: 2, denum: 3}, Served: &served, N: 4}

	k, err := New(WithSkip("Served", "num")).Of(v)
	require.NoError(t, err)
	assert.Equal(t, Key("[4][3]"), k, "skipped names apply at every level")

	base := New()
	skipping := base.Skipping("Served")
	k, err = skipping.Of(v)
	require.NoError(t, err)
	assert.Equal(t, Key("[4][3:2]"), k)

	k, err = base.Of(v)
	require.NoError(t, err)
	assert.Equal(t, Key("[4:true][3:2]"), k, "Skipping must not change the receiver")
}
