package statecache

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestPolicyClassify(t *testing.T) {
	p := NewPolicy().
		Mutator("Set").
		Cacheable("Get", time.Second).
		Cacheable("Forever", 0).
		Set("Both", Rule{Mutates: true, Cacheable: true, TTL: time.Minute})

	cases := []struct {
		m        Method
		wantKind callKind
		wantTTL  time.Duration
	}{
		{"Set", kindMutator, 0},
		{"Get", kindCacheable, time.Second},
		{"Forever", kindCacheable, 0},
		{"Both", kindMutator, 0},
		{"Other", kindPlain, 0},
	}
	for _, tc := range cases {
		kind, ttl := classify(p, tc.m)
		if kind != tc.wantKind || ttl != tc.wantTTL {
			t.Errorf("%s: got (%s, %v), want (%s, %v)", tc.m, kind, ttl, tc.wantKind, tc.wantTTL)
		}
	}

	if diff := cmp.Diff([]Method{"Both", "Forever", "Get", "Set"}, p.Methods()); diff != "" {
		t.Fatalf("Methods (-want +got):\n%s", diff)
	}
	if r, ok := p.Rule("Get"); !ok || !r.Cacheable || r.Mutates {
		t.Fatalf("Rule(Get) = %+v, %v", r, ok)
	}
}

func TestPolicyMutatorKeepsCacheableRule(t *testing.T) {
	p := NewPolicy().Cacheable("X", time.Second).Mutator("X")
	r, _ := p.Rule("X")
	if !r.Mutates || !r.Cacheable || r.TTL != time.Second {
		t.Fatalf("rule = %+v", r)
	}
}
