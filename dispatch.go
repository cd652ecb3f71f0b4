package statecache

import (
	"sort"
	"time"
)

// Method identifies a method of the wrapped object by name.
type Method string

// Dispatch is the per-method metadata the engine classifies calls with.
//
// Contract:
//   - A method for which IsMutator is true is a mutator, whatever CacheableTTL says.
//     It always runs and moves the engine to the new state; its result is
//     never cached, not even in that new state.
//   - CacheableTTL reports ok=false for methods that are not cacheable.
//     A ttl <= 0 means cached results never expire.
//   - Implementations are read concurrently and must not change after New.
type Dispatch interface {
	IsMutator(m Method) bool
	CacheableTTL(m Method) (ttl time.Duration, ok bool)
}

// PolicyProvider is implemented by targets that declare their own metadata.
// It is consulted only when Options.Dispatch is nil.
type PolicyProvider interface {
	CachePolicy() Dispatch
}

// Rule is the metadata of one method.
type Rule struct {
	Mutates   bool
	Cacheable bool
	TTL       time.Duration
}

// Policy is a Dispatch built in code or loaded by the config package.
// Methods without a rule are plain pass-through calls.
type Policy struct {
	rules map[Method]Rule
}

var _ Dispatch = (*Policy)(nil)

func NewPolicy() *Policy {
	return &Policy{rules: make(map[Method]Rule)}
}

// Mutator marks methods as state-changing.
func (p *Policy) Mutator(ms ...Method) *Policy {
	for _, m := range ms {
		r := p.rules[m]
		r.Mutates = true
		p.rules[m] = r
	}
	return p
}

// Cacheable marks m as cacheable with the given ttl (<= 0: never expires).
func (p *Policy) Cacheable(m Method, ttl time.Duration) *Policy {
	r := p.rules[m]
	r.Cacheable = true
	r.TTL = ttl
	p.rules[m] = r
	return p
}

// Set replaces the rule of m.
func (p *Policy) Set(m Method, r Rule) *Policy {
	p.rules[m] = r
	return p
}

func (p *Policy) Rule(m Method) (Rule, bool) {
	r, ok := p.rules[m]
	return r, ok
}

// Methods returns the methods with a rule, sorted.
func (p *Policy) Methods() []Method {
	out := make([]Method, 0, len(p.rules))
	for m := range p.rules {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (p *Policy) IsMutator(m Method) bool {
	return p.rules[m].Mutates
}

func (p *Policy) CacheableTTL(m Method) (time.Duration, bool) {
	r := p.rules[m]
	return r.TTL, r.Cacheable
}

type callKind uint8

const (
	kindPlain callKind = iota
	kindMutator
	kindCacheable
)

func (k callKind) String() string {
	switch k {
	case kindMutator:
		return "mutator"
	case kindCacheable:
		return "cacheable"
	default:
		return "plain"
	}
}

// classify applies mutator precedence.
func classify(d Dispatch, m Method) (callKind, time.Duration) {
	if d.IsMutator(m) {
		return kindMutator, 0
	}
	if ttl, ok := d.CacheableTTL(m); ok {
		return kindCacheable, ttl
	}
	return kindPlain, 0
}
