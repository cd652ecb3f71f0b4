package main

import (
	"context"
	"fmt"

	"github.com/unkn0wn-root/statecache"
)

// Fraction is the wrapped object of the demo.
type Fraction struct {
	Num   int
	Denum int

	ReturnFromCache *bool `statecache:"hit"`
}

func (f *Fraction) SetNum(n int)         { f.Num = n }
func (f *Fraction) SetDenum(d int)       { f.Denum = d }
func (f *Fraction) DoubleValue() float64 { return float64(f.Num) / float64(f.Denum) }
func (f *Fraction) String() string       { return fmt.Sprintf("%d/%d", f.Num, f.Denum) }

// Hit reports how the last call was served: "hit", "miss" or "-".
func (f *Fraction) Hit() string {
	switch {
	case f.ReturnFromCache == nil:
		return "-"
	case *f.ReturnFromCache:
		return "hit"
	}
	return "miss"
}

// cachedFraction forwards every method to the engine.
type cachedFraction struct {
	e statecache.Engine[*Fraction]
}

func (c cachedFraction) SetNum(ctx context.Context, n int) error {
	_, err := c.e.Handle(ctx, "SetNum", n)
	return err
}

func (c cachedFraction) SetDenum(ctx context.Context, d int) error {
	_, err := c.e.Handle(ctx, "SetDenum", d)
	return err
}

func (c cachedFraction) DoubleValue(ctx context.Context) (float64, error) {
	return statecache.Call[float64](ctx, c.e, "DoubleValue")
}

func (c cachedFraction) String(ctx context.Context) (string, error) {
	return statecache.Call[string](ctx, c.e, "String")
}
