// Package statecache memoizes the results of an object's methods per observed
// state of that object.
//
// A wrapped object's methods are classified by dispatch metadata:
//   - Mutator: changes state. After it returns successfully the engine
//     fingerprints the object and activates the StateCache of that state,
//     creating it on first sight.
//   - Cacheable(ttl): pure given state. Served from the active StateCache
//     while the entry is live; a hit slides the deadline by ttl.
//   - anything else passes through to the real method.
//
// Components:
//   - fingerprint.Fingerprinter: renders the object's fields into a Key.
//   - Dispatch: the classification (Policy, or config.File.Policy()).
//   - Invoker: performs the real call (ReflectInvoker or a MethodTable).
//   - HitFlag: tells the object whether the last call was a cache hit.
//
// Registry:
//
//	fingerprint.Key -> StateCache -> method -> (result, deadline)
//
// Arguments are not part of the cache key unless Options.KeyArgs is set.
// A background sweeper prunes dead entries every 500ms by default and drops
// StateCaches left empty.
//
// Typical wrapper:
//
//	type cachedFraction struct{ e statecache.Engine[*Fraction] }
//
//	func (c cachedFraction) DoubleValue(ctx context.Context) (float64, error) {
//		return statecache.Call[float64](ctx, c.e, "DoubleValue")
//	}
package statecache
