package statecache

import (
	"context"
	"fmt"
	"reflect"
)

// Invoker performs the real method call on the wrapped object.
//
// Contract:
//   - Returns the method's result and its failure, if any, unchanged.
//   - May be called concurrently.
type Invoker interface {
	Invoke(ctx context.Context, target any, m Method, args []any) (any, error)
}

// MethodResolver is optionally implemented by an Invoker that can tell whether
// the target has a method at all. The engine uses it to degrade calls that
// dispatch metadata names but the target lacks to plain pass-through calls.
type MethodResolver interface {
	HasMethod(target any, m Method) bool
}

// MethodFunc is one entry of a MethodTable.
type MethodFunc func(ctx context.Context, args []any) (any, error)

// MethodTable is an Invoker for hand-written wrappers: each method is a closure
// over the wrapped object, so no reflection happens on the call path.
type MethodTable map[Method]MethodFunc

var (
	_ Invoker        = MethodTable(nil)
	_ MethodResolver = MethodTable(nil)
)

func (t MethodTable) Invoke(ctx context.Context, _ any, m Method, args []any) (any, error) {
	fn, ok := t[m]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMethodNotFound, m)
	}
	return callGuarded(func() (any, error) { return fn(ctx, args) })
}

func (t MethodTable) HasMethod(_ any, m Method) bool {
	_, ok := t[m]
	return ok
}

// ReflectInvoker calls exported methods by name.
//
// If the method's first parameter is a context.Context and the call supplies
// one argument fewer than the method takes, the call's ctx is passed first.
// A trailing error result becomes the returned error. Zero results yield nil,
// one result yields the value and more yield []any of the non-error results.
type ReflectInvoker struct{}

var (
	_ Invoker        = ReflectInvoker{}
	_ MethodResolver = ReflectInvoker{}

	ctxType = reflect.TypeFor[context.Context]()
	errType = reflect.TypeFor[error]()
)

func (ReflectInvoker) HasMethod(target any, m Method) bool {
	return reflect.ValueOf(target).MethodByName(string(m)).IsValid()
}

func (ReflectInvoker) Invoke(ctx context.Context, target any, m Method, args []any) (any, error) {
	mv := reflect.ValueOf(target).MethodByName(string(m))
	if !mv.IsValid() {
		return nil, fmt.Errorf("%w: %s on %T", ErrMethodNotFound, m, target)
	}
	in, err := buildArgs(ctx, mv.Type(), args)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m, err)
	}
	return callGuarded(func() (any, error) { return splitResults(mv.Call(in)) })
}

func buildArgs(ctx context.Context, mt reflect.Type, args []any) ([]reflect.Value, error) {
	in := make([]reflect.Value, 0, len(args)+1)
	if mt.NumIn() > 0 && mt.In(0) == ctxType && len(args) == mt.NumIn()-1 && !mt.IsVariadic() {
		in = append(in, reflect.ValueOf(ctx))
	}
	fixed := mt.NumIn()
	if mt.IsVariadic() {
		fixed--
	}
	if len(in)+len(args) < fixed || (!mt.IsVariadic() && len(in)+len(args) != fixed) {
		return nil, fmt.Errorf("%w: want %d arguments, got %d", ErrBadArguments, mt.NumIn(), len(args))
	}
	for i, a := range args {
		pos := len(in)
		var pt reflect.Type
		if mt.IsVariadic() && pos >= fixed {
			pt = mt.In(fixed).Elem()
		} else {
			pt = mt.In(pos)
		}
		v, err := fitArg(a, pt)
		if err != nil {
			return nil, fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i, err)
		}
		in = append(in, v)
	}
	return in, nil
}

func fitArg(a any, pt reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch pt.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
			return reflect.Zero(pt), nil
		}
		return reflect.Value{}, fmt.Errorf("nil for %s", pt)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(pt) {
		return v, nil
	}
	// numeric literals arrive as int/float64; convert between numeric kinds only
	if isNumeric(v.Kind()) && isNumeric(pt.Kind()) && v.Type().ConvertibleTo(pt) {
		return v.Convert(pt), nil
	}
	return reflect.Value{}, fmt.Errorf("%s is not assignable to %s", v.Type(), pt)
}

func isNumeric(k reflect.Kind) bool {
	return (k >= reflect.Int && k <= reflect.Uint64) || k == reflect.Float32 || k == reflect.Float64
}

func splitResults(out []reflect.Value) (any, error) {
	var err error
	if n := len(out); n > 0 && out[n-1].Type() == errType {
		if !out[n-1].IsNil() {
			err = out[n-1].Interface().(error)
		}
		out = out[:n-1]
	}
	switch len(out) {
	case 0:
		return nil, err
	case 1:
		return out[0].Interface(), err
	}
	vals := make([]any, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}
	return vals, err
}

func callGuarded(fn func() (any, error)) (res any, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("%w: %v", ErrPanicked, r)
		}
	}()
	return fn()
}
