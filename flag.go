package statecache

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/unkn0wn-root/statecache/fingerprint"
)

// HitFlag reports to the wrapped object how the last call was served.
// hit is nil before a call is processed (unknown), true when the result came
// from cache and false when the real method ran and succeeded. A call that
// fails leaves it nil.
//
// The engine serializes its own SetHit calls. The field writers below do not
// synchronize with other readers of the field; code that reads the flag while
// calls are in flight should implement HitRecorder and guard the value itself.
//
// Failures are logged and otherwise ignored.
type HitFlag interface {
	SetHit(target any, hit *bool) error
}

// HitRecorder is implemented by targets that receive the flag themselves.
type HitRecorder interface {
	SetCacheHit(hit *bool)
}

var errNoHitField = errors.New("no field tagged " + fingerprint.TagName + `:"` + fingerprint.TagHit + `"`)

// FieldFlag writes the flag into the *bool field name of a struct pointer.
// Promoted fields of embedded structs are found too. The engine leaves fields
// with that name out of state fingerprints, like a tagged flag field.
func FieldFlag(name string) HitFlag { return fieldFlag{name: name} }

type fieldFlag struct{ name string }

func (f fieldFlag) SetHit(target any, hit *bool) error {
	sv, err := structElem(target)
	if err != nil {
		return err
	}
	return setBoolPtr(sv.FieldByName(f.name), f.name, hit)
}

// TaggedFlag writes the flag into the field tagged `statecache:"hit"`.
// It is not safe to read that field concurrently with Handle.
func TaggedFlag() HitFlag { return taggedFlag{} }

type taggedFlag struct{}

func (taggedFlag) SetHit(target any, hit *bool) error {
	sv, err := structElem(target)
	if err != nil {
		return err
	}
	idx, ok := hitFieldIndex(sv.Type())
	if !ok {
		return errNoHitField
	}
	return setBoolPtr(sv.FieldByIndex(idx), sv.Type().FieldByIndex(idx).Name, hit)
}

type recorderFlag struct{}

func (recorderFlag) SetHit(target any, hit *bool) error {
	r, ok := target.(HitRecorder)
	if !ok {
		return fmt.Errorf("%T does not implement HitRecorder", target)
	}
	r.SetCacheHit(hit)
	return nil
}

// defaultHitFlag picks the flag for a target when Options.HitFlag is nil.
func defaultHitFlag(target any) HitFlag {
	if _, ok := target.(HitRecorder); ok {
		return recorderFlag{}
	}
	if sv, err := structElem(target); err == nil {
		if _, ok := hitFieldIndex(sv.Type()); ok {
			return TaggedFlag()
		}
	}
	return nil
}

func structElem(target any) (reflect.Value, error) {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("hit flag needs a non-nil struct pointer, got %T", target)
	}
	return v.Elem(), nil
}

// hitFieldIndex searches t and its embedded structs, outermost first.
func hitFieldIndex(t reflect.Type) ([]int, bool) {
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Tag.Get(fingerprint.TagName) == fingerprint.TagHit {
			return []int{i}, true
		}
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.Anonymous || sf.Type.Kind() != reflect.Struct {
			continue
		}
		if sub, ok := hitFieldIndex(sf.Type); ok {
			return append([]int{i}, sub...), true
		}
	}
	return nil, false
}

func setBoolPtr(fv reflect.Value, name string, hit *bool) error {
	if !fv.IsValid() {
		return fmt.Errorf("no field %q", name)
	}
	if fv.Type() != reflect.TypeFor[*bool]() {
		return fmt.Errorf("field %q is %s, want *bool", name, fv.Type())
	}
	if !fv.CanSet() {
		return fmt.Errorf("field %q is not settable", name)
	}
	if hit == nil {
		fv.SetZero()
		return nil
	}
	v := *hit
	fv.Set(reflect.ValueOf(&v))
	return nil
}
