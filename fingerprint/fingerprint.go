// Package fingerprint renders the full field-level state of a value into a
// deterministic Key.
//
// Layout of a key:
//
//	[a:b:c][d:e]
//
// Each bracketed level holds the fields of one type level sorted by name and
// joined by ':'. The first level is the outermost struct's own fields; every
// embedded struct contributes its levels after it (declaration order,
// recursively). This mirrors walking a type hierarchy from the most-derived type
// towards its bases.
//
// Types that do not want reflection can implement Describer.
package fingerprint

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	fieldSep   = ":"
	levelOpen  = "["
	levelClose = "]"
	levelTop   = 0
)

// TagName is the struct tag consulted while walking fields.
// `statecache:"-"` excludes a field, `statecache:"hit"` marks the cache-hit flag
// field, which is excluded from the key as well.
const (
	TagName = "statecache"
	TagSkip = "-"
	TagHit  = "hit"
)

// Key is an opaque, comparable fingerprint of a value's state.
type Key string

// Digest returns a 64-bit xxhash of the key.
func (k Key) Digest() uint64 { return xxhash.Sum64String(string(k)) }

// Short returns the digest as 16 hex chars. Use it in logs instead of the raw
// key, which may carry field values.
func (k Key) Short() string {
	return fmt.Sprintf("%016x", k.Digest())
}

// Field is one named piece of state.
type Field struct {
	Name  string
	Value any
}

// Describer lets a type list its own state instead of being walked by
// reflection. The returned fields form a single level.
type Describer interface {
	DescribeState() []Field
}

// FieldError reports a field whose value could not be rendered. The field
// contributes an empty string to the key.
type FieldError struct {
	Level int
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("fingerprint: level %d field %q: %v", e.Level, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Fingerprinter computes keys. The zero value is not usable; construct with New.
// A Fingerprinter is stateless after construction and safe for concurrent use.
type Fingerprinter struct {
	render Renderer
	skip   map[string]struct{}
}

// Option configures a Fingerprinter.
type Option func(*Fingerprinter)

// WithRenderer replaces the value renderer.
func WithRenderer(r Renderer) Option {
	return func(f *Fingerprinter) {
		if r != nil {
			f.render = r
		}
	}
}

// WithSkip leaves fields with the given names out of the key at every level,
// the same as tagging them `statecache:"-"`.
func WithSkip(names ...string) Option {
	return func(f *Fingerprinter) {
		if len(names) == 0 {
			return
		}
		skip := make(map[string]struct{}, len(f.skip)+len(names))
		for n := range f.skip {
			skip[n] = struct{}{}
		}
		for _, n := range names {
			skip[n] = struct{}{}
		}
		f.skip = skip
	}
}

// Skipping returns a copy of f that also skips the named fields.
func (f *Fingerprinter) Skipping(names ...string) *Fingerprinter {
	c := &Fingerprinter{render: f.render, skip: f.skip}
	WithSkip(names...)(c)
	return c
}

// New returns a Fingerprinter using the text renderer unless overridden.
func New(opts ...Option) *Fingerprinter {
	f := &Fingerprinter{render: Text()}
	for _, o := range opts {
		o(f)
	}
	return f
}

var std = New()

// Of fingerprints v with the default Fingerprinter, dropping field errors.
func Of(v any) Key {
	k, _ := std.Of(v)
	return k
}

// Of returns the key of v. The key is always usable; the error, if any, joins
// the FieldErrors of fields that rendered as empty strings.
func (f *Fingerprinter) Of(v any) (Key, error) {
	var (
		b    strings.Builder
		errs []error
	)
	if d, ok := v.(Describer); ok {
		f.writeLevel(&b, levelTop, describedFields(d.DescribeState()), &errs)
		return Key(b.String()), errors.Join(errs...)
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			break
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		f.writeLevel(&b, levelTop, []namedValue{{name: "", value: rv}}, &errs)
		return Key(b.String()), errors.Join(errs...)
	}

	level := levelTop
	f.walk(&b, rv, &level, &errs)
	return Key(b.String()), errors.Join(errs...)
}

type namedValue struct {
	name  string
	value reflect.Value
}

func describedFields(fs []Field) []namedValue {
	out := make([]namedValue, 0, len(fs))
	for _, fd := range fs {
		out = append(out, namedValue{name: fd.Name, value: reflect.ValueOf(fd.Value)})
	}
	return out
}

// walk writes the level of rv's own fields, then the levels of its embedded
// structs in declaration order.
func (f *Fingerprinter) walk(b *strings.Builder, rv reflect.Value, level *int, errs *[]error) {
	rt := rv.Type()
	own := make([]namedValue, 0, rt.NumField())
	var embedded []reflect.Value

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if tag, ok := sf.Tag.Lookup(TagName); ok && (tag == TagSkip || tag == TagHit) {
			continue
		}
		if _, ok := f.skip[sf.Name]; ok {
			continue
		}
		fv := rv.Field(i)
		if sf.Anonymous {
			base := fv
			if base.Kind() == reflect.Pointer {
				if base.IsNil() {
					embedded = append(embedded, reflect.Value{})
					continue
				}
				base = base.Elem()
			}
			if base.Kind() == reflect.Struct {
				embedded = append(embedded, base)
				continue
			}
		}
		own = append(own, namedValue{name: sf.Name, value: fv})
	}

	f.writeLevel(b, *level, own, errs)
	for _, base := range embedded {
		*level++
		if !base.IsValid() {
			// nil embedded pointer: an empty level keeps later levels aligned
			b.WriteString(levelOpen + levelClose)
			continue
		}
		f.walk(b, base, level, errs)
	}
}

func (f *Fingerprinter) writeLevel(b *strings.Builder, level int, fields []namedValue, errs *[]error) {
	sort.SliceStable(fields, func(i, j int) bool { return fields[i].name < fields[j].name })
	b.WriteString(levelOpen)
	for i, fd := range fields {
		if i > 0 {
			b.WriteString(fieldSep)
		}
		s, err := f.safeRender(fd.value)
		if err != nil {
			*errs = append(*errs, &FieldError{Level: level, Field: fd.name, Err: err})
			s = ""
		}
		b.WriteString(s)
	}
	b.WriteString(levelClose)
}

func (f *Fingerprinter) safeRender(v reflect.Value) (s string, err error) {
	defer func() {
		if r := recover(); r != nil {
			s, err = "", fmt.Errorf("render panicked: %v", r)
		}
	}()
	return f.render.Render(v)
}

// quote is used by renderers for values that may contain separators.
func quote(s string) string {
	if strings.ContainsAny(s, fieldSep+levelOpen+levelClose) {
		return strconv.Quote(s)
	}
	return s
}
