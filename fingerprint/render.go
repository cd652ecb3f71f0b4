package fingerprint

import (
	"encoding/hex"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
	"google.golang.org/protobuf/proto"
)

// Renderer turns one field value into its textual form. Invalid and nil values
// must render as "". Implementations must be deterministic.
type Renderer interface {
	Render(v reflect.Value) (string, error)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(v reflect.Value) (string, error)

func (fn RendererFunc) Render(v reflect.Value) (string, error) { return fn(v) }

var (
	stringerType = reflect.TypeFor[fmt.Stringer]()
	errorType    = reflect.TypeFor[error]()
	protoMsgType = reflect.TypeFor[proto.Message]()
)

var deterministicProto = proto.MarshalOptions{Deterministic: true}

// Text renders values the way fmt would print them, with a few rules that keep
// the output stable across instances:
//   - nil pointers, interfaces, maps, slices and funcs render as "";
//   - proto.Message renders as hex of its deterministic wire encoding;
//   - fmt.Stringer and error render via String()/Error();
//   - other non-nil pointers are dereferenced, so equal pointees match.
//
// Unexported fields cannot be converted back to interfaces; they are printed
// by fmt from the reflect.Value, which skips their methods.
func Text() Renderer { return RendererFunc(renderText) }

func renderText(v reflect.Value) (string, error) {
	for {
		if !v.IsValid() || isNil(v) {
			return "", nil
		}
		if v.CanInterface() {
			if s, ok, err := renderByMethod(v); ok {
				return s, err
			}
		}
		if v.Kind() != reflect.Pointer && v.Kind() != reflect.Interface {
			break
		}
		v = v.Elem()
	}
	if v.CanInterface() {
		return quote(fmt.Sprint(v.Interface())), nil
	}
	return quote(fmt.Sprint(v)), nil
}

func renderByMethod(v reflect.Value) (string, bool, error) {
	t := v.Type()
	switch {
	case t.Implements(protoMsgType):
		b, err := deterministicProto.Marshal(v.Interface().(proto.Message))
		if err != nil {
			return "", true, fmt.Errorf("proto marshal: %w", err)
		}
		return hex.EncodeToString(b), true, nil
	case t.Implements(errorType):
		return quote(v.Interface().(error).Error()), true, nil
	case t.Implements(stringerType):
		return quote(v.Interface().(fmt.Stringer).String()), true, nil
	}
	return "", false, nil
}

func isNil(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// CBOR renders composite values (maps, slices, arrays, structs) as hex of their
// RFC 8949 core deterministic CBOR encoding, and everything else like Text.
// Map iteration order and nested pointer identity never leak into the key.
func CBOR() Renderer {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		// CoreDetEncOptions is a fixed, valid option set.
		panic(fmt.Sprintf("fingerprint: cbor enc mode: %v", err))
	}
	return RendererFunc(func(v reflect.Value) (string, error) {
		if !v.IsValid() || isNil(v) || !v.CanInterface() {
			return renderText(v)
		}
		switch v.Kind() {
		case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		default:
			return renderText(v)
		}
		if v.Type().Implements(protoMsgType) || v.Type().Implements(stringerType) {
			return renderText(v)
		}
		b, err := em.Marshal(v.Interface())
		if err != nil {
			return "", fmt.Errorf("cbor marshal: %w", err)
		}
		return hex.EncodeToString(b), nil
	})
}
