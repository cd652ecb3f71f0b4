// Package codec encodes registry snapshots (or any value) for dumps and
// inspection tools.
package codec

import (
	"fmt"
	"strings"
)

// Codec encodes/decodes values V to []byte.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

// Names lists the codecs Named understands.
var Names = []string{"json", "msgpack", "cbor"}

// Named returns the codec registered under name (case-insensitive).
// When maxDecode > 0 the codec rejects larger payloads on Decode.
func Named[V any](name string, maxDecode int) (Codec[V], error) {
	var c Codec[V]
	switch strings.ToLower(name) {
	case "json", "":
		c = JSON[V]{Indent: true}
	case "msgpack":
		c = Msgpack[V]{}
	case "cbor":
		cb, err := NewCBOR[V](true)
		if err != nil {
			return nil, err
		}
		c = cb
	default:
		return nil, fmt.Errorf("codec: unknown codec %q (want one of %s)", name, strings.Join(Names, ", "))
	}
	if maxDecode > 0 {
		c = Limit[V]{Inner: c, MaxDecode: maxDecode}
	}
	return c, nil
}
