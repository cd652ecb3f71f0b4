package codec

import "encoding/json"

// JSON is a Codec backed by encoding/json. Indent pretty-prints with two
// spaces, which is what humans reading a dump want.
type JSON[V any] struct {
	Indent bool
}

func (c JSON[V]) Encode(v V) ([]byte, error) {
	if c.Indent {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

func (JSON[V]) Decode(b []byte) (V, error) {
	var v V
	err := json.Unmarshal(b, &v)
	return v, err
}
