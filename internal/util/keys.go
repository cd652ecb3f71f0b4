package util

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/fxamacker/cbor/v2"
)

var argsEnc cbor.EncMode

func init() {
	em, err := cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("util: cbor enc mode: %v", err))
	}
	argsEnc = em
}

// ArgsKey returns "<method>#<16 hex>" where the hex is an xxhash of the
// arguments in core deterministic CBOR. Equal argument lists (including map
// arguments in any iteration order) yield equal keys.
// With no arguments the key is the bare method name.
func ArgsKey(method string, args []any) (string, error) {
	if len(args) == 0 {
		return method, nil
	}
	b, err := argsEnc.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("encode args of %s: %w", method, err)
	}
	return fmt.Sprintf("%s#%016x", method, xxhash.Sum64(b)), nil
}
