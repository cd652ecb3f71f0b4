package invariant

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRaise(t *testing.T) {
	before := Count("invariant", "test")
	Raise("invariant", "test", "This is a test invariant violation", "n", 1)
	assert.Equal(t, before+1, Count("invariant" /*module*/, "test" /*invariantType*/))
}
