package bankref

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextIncrementsRightmostDigit(t *testing.T) {
	assert.Equal(t, "AA11112", Next("AA11111"))
}

func TestNextCarriesIntoTensDigit(t *testing.T) {
	assert.Equal(t, "AA11120", Next("AA11119"))
}

func TestNextCarriesThroughDigitsIntoLetters(t *testing.T) {
	assert.Equal(t, "AB00000", Next("AA99999"))
	assert.Equal(t, "Ba00000", Next("Az99999"))
}

func TestNextGrowsOnFullOverflow(t *testing.T) {
	assert.Equal(t, "AAA00000", Next("ZZ99999"))
	assert.Equal(t, "10000000", Next("9999999"))
	assert.Equal(t, "aaa00000", Next("zz99999"))
}

func TestNextFromEmptySeedsDefault(t *testing.T) {
	assert.Equal(t, DefaultSeed, Next(""))
}

func TestNextIsInjectiveOverLongRuns(t *testing.T) {
	seen := make(map[string]struct{}, 50000)
	ref := DefaultSeed
	for i := 0; i < 50000; i++ {
		ref = Next(ref)
		if _, dup := seen[ref]; dup {
			t.Fatalf("duplicate reference %q after %d iterations", ref, i)
		}
		seen[ref] = struct{}{}
	}
}
