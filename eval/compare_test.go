package eval

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNumericEqualToleratesFloatingPointNoise(t *testing.T) {
	assert.True(t, numericEqual(0.1+0.2, 0.3))
	assert.True(t, numericEqual(1e10+1.0, 1e10+1.0+1e-6))
	assert.False(t, numericEqual(1.0, 1.001))
}

func TestNumericEqualSmallMagnitudeUsesAbsoluteTolerance(t *testing.T) {
	assert.True(t, numericEqual(0.0, float64Epsilon*8))
	assert.False(t, numericEqual(0.0, 1e-10))
}

func TestNumericEqualNaNIsNeverEqual(t *testing.T) {
	nan := math.NaN()
	assert.False(t, numericEqual(nan, nan))
	assert.False(t, numericEqual(nan, 1))
}

func TestNumericEqualInfinityRequiresMatchingSign(t *testing.T) {
	posInf := math.Inf(1)
	negInf := math.Inf(-1)
	assert.True(t, numericEqual(posInf, posInf))
	assert.False(t, numericEqual(posInf, negInf))
	assert.False(t, numericEqual(posInf, 1e300))
}

func TestEvalNumericEqualityToleratesArithmeticNoise(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "(0.1 + 0.2) = 0.3")
	assert.True(t, v.ToBoolean())

	v2 := evalText(t, doc, "(0.1 + 0.2) != 0.3")
	assert.False(t, v2.ToBoolean())
}
