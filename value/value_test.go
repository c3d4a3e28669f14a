package value

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want string
	}{
		{"positive zero", 0, "0"},
		{"negative zero", math.Copysign(0, -1), "0"},
		{"nan", math.NaN(), "NaN"},
		{"inf", math.Inf(1), "Infinity"},
		{"neg inf", math.Inf(-1), "-Infinity"},
		{"integer", 3, "3"},
		{"trailing zeros trimmed", 3.140000, "3.14"},
		{"no leading plus", 5, "5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatNumber(tt.in))
		})
	}
}

func TestToBoolean(t *testing.T) {
	tests := []struct {
		name string
		v    Value
		want bool
	}{
		{"bool true", FromBool(true), true},
		{"number nonzero", FromNumber(1), true},
		{"number zero", FromNumber(0), false},
		{"number nan", FromNumber(math.NaN()), false},
		{"string nonempty", FromString("x"), true},
		{"string empty", FromString(""), false},
		{"empty nodeset", Empty(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.v.ToBoolean())
		})
	}
}

func TestConversionLaws(t *testing.T) {
	// spec §8 property 4: to_boolean(to_string(to_boolean(v))) == to_boolean(v)
	for _, v := range []Value{FromBool(true), FromNumber(0), FromNumber(42), FromString(""), FromString("hi")} {
		b1 := v.ToBoolean()
		b2 := FromString(FromBool(b1).ToString()).ToBoolean()
		require.Equal(t, b1, b2)
	}
}

func TestNumberRoundTrip(t *testing.T) {
	for _, n := range []float64{0, 1, -1, 3.5, 100} {
		got := FromString(FormatNumber(n)).ToNumber()
		assert.Equal(t, n, got)
	}
}
