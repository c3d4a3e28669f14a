package token

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWildcardVsMultiply(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want Kind
	}{
		{"leading star is wildcard", "*", Wildcard},
		{"name test wildcard", "/root/*", Wildcard},
		{"multiply after number", "2 * 3", Star},
		{"multiply after paren", "(1) * 2", Star},
		{"wildcard after axis separator", "child::*", Wildcard},
		{"wildcard after at", "@*", Wildcard},
		{"wildcard after slash-slash", "//*", Wildcard},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			toks, err := All(tt.expr)
			require.NoError(t, err)
			var found bool
			for _, tok := range toks {
				if tok.Kind == Star || tok.Kind == Wildcard {
					assert.Equal(t, tt.want, tok.Kind, "expr %q", tt.expr)
					found = true
				}
			}
			require.True(t, found, "no star token found in %q", tt.expr)
		})
	}
}

func TestRoundTrip(t *testing.T) {
	// spec §8 property 1: concatenating token spans reproduces the
	// input when there is no intervening whitespace to restore; here
	// we check the simpler invariant that spans are contiguous and
	// cover exactly the non-whitespace text.
	exprs := []string{
		`/root/book[@id='2']/title`,
		`count(/root/book)`,
		`1 + 2 * 3 - 4 div 2`,
		`$x eq $y`,
	}
	for _, expr := range exprs {
		toks, err := All(expr)
		require.NoError(t, err)
		var rebuilt string
		for _, tok := range toks {
			if tok.Kind == EOF {
				continue
			}
			rebuilt += tok.Text
		}
		// every byte in rebuilt must have appeared in expr, in order,
		// modulo whitespace we intentionally drop.
		j := 0
		for i := 0; i < len(rebuilt); i++ {
			for j < len(expr) && expr[j] != rebuilt[i] {
				j++
			}
			require.Less(t, j, len(expr), "token stream diverged from source for %q", expr)
			j++
		}
	}
}

func TestStringEscapes(t *testing.T) {
	toks, err := All(`'it\'s here'`)
	require.NoError(t, err)
	require.Equal(t, String, toks[0].Kind)
	assert.Equal(t, "it's here", toks[0].Text)
	assert.True(t, toks[0].Owned)
}

func TestKeywordPromotion(t *testing.T) {
	toks, err := All("1 div 2 mod 3 and 1 or 0")
	require.NoError(t, err)
	kinds := []Kind{Number, Div, Number, Mod, Number, And, Number, Or, Number, EOF}
	require.Len(t, toks, len(kinds))
	for i, k := range kinds {
		assert.Equal(t, k, toks[i].Kind, "token %d", i)
	}
}
