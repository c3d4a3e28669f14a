package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/prolog"
)

func TestParseLocationPath(t *testing.T) {
	res := Parse("/catalog/book[1]/title")
	require.True(t, res.Valid(), "%v", res.Errors)
	require.NotNil(t, res.Root)
}

func TestParseRejectsGarbage(t *testing.T) {
	res := Parse("/catalog[")
	assert.False(t, res.Valid())
	assert.NotEmpty(t, res.Errors)
}

func TestDeclareFunctionPrefixedNameResolvesNamespace(t *testing.T) {
	res := Parse(`declare namespace local = "http://www.w3.org/2005/xquery-local-functions";
		declare function local:double($x) { $x * 2 }; local:double(1)`)
	require.True(t, res.Valid(), "%v", res.Errors)

	fn, ok := res.Prolog.Functions[prolog.FunctionKey("http://www.w3.org/2005/xquery-local-functions", "double", 1)]
	require.True(t, ok, "expected declared function keyed by resolved URI and bare local name")
	assert.Equal(t, "double", fn.Local)
	assert.Equal(t, []string{"x"}, fn.Params)

	// The unsplit "local:double" string must never appear as a stored
	// local-name component; that was the bug this guards against.
	_, wrongKey := res.Prolog.Functions[prolog.FunctionKey("", "local:double", 1)]
	assert.False(t, wrongKey)
}

func TestDeclareFunctionUnprefixedUsesDefaultFunctionNamespace(t *testing.T) {
	res := Parse(`declare function square($x) { $x * $x }; square(3)`)
	require.True(t, res.Valid(), "%v", res.Errors)
	fn, ok := res.Prolog.Functions[prolog.FunctionKey("", "square", 1)]
	require.True(t, ok)
	assert.Equal(t, "square", fn.Local)
}

func TestDeclareFunctionUndeclaredPrefixResolvesToEmptyURI(t *testing.T) {
	res := Parse(`declare function foo:bar($x) { $x }; foo:bar(1)`)
	require.True(t, res.Valid(), "%v", res.Errors)
	fn, ok := res.Prolog.Functions[prolog.FunctionKey("", "bar", 1)]
	require.True(t, ok, "an unresolvable prefix should fall back to the empty namespace, not error at parse time")
	assert.Equal(t, "bar", fn.Local)
}

func TestPredefinedNamespacesAvailableWithoutDeclaration(t *testing.T) {
	res := Parse(`xs:boolean("true")`)
	require.True(t, res.Valid(), "%v", res.Errors)
	uri, ok := res.Prolog.ResolvePrefix("xs")
	require.True(t, ok)
	assert.Equal(t, "http://www.w3.org/2001/XMLSchema", uri)
}

func TestParseFLWORExpression(t *testing.T) {
	res := Parse(`for $b in /catalog/book where $b/price > 10 order by $b/price return $b/title`)
	require.True(t, res.Valid(), "%v", res.Errors)
	assert.Equal(t, ast.FlworExpression, res.Root.Kind)
}
