package eval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasol-framework/xpathql/function"
	"github.com/parasol-framework/xpathql/parser"
	"github.com/parasol-framework/xpathql/prolog"
	"github.com/parasol-framework/xpathql/value"
	"github.com/parasol-framework/xpathql/xmltree"
)

// buildCatalog constructs:
//
//	<catalog>
//	  <book id="1"><title>Go in Action</title><price>35</price></book>
//	  <book id="2"><title>The Go Programming Language</title><price>40</price></book>
//	</catalog>
func buildCatalog() *xmltree.Document {
	doc := xmltree.NewDocument("catalog.xml")
	mk := func(id int, parent int, name string, attrs ...xmltree.Attribute) *xmltree.Tag {
		return &xmltree.Tag{ID: id, Parent: parent, Flags: xmltree.Element,
			Attribs: append([]xmltree.Attribute{{Name: name}}, attrs...)}
	}
	text := func(id, parent int, s string) *xmltree.Tag {
		return &xmltree.Tag{ID: id, Parent: parent, Flags: xmltree.Content, Attribs: []xmltree.Attribute{{Value: s}}}
	}

	catalog := mk(1, 0, "catalog")
	book1 := mk(2, 1, "book", xmltree.Attribute{Name: "id", Value: "1"})
	title1 := mk(3, 2, "title")
	title1Text := text(4, 3, "Go in Action")
	price1 := mk(5, 2, "price")
	price1Text := text(6, 5, "35")
	book2 := mk(7, 1, "book", xmltree.Attribute{Name: "id", Value: "2"})
	title2 := mk(8, 7, "title")
	title2Text := text(9, 8, "The Go Programming Language")
	price2 := mk(10, 7, "price")
	price2Text := text(11, 10, "40")

	title1.Children = []*xmltree.Tag{title1Text}
	price1.Children = []*xmltree.Tag{price1Text}
	book1.Children = []*xmltree.Tag{title1, price1}
	title2.Children = []*xmltree.Tag{title2Text}
	price2.Children = []*xmltree.Tag{price2Text}
	book2.Children = []*xmltree.Tag{title2, price2}
	catalog.Children = []*xmltree.Tag{book1, book2}
	doc.Tags = []*xmltree.Tag{catalog}
	doc.InvalidateMap()
	return doc
}

func evalText(t *testing.T, doc *xmltree.Document, expr string) value.Value {
	t.Helper()
	res := parser.Parse(expr)
	require.True(t, res.Valid(), "parse %q: %v", expr, res.Errors)
	ctx := NewContext(doc, res.Prolog, function.Default(), nil, nil)
	v, err := Evaluate(ctx, res.Root)
	require.NoError(t, err, "evaluate %q", expr)
	return v
}

func TestLocationPathBasic(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "/catalog/book")
	require.Equal(t, value.NodeSet, v.Kind)
	assert.Len(t, v.Items, 2)
}

func TestPredicatePositional(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "/catalog/book[2]/title")
	require.Len(t, v.Items, 1)
	assert.Equal(t, "The Go Programming Language", v.ToString())
}

func TestPredicateAttributeEquals(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "/catalog/book[@id='2']/title")
	require.Len(t, v.Items, 1)
	assert.Equal(t, "The Go Programming Language", v.ToString())
}

func TestPredicateContentEquals(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "/catalog/book/title[='Go in Action']")
	require.Len(t, v.Items, 1)
}

func TestArithmeticAndComparison(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "/catalog/book[price > 36]/title")
	require.Len(t, v.Items, 1)
	assert.Equal(t, "The Go Programming Language", v.ToString())
}

func TestFunctionCallCount(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "count(/catalog/book)")
	assert.Equal(t, value.Number, v.Kind)
	assert.Equal(t, float64(2), v.Num)
}

func TestFlworForWhereOrderBy(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc,
		`for $b in /catalog/book where $b/price > 30 order by $b/price descending return $b/title`)
	require.Len(t, v.Items, 2)
	assert.Equal(t, "The Go Programming Language", value.FromNodes([]value.NodeItem{v.Items[0]}, true).ToString())
	assert.Equal(t, "Go in Action", value.FromNodes([]value.NodeItem{v.Items[1]}, true).ToString())
}

func TestQuantifiedSome(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "some $b in /catalog/book satisfies $b/price > 39")
	assert.True(t, v.ToBoolean())
}

func TestQuantifiedEveryFalse(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "every $b in /catalog/book satisfies $b/price > 39")
	assert.False(t, v.ToBoolean())
}

func TestConditional(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "if (count(/catalog/book) = 2) then 'pair' else 'other'")
	assert.Equal(t, "pair", v.ToString())
}

func TestComputedElementConstructor(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, `element summary { attribute count { count(/catalog/book) }, "done" }`)
	require.Len(t, v.Items, 1)
	el := v.Items[0].Tag
	require.NotNil(t, el)
	assert.Equal(t, "summary", el.Name())
	val, ok := el.Attr("count")
	require.True(t, ok)
	assert.Equal(t, "2", val)
}

func TestUnionAndIntersect(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, "/catalog/book[1] | /catalog/book[2]")
	assert.Len(t, v.Items, 2)

	v2 := evalText(t, doc, "(/catalog/book[1] | /catalog/book[2]) intersect /catalog/book[1]")
	assert.Len(t, v2.Items, 1)
}

func TestUndeclaredFunctionError(t *testing.T) {
	doc := buildCatalog()
	res := parser.Parse("bogus-fn(1)")
	require.True(t, res.Valid())
	ctx := NewContext(doc, res.Prolog, function.Default(), nil, nil)
	_, err := Evaluate(ctx, res.Root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unsupported XPath function")
}

func TestUserDeclaredFunction(t *testing.T) {
	doc := buildCatalog()
	res := parser.Parse(`declare namespace local = "http://www.w3.org/2005/xquery-local-functions";
		declare function local:double($x) { $x * 2 }; local:double(21)`)
	require.True(t, res.Valid(), "%v", res.Errors)
	fn, ok := res.Prolog.Functions[prolog.FunctionKey("http://www.w3.org/2005/xquery-local-functions", "double", 1)]
	require.True(t, ok)
	require.NotNil(t, fn)

	ctx := NewContext(doc, res.Prolog, function.Default(), nil, nil)
	v, err := Evaluate(ctx, res.Root)
	require.NoError(t, err)
	assert.Equal(t, float64(42), v.Num)
}

func TestUserDeclaredFunctionUnprefixed(t *testing.T) {
	doc := buildCatalog()
	res := parser.Parse(`declare function square($x) { $x * $x }; square(6)`)
	require.True(t, res.Valid(), "%v", res.Errors)
	fn, ok := res.Prolog.Functions[prolog.FunctionKey("", "square", 1)]
	require.True(t, ok)
	require.NotNil(t, fn)

	ctx := NewContext(doc, res.Prolog, function.Default(), nil, nil)
	v, err := Evaluate(ctx, res.Root)
	require.NoError(t, err)
	assert.Equal(t, float64(36), v.Num)
}
