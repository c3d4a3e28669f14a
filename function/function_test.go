package function

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasol-framework/xpathql/prolog"
	"github.com/parasol-framework/xpathql/schema"
	"github.com/parasol-framework/xpathql/value"
	"github.com/parasol-framework/xpathql/xmltree"
)

func call(t *testing.T, r *Registry, uri, local string, args ...value.Value) value.Value {
	t.Helper()
	sig, ok := r.Lookup(uri, local)
	require.True(t, ok, "%s not registered under %q", local, uri)
	v, err := sig.Impl(&Context{Prolog: prolog.New()}, args)
	require.NoError(t, err)
	return v
}

func TestStringFunctions(t *testing.T) {
	r := Default()
	assert.Equal(t, float64(5), call(t, r, FnNS, "string-length", value.FromString("hello")).Num)
	assert.Equal(t, "HELLO", call(t, r, FnNS, "upper-case", value.FromString("hello")).Str)
	assert.True(t, call(t, r, FnNS, "contains", value.FromString("hello"), value.FromString("ell")).Bool)
}

func TestXSDBooleanConstructorParsesLexicalForm(t *testing.T) {
	r := Default()
	v := call(t, r, schema.XSDNamespace, "boolean", value.FromString("false"))
	assert.Equal(t, value.Boolean, v.Kind)
	assert.False(t, v.Bool)

	v = call(t, r, schema.XSDNamespace, "boolean", value.FromString("1"))
	assert.True(t, v.Bool)
}

func TestXSDIntegerConstructorCoercesString(t *testing.T) {
	r := Default()
	v := call(t, r, schema.XSDNamespace, "integer", value.FromString("42"))
	assert.Equal(t, value.Number, v.Kind)
	assert.Equal(t, float64(42), v.Num)
	require.NotNil(t, v.SchemaType)
	assert.Equal(t, schema.XSInteger, v.SchemaType.Kind)
}

func TestXSDConstructorNotRegisteredUnderFnNamespace(t *testing.T) {
	r := Default()
	_, ok := r.Lookup(FnNS, "boolean")
	require.True(t, ok, "fn:boolean should still resolve to the XPath 1.0 boolean() builtin")
	sig, _ := r.Lookup(FnNS, "boolean")
	v, err := sig.Impl(&Context{}, []value.Value{value.FromString("false")})
	require.NoError(t, err)
	// fn:boolean("false") is a non-empty string, so it is true under the
	// untyped XPath 1.0 rule, unlike the schema-aware xs:boolean("false").
	assert.True(t, v.Bool)
}

func TestStaticBaseURIAndDefaultCollation(t *testing.T) {
	r := Default()
	pr := prolog.New()
	c := &Context{Prolog: pr, BaseURI: "file:///tmp/doc.xml"}
	sig, ok := r.Lookup(FnNS, "static-base-uri")
	require.True(t, ok)
	v, err := sig.Impl(c, nil)
	require.NoError(t, err)
	assert.Equal(t, "file:///tmp/doc.xml", v.Str)

	sig, ok = r.Lookup(FnNS, "default-collation")
	require.True(t, ok)
	v, err = sig.Impl(c, nil)
	require.NoError(t, err)
	assert.Equal(t, pr.DefaultCollation, v.Str)
}

func TestNilledReadsXsiNilAttribute(t *testing.T) {
	r := Default()
	c := &Context{Prolog: prolog.New()}
	el := &xmltree.Tag{ID: 1, Flags: xmltree.Element, Attribs: []xmltree.Attribute{
		{Name: "row"}, {Name: "xsi:nil", Value: "true"},
	}}
	item := value.NodeItem{Tag: el}

	sig, ok := r.Lookup(FnNS, "nilled")
	require.True(t, ok)
	v, err := sig.Impl(c, []value.Value{value.FromNodes([]value.NodeItem{item}, false)})
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestRootReturnsDocumentNodeSentinel(t *testing.T) {
	r := Default()
	doc := xmltree.NewDocument("catalog.xml")
	el := &xmltree.Tag{ID: 1, Flags: xmltree.Element}
	item := value.NodeItem{Doc: doc, Tag: el}

	v := call(t, r, FnNS, "root", value.FromNodes([]value.NodeItem{item}, false))
	require.Len(t, v.Items, 1)
	assert.Nil(t, v.Items[0].Tag)
	assert.Equal(t, doc, v.Items[0].Doc)
}

func TestBaseURIWalksAncestorChain(t *testing.T) {
	doc := xmltree.NewDocument("")
	parent := &xmltree.Tag{ID: 1, Flags: xmltree.Element, Attribs: []xmltree.Attribute{
		{Name: "root"}, {Name: "xml:base", Value: "http://example.com/"},
	}}
	child := &xmltree.Tag{ID: 2, Parent: 1, Flags: xmltree.Element, Attribs: []xmltree.Attribute{{Name: "child"}}}
	doc.Tags = []*xmltree.Tag{parent}
	parent.Children = []*xmltree.Tag{child}
	doc.InvalidateMap()

	r := Default()
	c := &Context{Prolog: prolog.New(), Doc: doc, Item: value.NodeItem{Doc: doc, Tag: child}}
	sig, ok := r.Lookup(FnNS, "base-uri")
	require.True(t, ok)
	v, err := sig.Impl(c, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://example.com/", v.Str)
}

func TestDocumentURIOnlyResolvesForDocumentNode(t *testing.T) {
	r := Default()
	doc := xmltree.NewDocument("catalog.xml")
	el := &xmltree.Tag{ID: 1, Flags: xmltree.Element}

	v := call(t, r, FnNS, "document-uri", value.FromNodes([]value.NodeItem{{Doc: doc, Tag: el}}, false))
	assert.True(t, v.IsEmptySequence())

	v = call(t, r, FnNS, "document-uri", value.FromNodes([]value.NodeItem{{Doc: doc}}, false))
	assert.Equal(t, "catalog.xml", v.Str)
}

func TestEncodeForURIEscapesReservedCharacters(t *testing.T) {
	r := Default()
	v := call(t, r, FnNS, "encode-for-uri", value.FromString("a b/c"))
	assert.Equal(t, "a%20b%2Fc", v.Str)
}

func TestEscapeHTMLURILeavesPunctuationAlone(t *testing.T) {
	r := Default()
	v := call(t, r, FnNS, "escape-html-uri", value.FromString("a b/c"))
	assert.Equal(t, "a b/c", v.Str)
}

func TestStringJoinUsesSeparator(t *testing.T) {
	r := Default()
	items := []value.NodeItem{
		{StringVal: strPtr("a")},
		{StringVal: strPtr("b")},
		{StringVal: strPtr("c")},
	}
	v := call(t, r, FnNS, "string-join", value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, value.FromString(", "))
	assert.Equal(t, "a, b, c", v.Str)
}

func strPtr(s string) *string { return &s }

func numberSeq(ns ...float64) value.Value {
	items := make([]value.NodeItem, len(ns))
	for i, n := range ns {
		s := value.FormatNumber(n)
		items[i] = value.NodeItem{StringVal: &s}
	}
	return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}
}

func TestAvgMinMaxOverNumericSequence(t *testing.T) {
	r := Default()
	assert.Equal(t, float64(2), call(t, r, FnNS, "avg", numberSeq(1, 2, 3)).Num)
	assert.Equal(t, float64(1), call(t, r, FnNS, "min", numberSeq(3, 1, 2)).Num)
	assert.Equal(t, float64(3), call(t, r, FnNS, "max", numberSeq(3, 1, 2)).Num)
	assert.True(t, call(t, r, FnNS, "avg", value.Empty()).IsEmptySequence())
}

func TestHeadAndTail(t *testing.T) {
	r := Default()
	seq := numberSeq(1, 2, 3)
	assert.Equal(t, "1", call(t, r, FnNS, "head", seq).ToString())
	tail := call(t, r, FnNS, "tail", seq)
	require.Len(t, tail.Items, 2)
	assert.True(t, call(t, r, FnNS, "head", value.Empty()).IsEmptySequence())
	assert.True(t, call(t, r, FnNS, "tail", numberSeq(1)).IsEmptySequence())
}

func TestDataAtomisesItems(t *testing.T) {
	r := Default()
	v := call(t, r, FnNS, "data", numberSeq(1, 2))
	require.Len(t, v.Items, 2)
	assert.Equal(t, "1", *v.Items[0].StringVal)
}

func TestForEachAndFilterUseNamedFunctionReference(t *testing.T) {
	r := Default()
	seq := value.Value{Kind: value.NodeSet, Items: []value.NodeItem{
		{StringVal: strPtr("go")}, {StringVal: strPtr("xquery")},
	}, PreserveNodeOrder: true}

	mapped := call(t, r, FnNS, "for-each", seq, value.FromString("upper-case"))
	require.Len(t, mapped.Items, 2)
	assert.Equal(t, "GO", *mapped.Items[0].StringVal)
	assert.Equal(t, "XQUERY", *mapped.Items[1].StringVal)

	filtered := call(t, r, FnNS, "filter", seq, value.FromString("not"))
	assert.Empty(t, filtered.Items)
}

func TestDocAvailableAndUnparsedTextAvailable(t *testing.T) {
	r := Default()
	doc := xmltree.NewDocument("main.xml")
	c := &Context{
		Doc: doc,
		Loaders: &xmltree.Loaders{
			Resolve: func(uri string, noFileCheck bool) *string {
				if uri != "known.txt" {
					return nil
				}
				return &uri
			},
			Read: func(path string) ([]byte, error) { return []byte("line one\nline two\n"), nil },
		},
	}
	sig, ok := r.Lookup(FnNS, "doc-available")
	require.True(t, ok)
	v, err := sig.Impl(c, []value.Value{value.FromString("missing.xml")})
	require.NoError(t, err)
	assert.False(t, v.Bool)

	sig, ok = r.Lookup(FnNS, "unparsed-text-available")
	require.True(t, ok)
	v, err = sig.Impl(c, []value.Value{value.FromString("known.txt")})
	require.NoError(t, err)
	assert.True(t, v.Bool)

	sig, ok = r.Lookup(FnNS, "unparsed-text-lines")
	require.True(t, ok)
	v, err = sig.Impl(c, []value.Value{value.FromString("known.txt")})
	require.NoError(t, err)
	require.Len(t, v.Items, 2)
	assert.Equal(t, "line one", *v.Items[0].StringVal)
	assert.Equal(t, "line two", *v.Items[1].StringVal)
}

func TestIDRefLooksUpSharedIndex(t *testing.T) {
	r := Default()
	var resolved []string
	c := &Context{
		ResolveIDRefs: func(ids []string) []value.NodeItem {
			resolved = ids
			return nil
		},
	}
	sig, ok := r.Lookup(FnNS, "idref")
	require.True(t, ok)
	_, err := sig.Impl(c, []value.Value{value.FromString("a b")})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, resolved)
}
