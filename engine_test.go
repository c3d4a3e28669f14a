package xpathql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasol-framework/xpathql/xmltree"
)

// buildCatalog constructs <catalog><book id="1"><title>Go in Action</title>
// <price>35</price></book><book id="2"><title>The Go Programming
// Language</title><price>40</price></book></catalog>.
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

func TestEngineCompileEvaluate(t *testing.T) {
	e := NewDefault()
	doc := buildCatalog()
	q, err := e.Compile("/catalog/book[@id='2']/title")
	require.NoError(t, err)

	v, code, err := e.Evaluate(q, doc, 0)
	require.NoError(t, err)
	assert.Equal(t, xmltree.Okay, code)
	require.Len(t, v.Items, 1)
	assert.Equal(t, "The Go Programming Language", v.ToString())
}

func TestEngineEvaluateEmptyResultIsSearchCode(t *testing.T) {
	e := NewDefault()
	doc := buildCatalog()
	q, err := e.Compile("/catalog/book[@id='no-such-id']")
	require.NoError(t, err)

	v, code, err := e.Evaluate(q, doc, 0)
	require.NoError(t, err)
	assert.Equal(t, xmltree.Search, code)
	assert.Empty(t, v.Items)
}

func TestEngineCompileSyntaxError(t *testing.T) {
	e := NewDefault()
	_, err := e.Compile("/catalog[")
	require.Error(t, err)
}

func TestEngineFindTagInvokesCallback(t *testing.T) {
	e := NewDefault()
	doc := buildCatalog()
	q, err := e.Compile("/catalog/book")
	require.NoError(t, err)

	var seen []int
	code := e.FindTag(q, doc, 0, func(d *xmltree.Document, tagID int, attribute string, userData interface{}) xmltree.ErrorCode {
		seen = append(seen, tagID)
		return xmltree.Okay
	}, nil)
	assert.Equal(t, xmltree.Okay, code)
	assert.Equal(t, []int{2, 7}, seen)
}

func TestEngineFindTagTerminatesOnCallbackSignal(t *testing.T) {
	e := NewDefault()
	doc := buildCatalog()
	q, err := e.Compile("/catalog/book")
	require.NoError(t, err)

	calls := 0
	code := e.FindTag(q, doc, 0, func(d *xmltree.Document, tagID int, attribute string, userData interface{}) xmltree.ErrorCode {
		calls++
		return xmltree.Terminate
	}, nil)
	assert.Equal(t, xmltree.Terminate, code)
	assert.Equal(t, 1, calls)
}

func TestEngineEvaluateNilArgs(t *testing.T) {
	e := NewDefault()
	_, code, err := e.Evaluate(nil, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, xmltree.NullArgs, code)
}

func TestEngineNewDefaultHasNoLoaders(t *testing.T) {
	e := NewDefault()
	doc := buildCatalog()
	q, err := e.Compile("doc('missing.xml')")
	require.NoError(t, err)
	v, code, err := e.Evaluate(q, doc, 0)
	require.NoError(t, err)
	assert.Equal(t, xmltree.Search, code)
	assert.True(t, v.IsEmptySequence())
}
