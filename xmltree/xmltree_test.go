package xmltree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildSmallTree() *Document {
	doc := NewDocument("small.xml")
	root := &Tag{ID: 1, Flags: Element, Attribs: []Attribute{{Name: "root"}, {Name: "xmlns:a", Value: "urn:a"}}}
	child := &Tag{ID: 2, Parent: 1, Flags: Element, Attribs: []Attribute{{Name: "child"}, {Name: "id", Value: "x"}}}
	text := &Tag{ID: 3, Parent: 2, Flags: Content, Attribs: []Attribute{{Value: "hello"}}}
	child.Children = []*Tag{text}
	root.Children = []*Tag{child}
	doc.Tags = []*Tag{root}
	return doc
}

func TestTagAccessors(t *testing.T) {
	doc := buildSmallTree()
	root := doc.Tags[0]
	child := root.Children[0]
	text := child.Children[0]

	assert.True(t, root.IsElement())
	assert.False(t, text.IsElement())
	assert.True(t, text.IsText())
	assert.Equal(t, "child", child.Name())
	assert.Equal(t, "hello", text.Text())
	v, ok := child.Attr("id")
	require.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = child.Attr("missing")
	assert.False(t, ok)
}

func TestStringValueConcatenatesDescendantText(t *testing.T) {
	doc := buildSmallTree()
	assert.Equal(t, "hello", doc.Tags[0].StringValue())
}

func TestDocumentMapAndInvalidate(t *testing.T) {
	doc := buildSmallTree()
	m := doc.Map()
	require.Len(t, m, 3)
	assert.Same(t, doc.Tags[0].Children[0], m[2])

	doc.InvalidateMap()
	m2 := doc.Map()
	assert.Same(t, doc.Tags[0].Children[0], m2[2])
}

func TestRegisterNamespaceIdempotent(t *testing.T) {
	doc := NewDocument("ns.xml")
	h1 := doc.RegisterNamespace("urn:a")
	h2 := doc.RegisterNamespace("urn:a")
	h3 := doc.RegisterNamespace("urn:b")
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)

	uri, ok := doc.NamespaceURI(h1)
	require.True(t, ok)
	assert.Equal(t, "urn:a", uri)
}

func TestResolvePrefixWalksAncestors(t *testing.T) {
	doc := buildSmallTree()
	hash, ok := doc.ResolvePrefix("a", 2)
	require.True(t, ok, "child should inherit xmlns:a declared on root")
	uri, ok := doc.NamespaceURI(hash)
	require.True(t, ok)
	assert.Equal(t, "urn:a", uri)

	_, ok = doc.ResolvePrefix("nonexistent", 2)
	assert.False(t, ok)
}

func TestAppendTagInvalidatesMap(t *testing.T) {
	doc := buildSmallTree()
	doc.Map()
	newTag := &Tag{ID: 99, Flags: Element, Attribs: []Attribute{{Name: "extra"}}}
	doc.AppendTag(newTag)
	m := doc.Map()
	assert.Same(t, newTag, m[99])
}
