package axis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/value"
	"github.com/parasol-framework/xpathql/xmltree"
)

// buildLibrary constructs <library><book id="1"/><book id="2"/></library>.
func buildLibrary() (*xmltree.Document, *xmltree.Tag, []*xmltree.Tag) {
	doc := xmltree.NewDocument("lib.xml")
	lib := &xmltree.Tag{ID: 1, Flags: xmltree.Element, Attribs: []xmltree.Attribute{{Name: "library"}}}
	book1 := &xmltree.Tag{ID: 2, Parent: 1, Flags: xmltree.Element, Attribs: []xmltree.Attribute{{Name: "book"}, {Name: "id", Value: "1"}}}
	book2 := &xmltree.Tag{ID: 3, Parent: 1, Flags: xmltree.Element, Attribs: []xmltree.Attribute{{Name: "book"}, {Name: "id", Value: "2"}}}
	lib.Children = []*xmltree.Tag{book1, book2}
	doc.Tags = []*xmltree.Tag{lib}
	return doc, lib, []*xmltree.Tag{book1, book2}
}

func TestChildAxis(t *testing.T) {
	doc, lib, books := buildLibrary()
	got := Select(doc, value.NodeItem{Doc: doc, Tag: lib}, ast.Child)
	require.Len(t, got, 2)
	assert.Same(t, books[0], got[0].Tag)
	assert.Same(t, books[1], got[1].Tag)
}

func TestParentAxis(t *testing.T) {
	doc, lib, books := buildLibrary()
	got := Select(doc, value.NodeItem{Doc: doc, Tag: books[0]}, ast.Parent)
	require.Len(t, got, 1)
	assert.Same(t, lib, got[0].Tag)
}

func TestFollowingSiblingAxis(t *testing.T) {
	doc, _, books := buildLibrary()
	got := Select(doc, value.NodeItem{Doc: doc, Tag: books[0]}, ast.FollowingSibling)
	require.Len(t, got, 1)
	assert.Same(t, books[1], got[0].Tag)
}

func TestAttributeAxis(t *testing.T) {
	doc, _, books := buildLibrary()
	got := Select(doc, value.NodeItem{Doc: doc, Tag: books[0]}, ast.AttributeAxis)
	require.Len(t, got, 1)
	assert.Equal(t, "id", got[0].Attribute.Name)
	assert.Equal(t, "1", got[0].Attribute.Value)
}

func TestDescendantAxisExcludesSelf(t *testing.T) {
	doc, lib, books := buildLibrary()
	got := Select(doc, value.NodeItem{Doc: doc, Tag: lib}, ast.Descendant)
	require.Len(t, got, 2)
	assert.Same(t, books[0], got[0].Tag)
}

func TestAncestorOrSelfIncludesSelf(t *testing.T) {
	doc, lib, books := buildLibrary()
	got := Select(doc, value.NodeItem{Doc: doc, Tag: books[0]}, ast.AncestorOrSelf)
	require.Len(t, got, 2)
	assert.Same(t, books[0], got[0].Tag)
	assert.Same(t, lib, got[1].Tag)
}
