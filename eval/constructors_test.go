package eval

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parasol-framework/xpathql/function"
	"github.com/parasol-framework/xpathql/parser"
	"github.com/parasol-framework/xpathql/xmltree"
)

func TestDirectElementConstructorNestedAndAVT(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, `<wrapper id="{1+1}"><title>{/catalog/book[1]/title/text()}</title>fixed text</wrapper>`)
	require.Len(t, v.Items, 1)
	el := v.Items[0].Tag
	require.NotNil(t, el)
	assert.Equal(t, "wrapper", el.Name())
	id, ok := el.Attr("id")
	require.True(t, ok)
	assert.Equal(t, "2", id)

	require.Len(t, el.Children, 2)
	title := el.Children[0]
	assert.Equal(t, "title", title.Name())
	require.Len(t, title.Children, 1)
	assert.Equal(t, "Go in Action", title.Children[0].Text())

	text := el.Children[1]
	assert.True(t, text.IsText())
	assert.Equal(t, "fixed text", text.Text())
}

func TestDirectElementConstructorSelfClosing(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, `<empty/>`)
	require.Len(t, v.Items, 1)
	el := v.Items[0].Tag
	require.NotNil(t, el)
	assert.Equal(t, "empty", el.Name())
	assert.Empty(t, el.Children)
}

func TestComputedElementConstructorDeepCopiesSourceSubtree(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, `element copy { /catalog/book[1] }`)
	require.Len(t, v.Items, 1)
	el := v.Items[0].Tag
	require.NotNil(t, el)
	assert.Equal(t, "copy", el.Name())
	require.Len(t, el.Children, 1)

	book := el.Children[0]
	assert.Equal(t, "book", book.Name())
	// A deep copy never aliases the source document's own tag identity
	// or parent linkage.
	assert.NotEqual(t, doc.Tags[0].Children[0].ID, book.ID)
	assert.Equal(t, el.ID, book.Parent)
}

func TestComputedAttributeConstructorStandalone(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, `attribute total { 2 + 3 }`)
	require.Len(t, v.Items, 1)
	attr := v.Items[0].Attribute
	require.NotNil(t, attr)
	assert.Equal(t, "total", attr.Name)
	assert.Equal(t, "5", attr.Value)
}

func TestTextConstructorComputed(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, `text { concat("hello ", "world") }`)
	require.Len(t, v.Items, 1)
	tag := v.Items[0].Tag
	require.NotNil(t, tag)
	assert.True(t, tag.IsText())
	assert.Equal(t, "hello world", tag.Text())
}

func TestCommentConstructor(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, `comment { "a note" }`)
	require.Len(t, v.Items, 1)
	tag := v.Items[0].Tag
	require.NotNil(t, tag)
	assert.Equal(t, xmltree.Comment, tag.Flags&xmltree.Comment)
	assert.Equal(t, "a note", tag.Text())
}

func TestProcessingInstructionConstructor(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, `processing-instruction target { "value" }`)
	require.Len(t, v.Items, 1)
	tag := v.Items[0].Tag
	require.NotNil(t, tag)
	assert.Equal(t, xmltree.Instruction, tag.Flags&xmltree.Instruction)
	assert.Equal(t, "target", tag.PITarget())
	require.Len(t, tag.Attribs, 1)
	assert.Equal(t, "value", tag.Attribs[0].Value)
}

func TestDocumentConstructorFoldsContent(t *testing.T) {
	doc := buildCatalog()
	v := evalText(t, doc, `document { <root>{1}</root> }`)
	require.Len(t, v.Items, 1)
	root := v.Items[0].Tag
	require.NotNil(t, root)
	// The document node itself is modelled as an unnamed element Tag.
	assert.Equal(t, "", root.Name())
	require.Len(t, root.Children, 1)
	assert.Equal(t, "root", root.Children[0].Name())
}

func TestDirectElementConstructorMismatchedCloseTagErrors(t *testing.T) {
	res := parser.Parse(`<a></b>`)
	assert.False(t, res.Valid())
}

func TestComputedElementConstructorRecursionDepthBound(t *testing.T) {
	doc := buildCatalog()

	nested := strings.Repeat(`element a { `, maxConstructorDepth+10) +
		`"leaf"` + strings.Repeat(` }`, maxConstructorDepth+10)
	res := parser.Parse(nested)
	require.True(t, res.Valid(), "parse nested constructor: %v", res.Errors)
	ctx := NewContext(doc, res.Prolog, function.Default(), nil, nil)
	_, err := Evaluate(ctx, res.Root)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "recursion depth exceeded")

	shallow := strings.Repeat(`element a { `, maxConstructorDepth-10) +
		`"leaf"` + strings.Repeat(` }`, maxConstructorDepth-10)
	v := evalText(t, doc, shallow)
	require.Len(t, v.Items, 1)
	assert.NotNil(t, v.Items[0].Tag)
}
