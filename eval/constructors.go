package eval

import (
	"strings"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/prolog"
	"github.com/parasol-framework/xpathql/value"
	"github.com/parasol-framework/xpathql/xmltree"
)

// maxConstructorDepth bounds node-constructor nesting (spec §9 DESIGN
// NOTES): past this many nested constructor builds on the active call
// chain, evaluation fails with ErrInvalidConstructor instead of
// recursing until the Go stack overflows.
const maxConstructorDepth = 256

// enterConstructor increments ctx's shared constructor-nesting counter
// and returns a func to decrement it again on the way back out. Callers
// must check the returned error and, on success, defer the returned
// func immediately.
func (ctx *Context) enterConstructor() (func(), error) {
	*ctx.constructorDepth++
	if *ctx.constructorDepth > maxConstructorDepth {
		*ctx.constructorDepth--
		return func() {}, ErrInvalidConstructor.New("recursion depth exceeded")
	}
	return func() { *ctx.constructorDepth-- }, nil
}

// buildDirectElement materialises a `<name attrs…> content </name>`
// constructor (spec §3.4, §4.D) into a freshly owned Tag, never
// touching the source document's own tags.
func (ctx *Context) buildDirectElement(node *ast.Node) (*xmltree.Tag, error) {
	leave, err := ctx.enterConstructor()
	if err != nil {
		return nil, err
	}
	defer leave()

	nsHash, err := ctx.resolveElementNamespace(node.Value, node.Attributes)
	if err != nil {
		return nil, err
	}
	el := ctx.newElementTag(node.Value, nsHash)

	for _, attr := range node.Attributes {
		if attr.IsNamespace {
			continue
		}
		val, err := ctx.evalAVT(attr.Template)
		if err != nil {
			return nil, err
		}
		name := attr.Local
		if attr.Prefix != "" {
			name = attr.Prefix + ":" + attr.Local
		}
		el.Attribs = append(el.Attribs, xmltree.Attribute{Name: name, Value: val})
	}

	for _, child := range node.Children {
		switch child.Kind {
		case ast.TextConstructor:
			if ctx.Prolog.BoundarySpace == prolog.BoundaryStrip && strings.TrimSpace(child.Value) == "" {
				continue // boundary whitespace
			}
			appendTextChild(ctx, el, child.Value)
		case ast.ConstructorContent:
			v, err := ctx.Eval(child.Children[0])
			if err != nil {
				return nil, err
			}
			if err := ctx.foldContentInto(el, v); err != nil {
				return nil, err
			}
		case ast.DirectElementConstructor:
			t, err := ctx.buildDirectElement(child)
			if err != nil {
				return nil, err
			}
			appendChildTag(el, t)
		default:
			v, err := ctx.Eval(child)
			if err != nil {
				return nil, err
			}
			if err := ctx.foldContentInto(el, v); err != nil {
				return nil, err
			}
		}
	}
	return el, nil
}

// buildComputedElement implements `element name { content }` (spec
// §4.D): content is a single expression whose result sequence is folded
// into attributes (attribute-node items), children (element/text-node
// items) and text (atomic items), in that order of precedence.
func (ctx *Context) buildComputedElement(node *ast.Node) (*xmltree.Tag, error) {
	leave, err := ctx.enterConstructor()
	if err != nil {
		return nil, err
	}
	defer leave()

	name, err := ctx.resolveConstructorName(node.NameExpr)
	if err != nil {
		return nil, err
	}
	nsHash, err := ctx.resolveElementNamespace(name, nil)
	if err != nil {
		return nil, err
	}
	el := ctx.newElementTag(name, nsHash)
	if len(node.Children) > 0 {
		v, err := ctx.Eval(node.Children[0])
		if err != nil {
			return nil, err
		}
		if err := ctx.foldContentInto(el, v); err != nil {
			return nil, err
		}
	}
	return el, nil
}

func (ctx *Context) evalComputedAttribute(node *ast.Node) (value.Value, error) {
	name, err := ctx.resolveConstructorName(node.NameExpr)
	if err != nil {
		return value.Value{}, err
	}
	var text string
	if len(node.Children) > 0 {
		v, err := ctx.Eval(node.Children[0])
		if err != nil {
			return value.Value{}, err
		}
		text = contentToString(v)
	}
	attr := &xmltree.Attribute{Name: name, Value: text}
	return value.Value{Kind: value.NodeSet, Items: []value.NodeItem{{Attribute: attr}}, PreserveNodeOrder: true}, nil
}

func (ctx *Context) buildTextConstructor(node *ast.Node) (*xmltree.Tag, error) {
	text := node.Value
	if len(node.Children) > 0 {
		v, err := ctx.Eval(node.Children[0])
		if err != nil {
			return nil, err
		}
		text = contentToString(v)
	}
	return ctx.newContentTag(text), nil
}

func (ctx *Context) buildCommentConstructor(node *ast.Node) (*xmltree.Tag, error) {
	v, err := ctx.Eval(node.Children[0])
	if err != nil {
		return nil, err
	}
	t := ctx.newContentTag(contentToString(v))
	t.Flags |= xmltree.Comment
	return t, nil
}

func (ctx *Context) buildPiConstructor(node *ast.Node) (*xmltree.Tag, error) {
	name, err := ctx.resolveConstructorName(node.NameExpr)
	if err != nil {
		return nil, err
	}
	var text string
	if len(node.Children) > 0 {
		v, err := ctx.Eval(node.Children[0])
		if err != nil {
			return nil, err
		}
		text = contentToString(v)
	}
	return &xmltree.Tag{ID: ctx.newID(), Flags: xmltree.Instruction, Attribs: []xmltree.Attribute{{Name: "?" + name, Value: text}}}, nil
}

// buildDocumentConstructor implements `document { content }`. xmltree
// has no dedicated document-node flag (the evaluator's own document
// root is represented structurally, never as a Tag — see
// Context.selectAxis), so a constructed document node is modelled as an
// ordinary, unnamed element Tag whose children are the folded content.
// No name test matches it, but it carries the Element flag, so a `*`
// wildcard test selects it like any other element.
func (ctx *Context) buildDocumentConstructor(node *ast.Node) (*xmltree.Tag, error) {
	v, err := ctx.Eval(node.Children[0])
	if err != nil {
		return nil, err
	}
	doc := ctx.newElementTag("", 0)
	if err := ctx.foldContentInto(doc, v); err != nil {
		return nil, err
	}
	return doc, nil
}

// ---- shared constructor helpers -----------------------------------------

func (ctx *Context) newElementTag(name string, nsHash uint32) *xmltree.Tag {
	return &xmltree.Tag{
		ID:            ctx.newID(),
		Flags:         xmltree.Element,
		NamespaceHash: nsHash,
		Attribs:       []xmltree.Attribute{{Name: name}},
	}
}

func (ctx *Context) newContentTag(text string) *xmltree.Tag {
	return &xmltree.Tag{ID: ctx.newID(), Flags: xmltree.Content, Attribs: []xmltree.Attribute{{Value: text}}}
}

func appendChildTag(parent, child *xmltree.Tag) {
	child.Parent = parent.ID
	parent.Children = append(parent.Children, child)
}

func appendTextChild(ctx *Context, parent *xmltree.Tag, text string) {
	if text == "" {
		return
	}
	appendChildTag(parent, ctx.newContentTag(text))
}

// foldContentInto distributes a constructor content value's items onto
// el: attribute-node items become el's own attributes, Tag items are
// deep-copied in as children (so a borrowed subtree never aliases the
// source document's Parent links), and atomic items each become their
// own text child.
func (ctx *Context) foldContentInto(el *xmltree.Tag, v value.Value) error {
	leave, err := ctx.enterConstructor()
	if err != nil {
		return err
	}
	defer leave()

	for _, it := range asItemList(v) {
		switch {
		case it.Attribute != nil:
			el.Attribs = append(el.Attribs, *it.Attribute)
		case it.Tag != nil:
			appendChildTag(el, ctx.deepCopyTag(it.Tag))
		case it.StringVal != nil:
			appendTextChild(ctx, el, *it.StringVal)
		}
	}
	return nil
}

// deepCopyTag clones a borrowed subtree under freshly minted (negative)
// IDs, so constructed documents never share identity, or a Parent
// pointer, with the tree they were copied from (spec §4.D: constructed
// nodes are new nodes).
func (ctx *Context) deepCopyTag(t *xmltree.Tag) *xmltree.Tag {
	nt := &xmltree.Tag{
		ID:            ctx.newID(),
		NamespaceHash: t.NamespaceHash,
		Flags:         t.Flags,
		Attribs:       append([]xmltree.Attribute(nil), t.Attribs...),
	}
	for _, c := range t.Children {
		appendChildTag(nt, ctx.deepCopyTag(c))
	}
	return nt
}

func (ctx *Context) resolveConstructorName(nameExpr *ast.Node) (string, error) {
	if nameExpr.Kind == ast.Literal {
		return nameExpr.Value, nil
	}
	v, err := ctx.Eval(nameExpr)
	if err != nil {
		return "", err
	}
	return v.ToString(), nil
}

// resolveElementNamespace looks up the namespace URI for a (possibly
// prefixed) element name: an xmlns declaration on the element itself
// takes precedence, then the prolog's in-scope declarations, then (for
// an unprefixed name) the prolog's default element namespace.
func (ctx *Context) resolveElementNamespace(name string, attrs []*ast.ConstructorAttribute) (uint32, error) {
	prefix, _ := splitQName(name)
	// the parser records xmlns="…" with Local "xmlns", xmlns:p="…" with Local "p"
	declared := prefix
	if prefix == "" {
		declared = "xmlns"
	}
	for _, a := range attrs {
		if a.IsNamespace && a.Local == declared {
			uri, err := ctx.evalAVT(a.Template)
			if err != nil || uri == "" {
				return 0, err
			}
			return ctx.Doc.RegisterNamespace(uri), nil
		}
	}
	if prefix == "" {
		if ctx.Prolog.DefaultElementNS == "" {
			return 0, nil
		}
		return ctx.Doc.RegisterNamespace(ctx.Prolog.DefaultElementNS), nil
	}
	if uri, ok := ctx.Prolog.ResolvePrefix(prefix); ok {
		return ctx.Doc.RegisterNamespace(uri), nil
	}
	return 0, nil
}

// evalAVT evaluates an attribute value template to its final string
// (spec §4.D): literal runs pass through, "{expr}" holes are evaluated
// and their result sequence atomised, space-joined per item.
func (ctx *Context) evalAVT(parts []ast.AVTPart) (string, error) {
	var sb strings.Builder
	for _, p := range parts {
		if p.Expr == nil {
			sb.WriteString(p.Literal)
			continue
		}
		v, err := ctx.Eval(p.Expr)
		if err != nil {
			return "", err
		}
		sb.WriteString(contentToString(v))
	}
	return sb.String(), nil
}

// contentToString atomises a constructor content value to its full
// string form: every item's string-value, space-separated, unlike
// Value.ToString's first-item-only shortcut used elsewhere for general
// string coercion.
func contentToString(v value.Value) string {
	if v.Kind != value.NodeSet {
		return v.ToString()
	}
	if len(v.Items) == 0 {
		return ""
	}
	parts := make([]string, 0, len(v.Items))
	for _, it := range v.Items {
		parts = append(parts, value.FromNodes([]value.NodeItem{it}, true).ToString())
	}
	return strings.Join(parts, " ")
}
