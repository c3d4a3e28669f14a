package eval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/axis"
	"github.com/parasol-framework/xpathql/value"
	"github.com/parasol-framework/xpathql/xmltree"
)

// Evaluate runs a compiled query's root expression against ctx, the
// evaluator's single entry point (spec §4.J).
func Evaluate(ctx *Context, root *ast.Node) (value.Value, error) {
	return ctx.Eval(root)
}

// Eval dispatches on node.Kind. Node kinds that only ever appear as a
// child of a specific parent (Step, Predicate, ForBinding, ...) are not
// handled here; they are consumed directly by the handler that expects
// them.
func (ctx *Context) Eval(node *ast.Node) (value.Value, error) {
	switch node.Kind {
	case ast.LocationPath:
		return ctx.evalLocationPath(node)
	case ast.Path:
		return ctx.evalPath(node)
	case ast.Filter:
		return ctx.evalFilter(node)
	case ast.Union:
		return ctx.evalUnion(node)
	case ast.BinaryOp:
		return ctx.evalBinaryOp(node)
	case ast.UnaryOp:
		return ctx.evalUnaryOp(node)
	case ast.FunctionCall:
		return ctx.evalFunctionCall(node)
	case ast.Literal:
		return value.FromString(node.Value), nil
	case ast.Number:
		n, err := parseNumber(node.Value)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromNumber(n), nil
	case ast.String:
		return value.FromString(node.Value), nil
	case ast.VariableReference:
		return ctx.evalVariableReference(node)
	case ast.Conditional:
		return ctx.evalConditional(node)
	case ast.FlworExpression:
		return ctx.evalFlwor(node)
	case ast.QuantifiedExpression:
		return ctx.evalQuantified(node)
	case ast.SequenceExpr:
		return ctx.evalSequence(node)
	case ast.RangeExpr:
		return ctx.evalRange(node)
	case ast.DirectElementConstructor:
		t, err := ctx.buildDirectElement(node)
		if err != nil {
			return value.Value{}, err
		}
		return tagToValue(t), nil
	case ast.ComputedElementConstructor:
		t, err := ctx.buildComputedElement(node)
		if err != nil {
			return value.Value{}, err
		}
		return tagToValue(t), nil
	case ast.ComputedAttributeConstructor:
		return ctx.evalComputedAttribute(node)
	case ast.TextConstructor:
		t, err := ctx.buildTextConstructor(node)
		if err != nil {
			return value.Value{}, err
		}
		return tagToValue(t), nil
	case ast.CommentConstructor:
		t, err := ctx.buildCommentConstructor(node)
		if err != nil {
			return value.Value{}, err
		}
		return tagToValue(t), nil
	case ast.PiConstructor:
		t, err := ctx.buildPiConstructor(node)
		if err != nil {
			return value.Value{}, err
		}
		return tagToValue(t), nil
	case ast.DocumentConstructor:
		t, err := ctx.buildDocumentConstructor(node)
		if err != nil {
			return value.Value{}, err
		}
		return tagToValue(t), nil
	default:
		return value.Value{}, fmt.Errorf("eval: cannot evaluate ast kind %d directly", node.Kind)
	}
}

func parseNumber(s string) (float64, error) {
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric literal %q", s)
	}
	return n, nil
}

func tagToValue(t *xmltree.Tag) value.Value {
	return value.FromNodes([]value.NodeItem{{Tag: t}}, true)
}

// ---- location paths ----------------------------------------------------

func (ctx *Context) evalLocationPath(node *ast.Node) (value.Value, error) {
	var items []value.NodeItem
	if node.Value == "/" || node.Value == "//" {
		if len(node.Children) == 0 {
			return ctx.rootNodeSet(), nil
		}
		items = []value.NodeItem{{}}
	} else {
		items = []value.NodeItem{ctx.Item}
	}
	result, err := ctx.runSteps(items, node.Children)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromNodes(result, false), nil
}

func (ctx *Context) rootNodeSet() value.Value {
	items := make([]value.NodeItem, 0, len(ctx.Doc.Tags))
	for _, t := range ctx.Doc.Tags {
		items = append(items, value.NodeItem{Doc: ctx.Doc, Tag: t})
	}
	return value.FromNodes(items, false)
}

func (ctx *Context) runSteps(items []value.NodeItem, steps []*ast.Node) ([]value.NodeItem, error) {
	cur := items
	for _, step := range steps {
		next, err := ctx.evalStep(cur, step)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

var reverseAxes = map[string]bool{
	"ancestor": true, "ancestor-or-self": true,
	"preceding": true, "preceding-sibling": true,
}

func (ctx *Context) evalStep(items []value.NodeItem, step *ast.Node) ([]value.NodeItem, error) {
	axisName := step.Children[0].Value
	nodeTest := step.Children[1]
	preds := step.Children[2:]

	var out []value.NodeItem
	for _, it := range items {
		selected := ctx.selectAxis(it, ast.Axis(axisName))
		var filtered []value.NodeItem
		for _, cand := range selected {
			if ctx.matchesNodeTest(cand, nodeTest, axisName) {
				filtered = append(filtered, cand)
			}
		}
		var err error
		for _, pred := range preds {
			filtered, err = ctx.applyPredicate(filtered, pred, reverseAxes[axisName])
			if err != nil {
				return nil, err
			}
		}
		out = append(out, filtered...)
	}
	return out, nil
}

// selectAxis wraps axis.Select with the document-root sentinel: a
// NodeItem with Tag/Attribute/StringVal all nil stands for the document
// node itself, which the axis package (built purely around Tag
// pointers) has no vocabulary for.
func (ctx *Context) selectAxis(it value.NodeItem, ax ast.Axis) []value.NodeItem {
	if it.Tag == nil && it.Attribute == nil && it.StringVal == nil {
		switch ax {
		case ast.Child:
			out := make([]value.NodeItem, 0, len(ctx.Doc.Tags))
			for _, t := range ctx.Doc.Tags {
				out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: t})
			}
			return out
		case ast.Descendant, ast.DescendantOrSelf:
			var out []value.NodeItem
			for _, t := range ctx.Doc.Tags {
				out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: t})
				out = append(out, axis.Select(ctx.Doc, value.NodeItem{Doc: ctx.Doc, Tag: t}, ast.Descendant)...)
			}
			return out
		case ast.SelfAxis:
			return []value.NodeItem{it}
		default:
			return nil
		}
	}
	return axis.Select(ctx.Doc, it, ax)
}

func (ctx *Context) matchesNodeTest(cand value.NodeItem, test *ast.Node, axisName string) bool {
	switch test.Kind {
	case ast.Wildcard:
		switch axisName {
		case "attribute":
			return cand.Attribute != nil
		case "namespace":
			return cand.StringVal != nil && cand.Attribute == nil && cand.Tag == nil
		default:
			return cand.Tag != nil && cand.Tag.IsElement()
		}
	case ast.NameTest:
		return ctx.matchName(cand, test.Value, axisName)
	case ast.NodeTypeTest:
		switch test.Value {
		case "node":
			return cand.Tag != nil || cand.Attribute != nil || cand.StringVal != nil
		case "text":
			return cand.Tag != nil && cand.Tag.IsText()
		case "comment":
			return cand.Tag != nil && cand.Tag.Flags&xmltree.Comment != 0
		}
		return false
	case ast.ProcessingInstructionTest:
		if cand.Tag == nil || cand.Tag.Flags&xmltree.Instruction == 0 {
			return false
		}
		if test.Value == "" {
			return true
		}
		return cand.Tag.PITarget() == test.Value
	default:
		return false
	}
}

// matchName implements spec §4.J's node-test name matching, dispatching
// to the attribute or element variant since only elements carry a
// namespace hash in this tree model (see xmltree.Attribute).
func (ctx *Context) matchName(cand value.NodeItem, name, axisName string) bool {
	if axisName == "attribute" {
		if cand.Attribute == nil {
			return false
		}
		return matchAttributeName(cand.Attribute.Name, name)
	}
	if cand.Tag == nil || !cand.Tag.IsElement() {
		return false
	}
	return ctx.matchElementName(cand.Tag, name)
}

// matchAttributeName compares an attribute NameTest case-insensitively
// on the local name. Attributes carry no namespace hash structurally,
// so prefix matching stays a textual comparison against whatever
// prefix text the host or a constructor stored on the attribute name.
func matchAttributeName(actual, name string) bool {
	actualPrefix, actualLocal := splitQName(actual)
	if strings.HasSuffix(name, ":*") {
		return strings.EqualFold(actualPrefix, strings.TrimSuffix(name, ":*"))
	}
	if strings.HasPrefix(name, "*:") {
		return strings.EqualFold(actualLocal, strings.TrimPrefix(name, "*:"))
	}
	wantPrefix, wantLocal := splitQName(name)
	return strings.EqualFold(actualPrefix, wantPrefix) && strings.EqualFold(actualLocal, wantLocal)
}

// matchElementName implements the full node-test name match for
// elements: the local name compares case-insensitively, and the test's
// prefix (or, for an unprefixed test, the prolog's default element
// namespace) must resolve to the same namespace hash as the candidate
// Tag's own NamespaceHash.
func (ctx *Context) matchElementName(t *xmltree.Tag, name string) bool {
	_, actualLocal := splitQName(t.Name())
	if strings.HasSuffix(name, ":*") {
		wantNS, ok := ctx.resolveTestNamespace(strings.TrimSuffix(name, ":*"))
		return ok && wantNS == t.NamespaceHash
	}
	if strings.HasPrefix(name, "*:") {
		return strings.EqualFold(actualLocal, strings.TrimPrefix(name, "*:"))
	}
	prefix, local := splitQName(name)
	if !strings.EqualFold(actualLocal, local) {
		return false
	}
	wantNS, ok := ctx.resolveTestNamespace(prefix)
	if !ok {
		return t.NamespaceHash == 0
	}
	return wantNS == t.NamespaceHash
}

// resolveTestNamespace resolves a NameTest's (possibly empty) prefix to
// the namespace hash it must match, registering the URI on ctx.Doc so
// the hash is comparable to a Tag's own NamespaceHash. ok is false when
// there is nothing to resolve against (no prefix and no default element
// namespace in scope), meaning "no namespace" rather than "any
// namespace".
func (ctx *Context) resolveTestNamespace(prefix string) (uint32, bool) {
	if prefix == "" {
		if ctx.Prolog.DefaultElementNS == "" {
			return 0, false
		}
		return ctx.Doc.RegisterNamespace(ctx.Prolog.DefaultElementNS), true
	}
	if uri, ok := ctx.Prolog.ResolvePrefix(prefix); ok {
		return ctx.Doc.RegisterNamespace(uri), true
	}
	return 0, false
}

func (ctx *Context) evalPath(node *ast.Node) (value.Value, error) {
	primary, err := ctx.Eval(node.Children[0])
	if err != nil {
		return value.Value{}, err
	}
	items, err := asNodeItems(primary)
	if err != nil {
		return value.Value{}, err
	}
	result, err := ctx.runSteps(items, node.Children[1].Children)
	if err != nil {
		return value.Value{}, err
	}
	return value.FromNodes(result, false), nil
}

func asNodeItems(v value.Value) ([]value.NodeItem, error) {
	if v.Kind != value.NodeSet {
		return nil, fmt.Errorf("path step applied to a non-node sequence")
	}
	return v.Items, nil
}

// ---- predicates ---------------------------------------------------------

func (ctx *Context) applyPredicate(items []value.NodeItem, predNode *ast.Node, reverse bool) ([]value.NodeItem, error) {
	size := len(items)
	var out []value.NodeItem
	for i, it := range items {
		pos := i + 1
		if reverse {
			pos = size - i
		}
		subCtx := ctx.withItem(it, pos, size)
		v, err := subCtx.evalPredicateExpr(predNode.Children[0])
		if err != nil {
			return nil, err
		}
		keep := false
		if v.Kind == value.Number {
			keep = v.Num == float64(pos)
		} else {
			keep = v.ToBoolean()
		}
		if keep {
			out = append(out, it)
		}
	}
	return out, nil
}

// evalPredicateExpr special-cases the shorthand predicate forms spec
// §4.D's parser builds ("[=lit]", "[@a=lit]", "[@a]"); anything else
// falls through to the generic evaluator.
func (ctx *Context) evalPredicateExpr(expr *ast.Node) (value.Value, error) {
	if expr.Kind == ast.BinaryOp {
		switch expr.Value {
		case "content-equals":
			lit, err := ctx.Eval(expr.Children[0])
			if err != nil {
				return value.Value{}, err
			}
			sv := value.FromNodes([]value.NodeItem{ctx.Item}, true).ToString()
			return value.FromBool(sv == lit.ToString()), nil
		case "attribute-equals":
			name := expr.Children[0].Value
			lit, err := ctx.Eval(expr.Children[1])
			if err != nil {
				return value.Value{}, err
			}
			if ctx.Item.Tag == nil {
				return value.FromBool(false), nil
			}
			v, ok := ctx.Item.Tag.Attr(name)
			return value.FromBool(ok && v == lit.ToString()), nil
		case "attribute-exists":
			name := expr.Children[0].Value
			if ctx.Item.Tag == nil {
				return value.FromBool(false), nil
			}
			_, ok := ctx.Item.Tag.Attr(name)
			return value.FromBool(ok), nil
		}
	}
	return ctx.Eval(expr)
}

func (ctx *Context) evalFilter(node *ast.Node) (value.Value, error) {
	primary, err := ctx.Eval(node.Children[0])
	if err != nil {
		return value.Value{}, err
	}
	var items []value.NodeItem
	if primary.Kind == value.NodeSet {
		items = primary.Items
	} else {
		s := primary.ToString()
		items = []value.NodeItem{{StringVal: &s}}
	}
	filtered, err := ctx.applyPredicate(items, node.Children[1], false)
	if err != nil {
		return value.Value{}, err
	}
	return value.Value{Kind: value.NodeSet, Items: filtered, PreserveNodeOrder: true}, nil
}

// ---- sequences, ranges, union -------------------------------------------

func asSequenceItems(v value.Value) []value.Value {
	if v.Kind != value.NodeSet {
		return []value.Value{v}
	}
	out := make([]value.Value, 0, len(v.Items))
	for _, it := range v.Items {
		out = append(out, value.FromNodes([]value.NodeItem{it}, true))
	}
	return out
}

func (ctx *Context) evalSequence(node *ast.Node) (value.Value, error) {
	var items []value.NodeItem
	for _, child := range node.Children {
		v, err := ctx.Eval(child)
		if err != nil {
			return value.Value{}, err
		}
		items = append(items, asItemList(v)...)
	}
	return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, nil
}

func asItemList(v value.Value) []value.NodeItem {
	if v.Kind == value.NodeSet {
		return v.Items
	}
	s := v.ToString()
	return []value.NodeItem{{StringVal: &s}}
}

func (ctx *Context) evalRange(node *ast.Node) (value.Value, error) {
	left, err := ctx.Eval(node.Children[0])
	if err != nil {
		return value.Value{}, err
	}
	right, err := ctx.Eval(node.Children[1])
	if err != nil {
		return value.Value{}, err
	}
	lo, hi := int(left.ToNumber()), int(right.ToNumber())
	var items []value.NodeItem
	for i := lo; i <= hi; i++ {
		s := value.FormatNumber(float64(i))
		items = append(items, value.NodeItem{StringVal: &s})
	}
	return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, nil
}

func (ctx *Context) evalUnion(node *ast.Node) (value.Value, error) {
	left, err := ctx.Eval(node.Children[0])
	if err != nil {
		return value.Value{}, err
	}
	right, err := ctx.Eval(node.Children[1])
	if err != nil {
		return value.Value{}, err
	}
	combined := append(append([]value.NodeItem(nil), left.Items...), right.Items...)
	return value.FromNodes(combined, false), nil
}

// ---- variables, conditionals ---------------------------------------------

// evalVariableReference resolves $name in the order spec §4.J.1
// requires: context-frame locals, then host-provided document
// variables, then prolog-declared variables. Prolog-variable
// resolution is guarded by ctx.resolvingVars so a self- or mutually-
// referential `declare variable` errors instead of recursing forever.
func (ctx *Context) evalVariableReference(node *ast.Node) (value.Value, error) {
	if v, ok := ctx.Vars[node.Value]; ok {
		return v, nil
	}
	if ctx.Doc != nil {
		if v, ok := ctx.Doc.Variables[node.Value]; ok {
			return hostValueToValue(v), nil
		}
	}
	if expr, ok := ctx.Prolog.Variables[node.Value]; ok {
		if ctx.resolvingVars[node.Value] {
			return value.Value{}, fmt.Errorf("circular reference resolving declared variable $%s", node.Value)
		}
		ctx.resolvingVars[node.Value] = true
		v, err := ctx.Eval(expr)
		delete(ctx.resolvingVars, node.Value)
		return v, err
	}
	return value.Value{}, fmt.Errorf("undefined variable $%s", node.Value)
}

func hostValueToValue(v interface{}) value.Value {
	switch t := v.(type) {
	case string:
		return value.FromString(t)
	case float64:
		return value.FromNumber(t)
	case int:
		return value.FromNumber(float64(t))
	case bool:
		return value.FromBool(t)
	default:
		return value.FromString(fmt.Sprint(t))
	}
}

func (ctx *Context) evalConditional(node *ast.Node) (value.Value, error) {
	cond, err := ctx.Eval(node.Children[0])
	if err != nil {
		return value.Value{}, err
	}
	if cond.ToBoolean() {
		return ctx.Eval(node.Children[1])
	}
	return ctx.Eval(node.Children[2])
}
