// Package axis implements the thirteen XPath step axes (spec §4.F) over
// an xmltree.Document, producing document-order-agnostic NodeItem lists
// that value.FromNodes then normalises.
package axis

import (
	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/value"
	"github.com/parasol-framework/xpathql/xmltree"
)

// Select returns the raw (unsorted, undeduped) node-set an axis step
// produces from one context item. Callers run the result through
// value.FromNodes to get document order and identity dedup.
func Select(doc *xmltree.Document, ctx value.NodeItem, axis ast.Axis) []value.NodeItem {
	switch axis {
	case ast.Child:
		return children(ctx)
	case ast.Descendant:
		return descendants(ctx, false)
	case ast.DescendantOrSelf:
		return descendants(ctx, true)
	case ast.Parent:
		return parent(doc, ctx)
	case ast.Ancestor:
		return ancestors(doc, ctx, false)
	case ast.AncestorOrSelf:
		return ancestors(doc, ctx, true)
	case ast.FollowingSibling:
		return siblings(doc, ctx, true)
	case ast.PrecedingSibling:
		return siblings(doc, ctx, false)
	case ast.Following:
		return following(doc, ctx)
	case ast.Preceding:
		return preceding(doc, ctx)
	case ast.SelfAxis:
		if ctx.Tag == nil {
			return nil
		}
		return []value.NodeItem{{Doc: ctx.Doc, Tag: ctx.Tag}}
	case ast.AttributeAxis:
		return attributes(ctx)
	case ast.NamespaceAxis:
		return namespaces(doc, ctx)
	default:
		return nil
	}
}

func children(ctx value.NodeItem) []value.NodeItem {
	if ctx.Tag == nil || ctx.Attribute != nil {
		return nil
	}
	out := make([]value.NodeItem, 0, len(ctx.Tag.Children))
	for _, c := range ctx.Tag.Children {
		out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: c})
	}
	return out
}

func descendants(ctx value.NodeItem, includeSelf bool) []value.NodeItem {
	if ctx.Tag == nil || ctx.Attribute != nil {
		return nil
	}
	var out []value.NodeItem
	if includeSelf {
		out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: ctx.Tag})
	}
	var walk func(t *xmltree.Tag)
	walk = func(t *xmltree.Tag) {
		for _, c := range t.Children {
			out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: c})
			walk(c)
		}
	}
	walk(ctx.Tag)
	return out
}

func parentTag(doc *xmltree.Document, t *xmltree.Tag) *xmltree.Tag {
	if t == nil || t.Parent == 0 {
		return nil
	}
	return doc.Map()[t.Parent]
}

func parent(doc *xmltree.Document, ctx value.NodeItem) []value.NodeItem {
	if ctx.Tag == nil {
		return nil
	}
	if ctx.Attribute != nil {
		return []value.NodeItem{{Doc: ctx.Doc, Tag: ctx.Tag}}
	}
	p := parentTag(doc, ctx.Tag)
	if p == nil {
		return nil
	}
	return []value.NodeItem{{Doc: ctx.Doc, Tag: p}}
}

func ancestors(doc *xmltree.Document, ctx value.NodeItem, includeSelf bool) []value.NodeItem {
	if ctx.Tag == nil {
		return nil
	}
	var out []value.NodeItem
	start := ctx.Tag
	if ctx.Attribute != nil {
		includeSelf = false // attribute nodes have no "self" on the ancestor axis
		out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: ctx.Tag})
		start = ctx.Tag
	} else if includeSelf {
		out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: ctx.Tag})
	}
	for t := parentTag(doc, start); t != nil; t = parentTag(doc, t) {
		out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: t})
	}
	return out
}

// siblingList returns the list ctx's tag sits in (its parent's Children,
// or doc.Tags for a top-level tag) and its index there, or (nil,-1) if
// ctx carries no tag or the tag is not found in that list.
func siblingList(doc *xmltree.Document, ctx value.NodeItem) ([]*xmltree.Tag, int) {
	if ctx.Tag == nil {
		return nil, -1
	}
	p := parentTag(doc, ctx.Tag)
	var list []*xmltree.Tag
	if p == nil {
		list = doc.Tags
	} else {
		list = p.Children
	}
	for i, t := range list {
		if t == ctx.Tag {
			return list, i
		}
	}
	return nil, -1
}

func siblings(doc *xmltree.Document, ctx value.NodeItem, following bool) []value.NodeItem {
	if ctx.Attribute != nil {
		return nil
	}
	list, idx := siblingList(doc, ctx)
	if idx < 0 {
		return nil
	}
	var out []value.NodeItem
	if following {
		for _, t := range list[idx+1:] {
			out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: t})
		}
	} else {
		for i := idx - 1; i >= 0; i-- {
			out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: list[i]})
		}
	}
	return out
}

// following collects every node after ctx in document order excluding
// descendants, by walking up through each ancestor level and taking
// that level's following siblings plus their full descendant subtrees.
func following(doc *xmltree.Document, ctx value.NodeItem) []value.NodeItem {
	if ctx.Tag == nil || ctx.Attribute != nil {
		return nil
	}
	var out []value.NodeItem
	cur := ctx.Tag
	for cur != nil {
		list, idx := siblingList(doc, value.NodeItem{Doc: ctx.Doc, Tag: cur})
		if idx >= 0 {
			for _, sib := range list[idx+1:] {
				out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: sib})
				out = append(out, descendants(value.NodeItem{Doc: ctx.Doc, Tag: sib}, false)...)
			}
		}
		cur = parentTag(doc, cur)
	}
	return out
}

func preceding(doc *xmltree.Document, ctx value.NodeItem) []value.NodeItem {
	if ctx.Tag == nil || ctx.Attribute != nil {
		return nil
	}
	ancestorSet := make(map[*xmltree.Tag]bool)
	for t := parentTag(doc, ctx.Tag); t != nil; t = parentTag(doc, t) {
		ancestorSet[t] = true
	}
	var out []value.NodeItem
	cur := ctx.Tag
	for cur != nil {
		list, idx := siblingList(doc, value.NodeItem{Doc: ctx.Doc, Tag: cur})
		if idx >= 0 {
			for i := 0; i < idx; i++ {
				sib := list[i]
				if ancestorSet[sib] {
					continue
				}
				out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: sib})
				out = append(out, descendants(value.NodeItem{Doc: ctx.Doc, Tag: sib}, false)...)
			}
		}
		cur = parentTag(doc, cur)
	}
	return out
}

func attributes(ctx value.NodeItem) []value.NodeItem {
	if ctx.Tag == nil || ctx.Attribute != nil || !ctx.Tag.IsElement() {
		return nil
	}
	attrs := ctx.Tag.Attrs()
	out := make([]value.NodeItem, 0, len(attrs))
	for i := range attrs {
		out = append(out, value.NodeItem{
			Doc: ctx.Doc, Tag: ctx.Tag,
			Attribute: &attrs[i], AttrIndex: i + 1,
		})
	}
	return out
}

// namespaces returns the in-scope namespace bindings visible from ctx as
// synthetic string-valued items (prefix "" for the default namespace),
// derived by walking ancestor xmlns[:prefix] declarations. Bindings
// closer to ctx shadow outer ones with the same prefix.
func namespaces(doc *xmltree.Document, ctx value.NodeItem) []value.NodeItem {
	if ctx.Tag == nil {
		return nil
	}
	seen := map[string]bool{}
	var out []value.NodeItem
	for t := ctx.Tag; t != nil; t = parentTag(doc, t) {
		for _, a := range t.Attrs() {
			prefix := ""
			switch {
			case a.Name == "xmlns":
				prefix = ""
			case len(a.Name) > 6 && a.Name[:6] == "xmlns:":
				prefix = a.Name[6:]
			default:
				continue
			}
			if seen[prefix] {
				continue
			}
			seen[prefix] = true
			uri := a.Value
			out = append(out, value.NodeItem{Doc: ctx.Doc, StringVal: &uri})
		}
	}
	return out
}
