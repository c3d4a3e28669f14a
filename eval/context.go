// Package eval implements the xpathql expression evaluator (spec
// §4.J): a tree-walking interpreter over the ast package's compiled
// query, threading a context stack (item/position/size/variable
// bindings) the way the grammar's dynamic context requires.
package eval

import (
	"github.com/parasol-framework/xpathql/arena"
	"github.com/parasol-framework/xpathql/function"
	"github.com/parasol-framework/xpathql/prolog"
	"github.com/parasol-framework/xpathql/schema"
	"github.com/parasol-framework/xpathql/value"
	"github.com/parasol-framework/xpathql/xmltree"
)

// idIndexCache is the shared, lazily-built id()/idref() lookup table
// (SPEC_FULL.md supplemental features); shared by pointer across every
// Context derived from one top-level evaluation so it is built at most
// once per query.
type idIndexCache struct {
	built bool
	index map[string][]*xmltree.Tag
}

// Context is the dynamic evaluation context: the current item/
// position/size triple plus the variable bindings and host
// collaborators every expression needs to resolve against.
type Context struct {
	Doc       *xmltree.Document
	Prolog    *prolog.Prolog
	Functions *function.Registry
	Loaders   *xmltree.Loaders
	Arena     *arena.Arena
	Schema    *schema.Registry

	Vars map[string]value.Value

	Item     value.NodeItem
	Position int
	Size     int

	idIndex   *idIndexCache
	idCounter *int

	// constructorDepth counts nested node-constructor builds currently
	// on the call stack (spec §9 DESIGN NOTES: bound constructor
	// recursion via an explicit depth counter). It is a reference type
	// shared across every Context derived from one top-level
	// evaluation, so it tracks total nesting depth regardless of how
	// many intervening Eval/withVar/withItem hops sit between one
	// constructor and the next.
	constructorDepth *int

	// resolvingVars tracks prolog-declared variables currently being
	// resolved on the active call chain (spec §4.J.1: prolog-variable
	// resolution must detect cycles via an in-evaluation set). It is a
	// reference type shared across every Context derived from one
	// top-level evaluation, so entering/leaving it in
	// evalVariableReference is visible to the whole recursive chain.
	resolvingVars map[string]bool
}

// NewContext builds the top-level context for one query evaluation,
// rooted at the document itself (spec §6.1: the context item of a
// freshly compiled query is the document root).
func NewContext(doc *xmltree.Document, pr *prolog.Prolog, funcs *function.Registry, loaders *xmltree.Loaders, ar *arena.Arena) *Context {
	counter := 0
	depth := 0
	return &Context{
		Doc:              doc,
		Prolog:           pr,
		Functions:        funcs,
		Loaders:          loaders,
		Arena:            ar,
		Vars:             map[string]value.Value{},
		Item:             value.NodeItem{},
		Position:         1,
		Size:             1,
		idIndex:          &idIndexCache{},
		idCounter:        &counter,
		constructorDepth: &depth,
		resolvingVars:    map[string]bool{},
	}
}

func (ctx *Context) newID() int {
	*ctx.idCounter--
	return *ctx.idCounter
}

// withVar returns a derived context with name bound to v, copy-on-write
// so sibling bindings (e.g. two "for" tuples) never alias each other's
// variable maps.
func (ctx *Context) withVar(name string, v value.Value) *Context {
	nc := *ctx
	nc.Vars = make(map[string]value.Value, len(ctx.Vars)+1)
	for k, val := range ctx.Vars {
		nc.Vars[k] = val
	}
	nc.Vars[name] = v
	return &nc
}

// withVars is withVar for an entire tuple at once, used when entering a
// FLWOR return/where/order-by clause. It overlays vars on top of the
// context's existing bindings so a FLWOR nested inside a function body
// or another FLWOR still sees its enclosing scope's variables.
func (ctx *Context) withVars(vars map[string]value.Value) *Context {
	nc := *ctx
	merged := make(map[string]value.Value, len(ctx.Vars)+len(vars))
	for k, v := range ctx.Vars {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}
	nc.Vars = merged
	return &nc
}

func (ctx *Context) withItem(it value.NodeItem, pos, size int) *Context {
	nc := *ctx
	nc.Item = it
	nc.Position = pos
	nc.Size = size
	return &nc
}

func (ctx *Context) resolveIDRefs(ids []string) []value.NodeItem {
	if !ctx.idIndex.built {
		ctx.idIndex.index = buildIDIndex(ctx.Doc)
		ctx.idIndex.built = true
	}
	var out []value.NodeItem
	for _, id := range ids {
		for _, t := range ctx.idIndex.index[id] {
			out = append(out, value.NodeItem{Doc: ctx.Doc, Tag: t})
		}
	}
	return out
}

func buildIDIndex(doc *xmltree.Document) map[string][]*xmltree.Tag {
	idx := map[string][]*xmltree.Tag{}
	var walk func(t *xmltree.Tag)
	walk = func(t *xmltree.Tag) {
		if t.IsElement() {
			if v, ok := t.Attr("id"); ok {
				idx[v] = append(idx[v], t)
			}
			if v, ok := t.Attr("xml:id"); ok {
				idx[v] = append(idx[v], t)
			}
		}
		for _, c := range t.Children {
			walk(c)
		}
	}
	for _, t := range doc.Tags {
		walk(t)
	}
	return idx
}

func (ctx *Context) functionContext() *function.Context {
	return &function.Context{
		Doc:           ctx.Doc,
		Item:          ctx.Item,
		Position:      ctx.Position,
		Size:          ctx.Size,
		Prolog:        ctx.Prolog,
		Loaders:       ctx.Loaders,
		BaseURI:       ctx.Prolog.StaticBaseURI,
		Schema:        ctx.Schema,
		ResolveIDRefs: ctx.resolveIDRefs,
	}
}
