package eval

import (
	"sort"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/value"
)

type tuple map[string]value.Value

func cloneTuple(t tuple) tuple {
	nt := make(tuple, len(t)+1)
	for k, v := range t {
		nt[k] = v
	}
	return nt
}

// evalFlwor threads a list of variable-binding tuples through the
// clauses of a "for"/"let" expression in source order (spec §4.J: FLWOR
// clauses evaluate left to right, each one transforming the tuple
// stream produced by the one before it).
func (ctx *Context) evalFlwor(node *ast.Node) (value.Value, error) {
	tuples := []tuple{{}}
	var err error
	var sortKeys [][]sortKey // parallel to tuples, populated by an order-by clause

	for _, clause := range node.Children {
		switch clause.Kind {
		case ast.ForBinding:
			tuples, err = ctx.expandForBinding(tuples, clause)
		case ast.LetBinding:
			tuples, err = ctx.expandLetBinding(tuples, clause)
		case ast.Expression:
			switch clause.Value {
			case "where":
				tuples, err = ctx.filterTuples(tuples, clause.Children[0])
			case "order by":
				sortKeys, err = ctx.computeSortKeys(tuples, clause.Children)
			case "return":
				return ctx.evalReturn(tuples, sortKeys, clause.Children[0])
			}
		}
		if err != nil {
			return value.Value{}, err
		}
	}
	return value.Empty(), nil
}

func (ctx *Context) expandForBinding(tuples []tuple, binding *ast.Node) ([]tuple, error) {
	name := binding.Value
	var out []tuple
	for _, t := range tuples {
		srcVal, err := ctx.withVars(t).Eval(binding.Children[0])
		if err != nil {
			return nil, err
		}
		for _, item := range asSequenceItems(srcVal) {
			nt := cloneTuple(t)
			nt[name] = item
			out = append(out, nt)
		}
	}
	return out, nil
}

func (ctx *Context) expandLetBinding(tuples []tuple, binding *ast.Node) ([]tuple, error) {
	name := binding.Value
	out := make([]tuple, len(tuples))
	for i, t := range tuples {
		v, err := ctx.withVars(t).Eval(binding.Children[0])
		if err != nil {
			return nil, err
		}
		nt := cloneTuple(t)
		nt[name] = v
		out[i] = nt
	}
	return out, nil
}

func (ctx *Context) filterTuples(tuples []tuple, cond *ast.Node) ([]tuple, error) {
	var out []tuple
	for _, t := range tuples {
		v, err := ctx.withVars(t).Eval(cond)
		if err != nil {
			return nil, err
		}
		if v.ToBoolean() {
			out = append(out, t)
		}
	}
	return out, nil
}

type sortKey struct {
	val        value.Value
	descending bool
	emptyLeast bool
}

func (ctx *Context) computeSortKeys(tuples []tuple, specs []*ast.Node) ([][]sortKey, error) {
	keys := make([][]sortKey, len(tuples))
	for i, t := range tuples {
		sub := ctx.withVars(t)
		row := make([]sortKey, len(specs))
		for j, spec := range specs {
			v, err := sub.Eval(spec.Children[0])
			if err != nil {
				return nil, err
			}
			row[j] = sortKey{val: v, descending: spec.Descending, emptyLeast: spec.EmptyLeast}
		}
		keys[i] = row
	}
	return keys, nil
}

func (ctx *Context) evalReturn(tuples []tuple, sortKeys [][]sortKey, retExpr *ast.Node) (value.Value, error) {
	order := make([]int, len(tuples))
	for i := range order {
		order[i] = i
	}
	if sortKeys != nil {
		sort.SliceStable(order, func(a, b int) bool {
			return sortKeyLess(sortKeys[order[a]], sortKeys[order[b]])
		})
	}
	var items []value.NodeItem
	for _, idx := range order {
		v, err := ctx.withVars(tuples[idx]).Eval(retExpr)
		if err != nil {
			return value.Value{}, err
		}
		items = append(items, asItemList(v)...)
	}
	return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, nil
}

func sortKeyLess(a, b []sortKey) bool {
	for i := range a {
		if i >= len(b) {
			break
		}
		if c := compareSortKey(a[i], b[i]); c != 0 {
			return c < 0
		}
	}
	return false
}

func compareSortKey(a, b sortKey) int {
	aEmpty, bEmpty := a.val.IsEmptySequence(), b.val.IsEmptySequence()
	if aEmpty || bEmpty {
		switch {
		case aEmpty && bEmpty:
			return 0
		case aEmpty:
			if a.emptyLeast {
				return -1
			}
			return 1
		default:
			if b.emptyLeast {
				return 1
			}
			return -1
		}
	}
	var c int
	if a.val.Kind == value.Number || b.val.Kind == value.Number {
		an, bn := a.val.ToNumber(), b.val.ToNumber()
		switch {
		case an < bn:
			c = -1
		case an > bn:
			c = 1
		}
	} else {
		as, bs := a.val.ToString(), b.val.ToString()
		switch {
		case as < bs:
			c = -1
		case as > bs:
			c = 1
		}
	}
	if a.descending {
		c = -c
	}
	return c
}

// ---- quantified expressions ------------------------------------------

func (ctx *Context) evalQuantified(node *ast.Node) (value.Value, error) {
	bindings := node.Children[:len(node.Children)-1]
	satisfies := node.Children[len(node.Children)-1].Children[0]

	tuples := []tuple{{}}
	for _, b := range bindings {
		name := b.Value
		var out []tuple
		for _, t := range tuples {
			srcVal, err := ctx.withVars(t).Eval(b.Children[0])
			if err != nil {
				return value.Value{}, err
			}
			for _, item := range asSequenceItems(srcVal) {
				nt := cloneTuple(t)
				nt[name] = item
				out = append(out, nt)
			}
		}
		tuples = out
	}

	isEvery := node.Value == "every"
	for _, t := range tuples {
		v, err := ctx.withVars(t).Eval(satisfies)
		if err != nil {
			return value.Value{}, err
		}
		if v.ToBoolean() {
			if !isEvery {
				return value.FromBool(true), nil
			}
		} else if isEvery {
			return value.FromBool(false), nil
		}
	}
	return value.FromBool(isEvery), nil
}
