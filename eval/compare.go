package eval

import (
	"math"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/value"
)

var valueComparisonOps = map[string]bool{"eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true}

// float64Epsilon is the machine epsilon for float64 (2^-52), matching
// C++'s std::numeric_limits<double>::epsilon() used by the ported
// numeric_equal() below.
const float64Epsilon = 2.220446049250313e-16

// toleranceEpsilons is the tolerance factor spec §4.J specifies: 16
// machine epsilons, relative for magnitudes over 1.0 and absolute
// otherwise. Grounded on eval_common.cpp's numeric_equal().
const toleranceEpsilons = 16

// numericEqual compares two floats for numeric equality with the
// relative/absolute tolerance spec §4.J requires, instead of exact
// float `==`: NaN is never equal to anything, infinities compare equal
// only with matching sign, and finite values tolerate up to 16*ε of
// difference (relative to the larger magnitude once it exceeds 1.0).
func numericEqual(l, r float64) bool {
	if math.IsNaN(l) || math.IsNaN(r) {
		return false
	}
	if math.IsInf(l, 0) || math.IsInf(r, 0) {
		return l == r
	}
	absL, absR := math.Abs(l), math.Abs(r)
	larger := absL
	if absR > larger {
		larger = absR
	}
	if larger <= 1.0 {
		return math.Abs(l-r) <= float64Epsilon*toleranceEpsilons
	}
	return math.Abs(l-r) <= larger*float64Epsilon*toleranceEpsilons
}

func (ctx *Context) evalBinaryOp(node *ast.Node) (value.Value, error) {
	op := node.Value
	switch op {
	case "and":
		l, err := ctx.Eval(node.Children[0])
		if err != nil {
			return value.Value{}, err
		}
		if !l.ToBoolean() {
			return value.FromBool(false), nil
		}
		r, err := ctx.Eval(node.Children[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.FromBool(r.ToBoolean()), nil
	case "or":
		l, err := ctx.Eval(node.Children[0])
		if err != nil {
			return value.Value{}, err
		}
		if l.ToBoolean() {
			return value.FromBool(true), nil
		}
		r, err := ctx.Eval(node.Children[1])
		if err != nil {
			return value.Value{}, err
		}
		return value.FromBool(r.ToBoolean()), nil
	}

	left, err := ctx.Eval(node.Children[0])
	if err != nil {
		return value.Value{}, err
	}
	right, err := ctx.Eval(node.Children[1])
	if err != nil {
		return value.Value{}, err
	}

	switch op {
	case "+":
		return value.FromNumber(left.ToNumber() + right.ToNumber()), nil
	case "-":
		return value.FromNumber(left.ToNumber() - right.ToNumber()), nil
	case "*":
		return value.FromNumber(left.ToNumber() * right.ToNumber()), nil
	case "div":
		return value.FromNumber(left.ToNumber() / right.ToNumber()), nil
	case "mod":
		return value.FromNumber(math.Mod(left.ToNumber(), right.ToNumber())), nil
	case "intersect":
		return intersectNodes(left, right), nil
	case "except":
		return exceptNodes(left, right), nil
	}

	if valueComparisonOps[op] {
		return value.FromBool(valueCompareBool(op, left.First(), right.First())), nil
	}
	return value.FromBool(generalCompare(op, left, right)), nil
}

func (ctx *Context) evalUnaryOp(node *ast.Node) (value.Value, error) {
	v, err := ctx.Eval(node.Children[0])
	if err != nil {
		return value.Value{}, err
	}
	return value.FromNumber(-v.ToNumber()), nil
}

// valueCompareBool implements the XQuery "eq/ne/lt/le/gt/ge" comparators
// over single atomic operands: numeric if either side is itself a
// Number, string otherwise. This approximates the full atomic-type
// promotion ladder of the spec with the two kinds this engine's value
// model actually distinguishes.
func valueCompareBool(op string, l, r value.Value) bool {
	if l.Kind == value.Number || r.Kind == value.Number {
		ln, rn := l.ToNumber(), r.ToNumber()
		switch op {
		case "=", "eq":
			return numericEqual(ln, rn)
		case "!=", "ne":
			return !numericEqual(ln, rn)
		case "<", "lt":
			return ln < rn
		case "<=", "le":
			return ln <= rn
		case ">", "gt":
			return ln > rn
		case ">=", "ge":
			return ln >= rn
		}
		return false
	}
	ls, rs := l.ToString(), r.ToString()
	switch op {
	case "=", "eq":
		return ls == rs
	case "!=", "ne":
		return ls != rs
	case "<", "lt":
		return ls < rs
	case "<=", "le":
		return ls <= rs
	case ">", "gt":
		return ls > rs
	case ">=", "ge":
		return ls >= rs
	}
	return false
}

// generalCompare implements XPath 1.0 general comparison: existential
// — true if any item of the left operand compares true against any item
// of the right operand (spec §4.J.4).
func generalCompare(op string, l, r value.Value) bool {
	for _, lv := range compareOperands(l) {
		for _, rv := range compareOperands(r) {
			if valueCompareBool(op, lv, rv) {
				return true
			}
		}
	}
	return false
}

func compareOperands(v value.Value) []value.Value {
	if v.Kind != value.NodeSet {
		return []value.Value{v}
	}
	if len(v.Items) == 0 {
		return nil
	}
	out := make([]value.Value, 0, len(v.Items))
	for _, it := range v.Items {
		out = append(out, value.FromNodes([]value.NodeItem{it}, true))
	}
	return out
}

func intersectNodes(l, r value.Value) value.Value {
	rset := map[[2]interface{}]bool{}
	for _, it := range r.Items {
		rset[itemIdentity(it)] = true
	}
	var out []value.NodeItem
	for _, it := range l.Items {
		if rset[itemIdentity(it)] {
			out = append(out, it)
		}
	}
	return value.FromNodes(out, false)
}

func exceptNodes(l, r value.Value) value.Value {
	rset := map[[2]interface{}]bool{}
	for _, it := range r.Items {
		rset[itemIdentity(it)] = true
	}
	var out []value.NodeItem
	for _, it := range l.Items {
		if !rset[itemIdentity(it)] {
			out = append(out, it)
		}
	}
	return value.FromNodes(out, false)
}

func itemIdentity(it value.NodeItem) [2]interface{} {
	if it.Attribute != nil {
		return [2]interface{}{it.Tag, it.AttrIndex}
	}
	return [2]interface{}{it.Tag, -1}
}
