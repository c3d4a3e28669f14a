// Package value implements the XPath/XQuery sequence value model (spec
// §3.2) and the conversion laws of spec §4.A.
package value

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/parasol-framework/xpathql/schema"
	"github.com/parasol-framework/xpathql/xmltree"
)

// Kind tags the scalar a Value carries, or NodeSet for a sequence of
// nodes (spec §3.2).
type Kind int

const (
	NodeSet Kind = iota
	Boolean
	Number
	String
	Date
	Time
	DateTime
)

// NodeItem is one entry of a NodeSet sequence: a borrowed Tag pointer
// (nil for synthetic items such as text returned by tokenize), an
// optional Attribute selecting one attribute of that Tag, and an
// optional precomputed string value.
type NodeItem struct {
	Doc       *xmltree.Document
	Tag       *xmltree.Tag
	Attribute *xmltree.Attribute
	// AttrIndex locates Attribute within Tag.Attribs for identity
	// comparisons (spec §4.F: attribute identity is (owner, attr)).
	AttrIndex int
	StringVal *string
}

// Value is the tagged union described by spec §3.2.
type Value struct {
	Kind Kind

	Bool     bool
	Num      float64
	Str      string
	DateStr  string // canonical lexical form for Date/Time/DateTime

	Items              []NodeItem
	StringOverride     *string
	PreserveNodeOrder  bool
	SchemaType         *schema.Descriptor
}

// Empty constructs the empty node-set sequence.
func Empty() Value { return Value{Kind: NodeSet} }

func FromBool(b bool) Value   { return Value{Kind: Boolean, Bool: b} }
func FromNumber(n float64) Value { return Value{Kind: Number, Num: n} }
func FromString(s string) Value  { return Value{Kind: String, Str: s} }

// FromNodes builds a NodeSet, normalising it per spec §4.F: strip nil
// items, sort to document order (unless preserveOrder), dedupe by
// (tag, attribute) identity.
func FromNodes(items []NodeItem, preserveOrder bool) Value {
	filtered := items[:0:0]
	for _, it := range items {
		if it.Tag == nil && it.Attribute == nil && it.StringVal == nil && it.Doc == nil {
			continue
		}
		filtered = append(filtered, it)
	}
	if !preserveOrder {
		sort.SliceStable(filtered, func(i, j int) bool {
			return documentOrderLess(filtered[i], filtered[j])
		})
	}
	filtered = dedupe(filtered)
	return Value{Kind: NodeSet, Items: filtered, PreserveNodeOrder: preserveOrder}
}

func dedupe(items []NodeItem) []NodeItem {
	out := items[:0:0]
	seen := make(map[[2]interface{}]bool, len(items))
	for _, it := range items {
		if it.Tag == nil {
			// synthetic items (atomic strings, standalone attributes, the
			// document node) carry no tag identity to dedupe on
			out = append(out, it)
			continue
		}
		key := [2]interface{}{it.Tag, identityOfAttr(it)}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

func identityOfAttr(it NodeItem) interface{} {
	if it.Attribute == nil {
		return -1
	}
	return it.AttrIndex
}

// documentOrderLess compares two items by the preorder document walk
// position. Items belonging to different documents compare by document
// pointer identity first; cross-document order is otherwise unspecified
// but stable within one sort (spec §4.F, §5).
func documentOrderLess(a, b NodeItem) bool {
	if a.Doc != b.Doc {
		return fmt.Sprintf("%p", a.Doc) < fmt.Sprintf("%p", b.Doc)
	}
	if a.Tag == b.Tag {
		if a.Attribute == nil || b.Attribute == nil {
			return false
		}
		return a.AttrIndex < b.AttrIndex
	}
	if a.Tag == nil {
		return true
	}
	if b.Tag == nil {
		return false
	}
	return tagPreorder(a.Tag) < tagPreorder(b.Tag)
}

// tagPreorder returns a value that increases in preorder-walk order.
// Tag.ID is assigned by the host in document order for host tags, and
// constructed tags use negative IDs assigned increasingly at
// construction time (spec §9), so plain ID comparison is a correct
// preorder proxy in both regimes as long as IDs within one regime are
// monotonic, which the host and the evaluator both guarantee.
func tagPreorder(t *xmltree.Tag) int {
	if t.ID < 0 {
		// Constructed nodes: more negative means "constructed later"
		// under the evaluator's counter (see eval package), so invert.
		return -t.ID + (1 << 30)
	}
	return t.ID
}

// ToBoolean implements spec §4.A: Boolean → scalar; Number → nonzero
// and not NaN; String → non-empty, with a schema-boolean override that
// parses "true"/"1"/"false"/"0"; NodeSet → non-empty.
func (v Value) ToBoolean() bool {
	switch v.Kind {
	case Boolean:
		return v.Bool
	case Number:
		return v.Num != 0 && !math.IsNaN(v.Num)
	case String:
		if v.SchemaType != nil && (v.SchemaType.Kind == schema.XSBoolean || v.SchemaType.Kind == schema.PseudoBoolean) {
			s := strings.TrimSpace(v.Str)
			switch strings.ToLower(s) {
			case "true", "1":
				return true
			case "false", "0":
				return false
			}
		}
		return v.Str != ""
	case NodeSet:
		return len(v.Items) > 0
	default:
		return v.Str != ""
	}
}

// ToNumber implements spec §4.A.
func (v Value) ToNumber() float64 {
	switch v.Kind {
	case Boolean:
		if v.Bool {
			return 1
		}
		return 0
	case Number:
		return v.Num
	case String:
		return parseLenientNumber(v.Str)
	case NodeSet:
		if len(v.Items) == 0 {
			return math.NaN()
		}
		return parseLenientNumber(v.firstItemString())
	default:
		return math.NaN()
	}
}

func parseLenientNumber(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return f
}

// ToString implements spec §4.A, including NodeSet's override chain
// (string_override, attribute value, precomputed string_values,
// concatenated text).
func (v Value) ToString() string {
	switch v.Kind {
	case Boolean:
		if v.Bool {
			return "true"
		}
		return "false"
	case Number:
		return FormatNumber(v.Num)
	case String:
		return v.Str
	case NodeSet:
		if v.StringOverride != nil {
			return *v.StringOverride
		}
		return v.firstItemString()
	default:
		return v.Str
	}
}

func (v Value) firstItemString() string {
	if len(v.Items) == 0 {
		return ""
	}
	it := v.Items[0]
	if it.Attribute != nil {
		return it.Attribute.Value
	}
	if it.StringVal != nil {
		return *it.StringVal
	}
	if it.Tag != nil {
		return it.Tag.StringValue()
	}
	return ""
}

// FormatNumber is the canonical XPath number→string conversion (spec
// §4.A, §8 property 5): NaN/Infinity spellings, "0" for ±0, otherwise
// fifteen significant digits with trailing zeros trimmed and no leading
// '+'. Values of magnitude 1e15 and above are not rounded: they keep
// every digit of strconv's shortest round-trip form.
func FormatNumber(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n == 0:
		return "0"
	}
	s := strconv.FormatFloat(n, 'f', -1, 64)
	// strconv already trims trailing zeros for -1 precision; enforce
	// the 15-significant-digit ceiling the spec calls for.
	if trimmed := trimSignificant(s, 15); trimmed != "" {
		s = trimmed
	}
	return s
}

func trimSignificant(s string, maxSig int) string {
	neg := strings.HasPrefix(s, "-")
	body := strings.TrimPrefix(s, "-")
	intPart, fracPart, hasFrac := strings.Cut(body, ".")
	sig := strings.TrimLeft(intPart, "0")
	sigLen := len(sig)
	if sigLen == 0 && hasFrac {
		// value < 1: leading fractional zeros don't count as
		// significant digits.
		i := 0
		for i < len(fracPart) && fracPart[i] == '0' {
			i++
		}
		sigLen = -i
	}
	avail := maxSig - sigLen
	if hasFrac && avail > 0 && len(fracPart) > avail {
		f, err := strconv.ParseFloat(intPart+"."+fracPart, 64)
		if err != nil {
			return ""
		}
		rounded := strconv.FormatFloat(f, 'f', avail, 64)
		rounded = strings.TrimRight(rounded, "0")
		rounded = strings.TrimRight(rounded, ".")
		if neg {
			rounded = "-" + rounded
		}
		return rounded
	}
	return ""
}

// Coerce dispatches on target.Kind per spec §3.3: boolean → ToBoolean;
// numeric → ToNumber; string-like → ToString; otherwise v unchanged.
func (v Value) Coerce(target *schema.Descriptor) Value {
	if target == nil {
		return v
	}
	switch target.Kind {
	case schema.XSBoolean, schema.PseudoBoolean:
		// ToBoolean's "true"/"1"/"false"/"0" string override only fires
		// when the source is already tagged xs:boolean, so stamp target
		// onto a copy before reading it rather than after.
		tagged := v
		tagged.SchemaType = target
		out := FromBool(tagged.ToBoolean())
		out.SchemaType = target
		return out
	case schema.XSDecimal, schema.XSFloat, schema.XSDouble, schema.XSInteger,
		schema.XSLong, schema.XSInt, schema.XSShort, schema.XSByte, schema.PseudoNumber:
		out := FromNumber(v.ToNumber())
		out.SchemaType = target
		return out
	case schema.XSString, schema.XSQName, schema.PseudoString:
		out := FromString(v.ToString())
		out.SchemaType = target
		return out
	default:
		return v
	}
}

// IsEmptySequence reports whether v is the empty sequence.
func (v Value) IsEmptySequence() bool {
	return v.Kind == NodeSet && len(v.Items) == 0
}

// First returns the first item of a sequence as its own single-item
// Value, used by value comparisons which only ever look at the first
// item of a multi-item operand (spec §4.J.4).
func (v Value) First() Value {
	if v.Kind != NodeSet {
		return v
	}
	if len(v.Items) == 0 {
		return v
	}
	return Value{Kind: NodeSet, Items: v.Items[:1], PreserveNodeOrder: true, StringOverride: v.StringOverride}
}

// Len reports the effective sequence length: 1 for scalars, len(Items)
// for NodeSet.
func (v Value) Len() int {
	if v.Kind != NodeSet {
		return 1
	}
	return len(v.Items)
}
