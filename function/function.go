// Package function implements the builtin XPath/XQuery function library
// (spec §4.B), keyed by namespace URI and local name only; arity is
// checked at dispatch against each Signature, unlike the prolog package,
// which keys user-declared functions by name and arity.
package function

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/parasol-framework/xpathql/prolog"
	"github.com/parasol-framework/xpathql/schema"
	"github.com/parasol-framework/xpathql/value"
	"github.com/parasol-framework/xpathql/xmltree"
)

// FnNS is the default function namespace builtins are registered under,
// matching the prolog default-function-namespace the evaluator assumes
// when a call carries no explicit prefix.
const FnNS = "http://www.w3.org/2005/xpath-functions"

// Context is the slice of evaluation state a builtin function needs,
// kept free of the eval package's own Context type to avoid an import
// cycle (eval calls into function, never the reverse).
type Context struct {
	Doc             *xmltree.Document
	Item            value.NodeItem
	Position        int
	Size            int
	Prolog          *prolog.Prolog
	Loaders         *xmltree.Loaders
	BaseURI         string
	// Schema is the type registry xs:* constructor functions coerce
	// through (spec §3.3); wired by the eval package, defaulting to
	// schema.Default() so a zero-value Context still resolves them.
	Schema          *schema.Registry
	// ResolveIDRefs maps ID values to element items through the
	// evaluation's shared ID index; id() and idref() call it, and the
	// eval package wires it.
	ResolveIDRefs func(ids []string) []value.NodeItem
}

// Func is one builtin implementation.
type Func func(c *Context, args []value.Value) (value.Value, error)

// Signature records a function's declared arity for the arity check at
// dispatch.
type Signature struct {
	MinArgs int
	MaxArgs int // -1 for unbounded
	Impl    Func
}

// Registry is a builtin function table; Default builds a fresh one for
// each Engine.
type Registry struct {
	byKey map[string]Signature
}

func key(uri, local string) string { return uri + "\x00" + local }

// Lookup finds a builtin by expanded name, regardless of arity; callers
// check arity against Signature themselves since XPath allows optional
// trailing arguments (e.g. substring's third parameter).
func (r *Registry) Lookup(uri, local string) (Signature, bool) {
	sig, ok := r.byKey[key(uri, local)]
	return sig, ok
}

func (r *Registry) register(local string, min, max int, fn Func) {
	r.byKey[key(FnNS, local)] = Signature{MinArgs: min, MaxArgs: max, Impl: fn}
	r.byKey[key("", local)] = Signature{MinArgs: min, MaxArgs: max, Impl: fn}
}

// registerNS registers a function under a single explicit namespace
// only, for constructor functions like xs:boolean() that must not
// shadow the unprefixed fn: function of the same local name.
func (r *Registry) registerNS(uri, local string, min, max int, fn Func) {
	r.byKey[key(uri, local)] = Signature{MinArgs: min, MaxArgs: max, Impl: fn}
}

func (c *Context) schemaRegistry() *schema.Registry {
	if c.Schema != nil {
		return c.Schema
	}
	return schema.Default()
}

// Default returns the builtin registry. Unlike schema.Default, this is
// cheap to build fresh each time (no host-visible mutation ever
// happens), so the evaluator just calls this once per Engine.
func Default() *Registry {
	r := &Registry{byKey: map[string]Signature{}}
	registerNodeSetFunctions(r)
	registerStringFunctions(r)
	registerBooleanFunctions(r)
	registerNumberFunctions(r)
	registerSequenceFunctions(r)
	registerDocumentFunctions(r)
	return r
}

// ---- node-set functions (spec §4.B) -----------------------------------

func registerNodeSetFunctions(r *Registry) {
	r.register("last", 0, 0, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromNumber(float64(c.Size)), nil
	})
	r.register("position", 0, 0, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromNumber(float64(c.Position)), nil
	})
	r.register("count", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromNumber(float64(args[0].Len())), nil
	})
	r.register("local-name", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		item := nodeArgOrContext(c, args)
		if item.Tag == nil {
			return value.FromString(""), nil
		}
		name := tagOrAttrName(item)
		if i := strings.IndexByte(name, ':'); i >= 0 {
			name = name[i+1:]
		}
		return value.FromString(name), nil
	})
	r.register("name", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		item := nodeArgOrContext(c, args)
		return value.FromString(tagOrAttrName(item)), nil
	})
	r.register("namespace-uri", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		item := nodeArgOrContext(c, args)
		if item.Tag == nil || item.Doc == nil {
			return value.FromString(""), nil
		}
		uri, _ := item.Doc.NamespaceURI(item.Tag.NamespaceHash)
		return value.FromString(uri), nil
	})
	// node-name mirrors name(): this engine has no dedicated xs:QName
	// atomic value, so the QName fn:node-name returns is represented the
	// same way name() already represents one, as its string form.
	r.register("node-name", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		item := nodeArgOrContext(c, args)
		if item.Tag == nil {
			return value.Empty(), nil
		}
		return value.FromString(tagOrAttrName(item)), nil
	})
	// nilled has no schema validation pass to consult (spec §1 places
	// schema validation out of scope), so it falls back to the one signal
	// actually present in an unvalidated document: an xsi:nil="true"
	// attribute on the element itself.
	r.register("nilled", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		item := nodeArgOrContext(c, args)
		if item.Tag == nil || !item.Tag.IsElement() {
			return value.Empty(), nil
		}
		v, ok := item.Tag.Attr("xsi:nil")
		return value.FromBool(ok && strings.EqualFold(strings.TrimSpace(v), "true")), nil
	})
	r.register("static-base-uri", 0, 0, func(c *Context, args []value.Value) (value.Value, error) {
		if c.BaseURI == "" {
			return value.Empty(), nil
		}
		return value.FromString(c.BaseURI), nil
	})
	// root returns the document-node sentinel (an item carrying only
	// Doc) for the document owning the argument (or context) node,
	// falling back to the evaluation's document; it does not walk the
	// ancestor chain.
	r.register("root", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		item := nodeArgOrContext(c, args)
		doc := item.Doc
		if doc == nil {
			doc = c.Doc
		}
		if doc == nil {
			return value.Empty(), nil
		}
		return value.FromNodes([]value.NodeItem{{Doc: doc}}, true), nil
	})
	// base-uri follows the same inherited xml:base walk lang() uses for
	// xml:lang, falling back to the static base URI when no ancestor
	// declares one.
	r.register("base-uri", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		item := nodeArgOrContext(c, args)
		doc := item.Doc
		if doc == nil {
			doc = c.Doc
		}
		if base := ancestorAttr(doc, item.Tag, "xml:base"); base != "" {
			return value.FromString(base), nil
		}
		if c.BaseURI == "" {
			return value.Empty(), nil
		}
		return value.FromString(c.BaseURI), nil
	})
	// document-uri only resolves for the document-node sentinel itself
	// (spec: empty for any other node kind).
	r.register("document-uri", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		item := nodeArgOrContext(c, args)
		if item.Tag != nil || item.Attribute != nil || item.StringVal != nil {
			return value.Empty(), nil
		}
		doc := item.Doc
		if doc == nil {
			doc = c.Doc
		}
		if doc == nil || doc.Path == "" {
			return value.Empty(), nil
		}
		return value.FromString(doc.Path), nil
	})
	r.register("default-collation", 0, 0, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromString(c.Prolog.DefaultCollation), nil
	})
	r.register("id", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		ids := strings.Fields(args[0].ToString())
		if c.ResolveIDRefs == nil {
			return value.Empty(), nil
		}
		return value.FromNodes(c.ResolveIDRefs(ids), false), nil
	})
	// idref is id()'s direct counterpart: given one or more IDREF
	// values, return the elements that declare a matching ID. Built from
	// the same shared ID index as id() (see eval.Context.resolveIDRefs),
	// rather than a separate linear scan.
	r.register("idref", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		ids := strings.Fields(args[0].ToString())
		if c.ResolveIDRefs == nil {
			return value.Empty(), nil
		}
		return value.FromNodes(c.ResolveIDRefs(ids), false), nil
	})
	r.register("lang", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		want := strings.ToLower(args[0].ToString())
		got := ancestorLang(c.Doc, c.Item.Tag)
		if got == "" {
			return value.FromBool(false), nil
		}
		got = strings.ToLower(got)
		return value.FromBool(got == want || strings.HasPrefix(got, want+"-")), nil
	})
}

func tagOrAttrName(item value.NodeItem) string {
	if item.Attribute != nil {
		return item.Attribute.Name
	}
	if item.Tag == nil {
		return ""
	}
	if item.Tag.Flags&xmltree.Instruction != 0 {
		return item.Tag.PITarget()
	}
	return item.Tag.Name()
}

func nodeArgOrContext(c *Context, args []value.Value) value.NodeItem {
	if len(args) == 0 {
		return c.Item
	}
	if args[0].Kind != value.NodeSet || len(args[0].Items) == 0 {
		return value.NodeItem{}
	}
	return args[0].Items[0]
}

func ancestorLang(doc *xmltree.Document, t *xmltree.Tag) string {
	return ancestorAttr(doc, t, "xml:lang")
}

// ancestorAttr walks an element and its ancestors looking for the first
// one carrying name, the inherited-attribute pattern xml:lang and
// xml:base both follow.
func ancestorAttr(doc *xmltree.Document, t *xmltree.Tag, name string) string {
	if doc == nil {
		return ""
	}
	for cur := t; cur != nil; {
		if v, ok := cur.Attr(name); ok {
			return v
		}
		if cur.Parent == 0 {
			break
		}
		cur = doc.Map()[cur.Parent]
	}
	return ""
}

// ---- string functions --------------------------------------------------

func registerStringFunctions(r *Registry) {
	r.register("string", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.FromString(contextString(c)), nil
		}
		return value.FromString(args[0].ToString()), nil
	})
	r.register("concat", 2, -1, func(c *Context, args []value.Value) (value.Value, error) {
		var sb strings.Builder
		for _, a := range args {
			sb.WriteString(a.ToString())
		}
		return value.FromString(sb.String()), nil
	})
	r.register("string-length", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		s := contextString(c)
		if len(args) == 1 {
			s = args[0].ToString()
		}
		return value.FromNumber(float64(utf8.RuneCountInString(s))), nil
	})
	r.register("normalize-space", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		s := contextString(c)
		if len(args) == 1 {
			s = args[0].ToString()
		}
		return value.FromString(strings.Join(strings.Fields(s), " ")), nil
	})
	r.register("upper-case", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromString(strings.ToUpper(args[0].ToString())), nil
	})
	r.register("lower-case", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromString(strings.ToLower(args[0].ToString())), nil
	})
	r.register("translate", 3, 3, func(c *Context, args []value.Value) (value.Value, error) {
		src, from, to := args[0].ToString(), []rune(args[1].ToString()), []rune(args[2].ToString())
		var sb strings.Builder
		for _, r := range src {
			idx := -1
			for i, f := range from {
				if f == r {
					idx = i
					break
				}
			}
			switch {
			case idx < 0:
				sb.WriteRune(r)
			case idx < len(to):
				sb.WriteRune(to[idx])
			}
		}
		return value.FromString(sb.String()), nil
	})
	r.register("contains", 2, 2, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(strings.Contains(args[0].ToString(), args[1].ToString())), nil
	})
	r.register("starts-with", 2, 2, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(strings.HasPrefix(args[0].ToString(), args[1].ToString())), nil
	})
	r.register("ends-with", 2, 2, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(strings.HasSuffix(args[0].ToString(), args[1].ToString())), nil
	})
	r.register("substring-before", 2, 2, func(c *Context, args []value.Value) (value.Value, error) {
		s, sep := args[0].ToString(), args[1].ToString()
		if sep == "" {
			return value.FromString(""), nil
		}
		if i := strings.Index(s, sep); i >= 0 {
			return value.FromString(s[:i]), nil
		}
		return value.FromString(""), nil
	})
	r.register("substring-after", 2, 2, func(c *Context, args []value.Value) (value.Value, error) {
		s, sep := args[0].ToString(), args[1].ToString()
		if sep == "" {
			return value.FromString(s), nil
		}
		if i := strings.Index(s, sep); i >= 0 {
			return value.FromString(s[i+len(sep):]), nil
		}
		return value.FromString(""), nil
	})
	r.register("substring", 2, 3, func(c *Context, args []value.Value) (value.Value, error) {
		runes := []rune(args[0].ToString())
		start := round(args[1].ToNumber())
		length := len(runes) + 1 - start
		if len(args) == 3 {
			length = round(args[2].ToNumber())
		}
		from := start - 1
		to := from + length
		if from < 0 {
			from = 0
		}
		if to > len(runes) {
			to = len(runes)
		}
		if from >= to || from >= len(runes) {
			return value.FromString(""), nil
		}
		return value.FromString(string(runes[from:to])), nil
	})
	r.register("encode-for-uri", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromString(percentEncode(args[0].ToString(), isUnreservedURIRune)), nil
	})
	r.register("escape-html-uri", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromString(percentEncode(args[0].ToString(), isPrintableASCIIRune)), nil
	})
	r.register("string-join", 1, 2, func(c *Context, args []value.Value) (value.Value, error) {
		sep := ""
		if len(args) == 2 {
			sep = args[1].ToString()
		}
		parts := make([]string, 0, len(args[0].Items))
		for _, it := range args[0].Items {
			parts = append(parts, value.FromNodes([]value.NodeItem{it}, true).ToString())
		}
		return value.FromString(strings.Join(parts, sep)), nil
	})
	r.register("matches", 2, 3, regexFn(func(e xmltree.RegexEngine, pattern, flags, input string) (value.Value, error) {
		ok, err := e.Match(pattern, flags, input)
		if err != nil {
			return value.Value{}, err
		}
		return value.FromBool(ok), nil
	}))
	r.register("replace", 3, 4, regexReplaceFn())
	r.register("tokenize", 2, 3, regexTokenizeFn())
}

// isUnreservedURIRune reports whether r needs no percent-encoding under
// fn:encode-for-uri (RFC 3986 unreserved set).
func isUnreservedURIRune(r rune) bool {
	switch {
	case r >= 'A' && r <= 'Z', r >= 'a' && r <= 'z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_' || r == '.' || r == '~':
		return true
	}
	return false
}

// isPrintableASCIIRune reports whether r is left untouched by
// fn:escape-html-uri, which only percent-encodes characters outside the
// printable ASCII range.
func isPrintableASCIIRune(r rune) bool {
	return r >= 0x20 && r <= 0x7E
}

// percentEncode UTF-8-encodes s and percent-escapes every byte of every
// rune that keep reports as needing escaping.
func percentEncode(s string, keep func(rune) bool) string {
	var sb strings.Builder
	for _, r := range s {
		if keep(r) {
			sb.WriteRune(r)
			continue
		}
		buf := make([]byte, utf8.RuneLen(r))
		utf8.EncodeRune(buf, r)
		for _, b := range buf {
			fmt.Fprintf(&sb, "%%%02X", b)
		}
	}
	return sb.String()
}

func contextString(c *Context) string {
	if c.Item.Tag == nil && c.Item.Attribute == nil && c.Item.StringVal == nil {
		return ""
	}
	return value.FromNodes([]value.NodeItem{c.Item}, true).ToString()
}

func round(f float64) int { return int(math.Round(f)) }

func regexArgs(args []value.Value, flagsIdx int) (pattern, flags string) {
	pattern = args[1].ToString()
	if len(args) > flagsIdx {
		flags = args[flagsIdx].ToString()
	}
	return
}

func regexFn(apply func(e xmltree.RegexEngine, pattern, flags, input string) (value.Value, error)) Func {
	return func(c *Context, args []value.Value) (value.Value, error) {
		if c.Loaders == nil || c.Loaders.Regex == nil {
			return value.Empty(), fmt.Errorf("regex functions require a host RegexEngine")
		}
		pattern, flags := regexArgs(args, 2)
		return apply(c.Loaders.Regex, pattern, flags, args[0].ToString())
	}
}

func regexReplaceFn() Func {
	return func(c *Context, args []value.Value) (value.Value, error) {
		if c.Loaders == nil || c.Loaders.Regex == nil {
			return value.Empty(), fmt.Errorf("regex functions require a host RegexEngine")
		}
		flags := ""
		if len(args) == 4 {
			flags = args[3].ToString()
		}
		out, err := c.Loaders.Regex.Replace(args[1].ToString(), flags, args[0].ToString(), args[2].ToString())
		if err != nil {
			return value.Value{}, err
		}
		return value.FromString(out), nil
	}
}

func regexTokenizeFn() Func {
	return func(c *Context, args []value.Value) (value.Value, error) {
		if c.Loaders == nil || c.Loaders.Regex == nil {
			return value.Empty(), fmt.Errorf("regex functions require a host RegexEngine")
		}
		flags := ""
		if len(args) == 3 {
			flags = args[2].ToString()
		}
		parts, err := c.Loaders.Regex.Tokenize(args[1].ToString(), flags, args[0].ToString())
		if err != nil {
			return value.Value{}, err
		}
		items := make([]value.NodeItem, len(parts))
		for i, p := range parts {
			s := p
			items[i] = value.NodeItem{StringVal: &s}
		}
		return value.FromNodes(items, true), nil
	}
}

// ---- boolean functions ---------------------------------------------------

func registerBooleanFunctions(r *Registry) {
	r.register("not", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(!args[0].ToBoolean()), nil
	})
	r.register("true", 0, 0, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(true), nil
	})
	r.register("false", 0, 0, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(false), nil
	})
	r.register("boolean", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(args[0].ToBoolean()), nil
	})
}

// ---- number functions -----------------------------------------------------

func registerNumberFunctions(r *Registry) {
	r.register("number", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		if len(args) == 0 {
			return value.FromNumber(value.Value{Kind: value.String, Str: contextString(c)}.ToNumber()), nil
		}
		return value.FromNumber(args[0].ToNumber()), nil
	})
	r.register("sum", 1, 2, func(c *Context, args []value.Value) (value.Value, error) {
		if args[0].Kind != value.NodeSet {
			return value.Value{}, fmt.Errorf("sum() requires a node-set argument")
		}
		if len(args[0].Items) == 0 {
			if len(args) == 2 {
				return args[1], nil
			}
			return value.FromNumber(0), nil
		}
		total := 0.0
		for _, it := range args[0].Items {
			total += value.FromNodes([]value.NodeItem{it}, true).ToNumber()
		}
		return value.FromNumber(total), nil
	})
	r.register("avg", 1, 2, func(c *Context, args []value.Value) (value.Value, error) {
		if args[0].Kind != value.NodeSet {
			return value.Value{}, fmt.Errorf("avg() requires a node-set argument")
		}
		if len(args[0].Items) == 0 {
			if len(args) == 2 {
				return args[1], nil
			}
			return value.Empty(), nil
		}
		total := 0.0
		for _, it := range args[0].Items {
			total += value.FromNodes([]value.NodeItem{it}, true).ToNumber()
		}
		return value.FromNumber(total / float64(len(args[0].Items))), nil
	})
	r.register("min", 1, 2, numberAggregateFn(func(best, n float64) bool { return n < best }))
	r.register("max", 1, 2, numberAggregateFn(func(best, n float64) bool { return n > best }))
	r.register("floor", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromNumber(math.Floor(args[0].ToNumber())), nil
	})
	r.register("ceiling", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromNumber(math.Ceil(args[0].ToNumber())), nil
	})
	r.register("round", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		n := args[0].ToNumber()
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return value.FromNumber(n), nil
		}
		return value.FromNumber(math.Floor(n + 0.5)), nil
	})
	r.register("abs", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromNumber(math.Abs(args[0].ToNumber())), nil
	})
}

// numberAggregateFn builds fn:min/fn:max: beats(best, candidate) reports
// whether candidate should replace best as the running aggregate.
func numberAggregateFn(beats func(best, n float64) bool) Func {
	return func(c *Context, args []value.Value) (value.Value, error) {
		if args[0].Kind != value.NodeSet {
			return value.Value{}, fmt.Errorf("min()/max() require a node-set argument")
		}
		if len(args[0].Items) == 0 {
			if len(args) == 2 {
				return args[1], nil
			}
			return value.Empty(), nil
		}
		best := value.FromNodes([]value.NodeItem{args[0].Items[0]}, true).ToNumber()
		for _, it := range args[0].Items[1:] {
			n := value.FromNodes([]value.NodeItem{it}, true).ToNumber()
			if math.IsNaN(n) {
				return value.FromNumber(math.NaN()), nil
			}
			if beats(best, n) {
				best = n
			}
		}
		return value.FromNumber(best), nil
	}
}

// ---- sequence functions (XPath 2.0) ---------------------------------------

func registerSequenceFunctions(r *Registry) {
	r.register("empty", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(args[0].Len() == 0), nil
	})
	r.register("exists", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(args[0].Len() > 0), nil
	})
	r.register("reverse", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		items := append([]value.NodeItem(nil), args[0].Items...)
		for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
			items[i], items[j] = items[j], items[i]
		}
		return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, nil
	})
	r.register("distinct-values", 1, 2, func(c *Context, args []value.Value) (value.Value, error) {
		seen := map[string]bool{}
		var items []value.NodeItem
		for _, it := range args[0].Items {
			s := value.FromNodes([]value.NodeItem{it}, true).ToString()
			if seen[s] {
				continue
			}
			seen[s] = true
			items = append(items, it)
		}
		return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, nil
	})
	r.register("index-of", 2, 3, func(c *Context, args []value.Value) (value.Value, error) {
		target := args[1].ToString()
		var items []value.NodeItem
		for i, it := range args[0].Items {
			if value.FromNodes([]value.NodeItem{it}, true).ToString() == target {
				n := float64(i + 1)
				items = append(items, value.NodeItem{StringVal: asStringValue(n)})
			}
		}
		return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, nil
	})
	r.register("subsequence", 2, 3, func(c *Context, args []value.Value) (value.Value, error) {
		items := args[0].Items
		start := round(args[1].ToNumber())
		length := len(items) - start + 1
		if len(args) == 3 {
			length = round(args[2].ToNumber())
		}
		from, to := start-1, start-1+length
		if from < 0 {
			from = 0
		}
		if to > len(items) {
			to = len(items)
		}
		if from >= to || from >= len(items) {
			return value.Empty(), nil
		}
		return value.Value{Kind: value.NodeSet, Items: append([]value.NodeItem(nil), items[from:to]...), PreserveNodeOrder: true}, nil
	})
	r.register("insert-before", 3, 3, func(c *Context, args []value.Value) (value.Value, error) {
		items := args[0].Items
		pos := round(args[1].ToNumber()) - 1
		if pos < 0 {
			pos = 0
		}
		if pos > len(items) {
			pos = len(items)
		}
		out := make([]value.NodeItem, 0, len(items)+len(args[2].Items))
		out = append(out, items[:pos]...)
		out = append(out, args[2].Items...)
		out = append(out, items[pos:]...)
		return value.Value{Kind: value.NodeSet, Items: out, PreserveNodeOrder: true}, nil
	})
	r.register("remove", 2, 2, func(c *Context, args []value.Value) (value.Value, error) {
		pos := round(args[1].ToNumber()) - 1
		items := args[0].Items
		if pos < 0 || pos >= len(items) {
			return value.Value{Kind: value.NodeSet, Items: append([]value.NodeItem(nil), items...), PreserveNodeOrder: true}, nil
		}
		out := make([]value.NodeItem, 0, len(items)-1)
		out = append(out, items[:pos]...)
		out = append(out, items[pos+1:]...)
		return value.Value{Kind: value.NodeSet, Items: out, PreserveNodeOrder: true}, nil
	})
	r.register("head", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		if len(args[0].Items) == 0 {
			return value.Empty(), nil
		}
		return value.Value{Kind: value.NodeSet, Items: args[0].Items[:1], PreserveNodeOrder: true}, nil
	})
	r.register("tail", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		if len(args[0].Items) <= 1 {
			return value.Empty(), nil
		}
		return value.Value{Kind: value.NodeSet, Items: append([]value.NodeItem(nil), args[0].Items[1:]...), PreserveNodeOrder: true}, nil
	})
	// data atomises every item to its string typed value (spec has no
	// schema-validation pass, so "typed value" collapses to the same
	// string-value rule the other accessor functions already use).
	r.register("data", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		if args[0].Kind != value.NodeSet {
			return args[0], nil
		}
		items := make([]value.NodeItem, 0, len(args[0].Items))
		for _, it := range args[0].Items {
			s := value.FromNodes([]value.NodeItem{it}, true).ToString()
			items = append(items, value.NodeItem{StringVal: &s})
		}
		return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, nil
	})
	// for-each/filter take their second argument as the local name of a
	// registered single-argument fn: function rather than an inline
	// function item: this grammar has no function-item literal (see
	// DESIGN.md), so a function reference is the only callable value it
	// can pass around.
	r.register("for-each", 2, 2, func(c *Context, args []value.Value) (value.Value, error) {
		sig, err := lookupUnaryFn(r, args[1].ToString())
		if err != nil {
			return value.Value{}, err
		}
		var out []value.NodeItem
		for _, it := range args[0].Items {
			v, err := sig.Impl(c, []value.Value{itemToValue(it)})
			if err != nil {
				return value.Value{}, err
			}
			out = append(out, asSequenceItems(v)...)
		}
		return value.Value{Kind: value.NodeSet, Items: out, PreserveNodeOrder: true}, nil
	})
	r.register("filter", 2, 2, func(c *Context, args []value.Value) (value.Value, error) {
		sig, err := lookupUnaryFn(r, args[1].ToString())
		if err != nil {
			return value.Value{}, err
		}
		var out []value.NodeItem
		for _, it := range args[0].Items {
			v, err := sig.Impl(c, []value.Value{itemToValue(it)})
			if err != nil {
				return value.Value{}, err
			}
			if v.ToBoolean() {
				out = append(out, it)
			}
		}
		return value.Value{Kind: value.NodeSet, Items: out, PreserveNodeOrder: true}, nil
	})
}

// itemToValue converts one sequence item back to the Value a builtin
// expects as its single argument: a synthetic text item atomises to a
// plain String (so boolean/string functions see the right typed-value
// semantics instead of always-true node-set truthiness), everything
// else keeps its single-item node-set wrapping.
func itemToValue(it value.NodeItem) value.Value {
	if it.Tag == nil && it.Attribute == nil && it.StringVal != nil {
		return value.FromString(*it.StringVal)
	}
	return value.FromNodes([]value.NodeItem{it}, true)
}

// lookupUnaryFn resolves a for-each/filter function-reference argument
// to a registered fn: builtin accepting exactly one argument.
func lookupUnaryFn(r *Registry, local string) (Signature, error) {
	sig, ok := r.Lookup(FnNS, local)
	if !ok || sig.MinArgs > 1 || sig.MaxArgs == 0 {
		return Signature{}, fmt.Errorf("Unsupported XPath function: %s", local)
	}
	return sig, nil
}

// asSequenceItems flattens a single for-each application's result back
// into node-set items, re-wrapping a non-node-set scalar as a synthetic
// text item so it can be appended to the accumulating result sequence.
func asSequenceItems(v value.Value) []value.NodeItem {
	if v.Kind == value.NodeSet {
		return v.Items
	}
	s := v.ToString()
	return []value.NodeItem{{StringVal: &s}}
}

func asStringValue(n float64) *string {
	s := value.FormatNumber(n)
	return &s
}

// ---- document/collection functions ----------------------------------------

func registerDocumentFunctions(r *Registry) {
	r.register("doc", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		doc := loadDocument(c, args[0].ToString())
		if doc == nil {
			return value.Empty(), nil
		}
		items := make([]value.NodeItem, 0, len(doc.Tags))
		for _, t := range doc.Tags {
			items = append(items, value.NodeItem{Doc: doc, Tag: t})
		}
		return value.FromNodes(items, false), nil
	})
	r.register("unparsed-text", 1, 2, func(c *Context, args []value.Value) (value.Value, error) {
		text, ok := loadUnparsedText(c, args[0].ToString())
		if !ok {
			return value.Empty(), nil
		}
		return value.FromString(text), nil
	})
	r.register("unparsed-text-available", 1, 2, func(c *Context, args []value.Value) (value.Value, error) {
		_, ok := loadUnparsedText(c, args[0].ToString())
		return value.FromBool(ok), nil
	})
	r.register("unparsed-text-lines", 1, 2, func(c *Context, args []value.Value) (value.Value, error) {
		text, ok := loadUnparsedText(c, args[0].ToString())
		if !ok {
			return value.Empty(), nil
		}
		lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
		items := make([]value.NodeItem, len(lines))
		for i, l := range lines {
			s := l
			items[i] = value.NodeItem{StringVal: &s}
		}
		return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, nil
	})
	r.register("doc-available", 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
		return value.FromBool(loadDocument(c, args[0].ToString()) != nil), nil
	})
	r.register("collection", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		if c.Doc == nil {
			return value.Empty(), nil
		}
		var items []value.NodeItem
		for _, k := range sortedDocCacheKeys(c.Doc) {
			d := c.Doc.DocCache[k]
			for _, t := range d.Tags {
				items = append(items, value.NodeItem{Doc: d, Tag: t})
			}
		}
		return value.FromNodes(items, false), nil
	})
	// uri-collection mirrors collection() but returns the member URIs
	// instead of their document nodes.
	r.register("uri-collection", 0, 1, func(c *Context, args []value.Value) (value.Value, error) {
		if c.Doc == nil {
			return value.Empty(), nil
		}
		keys := sortedDocCacheKeys(c.Doc)
		items := make([]value.NodeItem, len(keys))
		for i, k := range keys {
			s := k
			items[i] = value.NodeItem{StringVal: &s}
		}
		return value.Value{Kind: value.NodeSet, Items: items, PreserveNodeOrder: true}, nil
	})

	registerXSDConstructors(r)
}

func sortedDocCacheKeys(doc *xmltree.Document) []string {
	keys := make([]string, 0, len(doc.DocCache))
	for k := range doc.DocCache {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// loadUnparsedText fetches and caches the text resource at uri, the
// shared lookup behind unparsed-text/-available/-lines.
func loadUnparsedText(c *Context, uri string) (string, bool) {
	if c.Doc != nil {
		if cached, ok := c.Doc.TextCache[uri]; ok {
			return cached, true
		}
	}
	if c.Loaders == nil || c.Loaders.Read == nil || c.Loaders.Resolve == nil {
		return "", false
	}
	resolved := c.Loaders.Resolve(uri, false)
	if resolved == nil {
		return "", false
	}
	data, err := c.Loaders.Read(*resolved)
	if err != nil || data == nil {
		return "", false
	}
	text := string(data)
	if c.Doc != nil {
		c.Doc.TextCache[uri] = text
	}
	return text, true
}

// registerXSDConstructors wires xs:boolean()/xs:string()/xs:integer()/
// xs:decimal()/xs:double()/xs:float() as single-argument constructor
// functions (spec §3.3's coerce(value, target)), each tagging the
// returned Value with the named schema descriptor so later boolean/
// numeric coercions (value.Value.ToBoolean/ToNumber) can apply the
// descriptor's override rules instead of the untyped XPath 1.0 default.
func registerXSDConstructors(r *Registry) {
	cast := func(local string) {
		r.registerNS(schema.XSDNamespace, local, 1, 1, func(c *Context, args []value.Value) (value.Value, error) {
			d, ok := c.schemaRegistry().ByExpandedName(schema.XSDNamespace, local)
			if !ok {
				return value.Value{}, fmt.Errorf("xs:%s: type not registered", local)
			}
			return args[0].Coerce(d), nil
		})
	}
	cast("boolean")
	cast("string")
	cast("integer")
	cast("decimal")
	cast("double")
	cast("float")
}

func loadDocument(c *Context, uri string) *xmltree.Document {
	if c.Doc == nil {
		return nil
	}
	if d, ok := c.Doc.DocCache[uri]; ok {
		return d
	}
	if c.Loaders == nil || c.Loaders.Resolve == nil || c.Loaders.Read == nil {
		return nil
	}
	resolved := c.Loaders.Resolve(uri, false)
	if resolved == nil {
		return nil
	}
	_, err := c.Loaders.Read(*resolved)
	if err != nil {
		return nil
	}
	// Parsing the fetched bytes into a Document is the host XML parser's
	// job (out of scope, spec §1); without a host-side callback wired
	// through DocCache already, a fresh doc() target is unreachable here.
	return nil
}
