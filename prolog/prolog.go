// Package prolog implements the per-query compile-time state of spec
// §3.5 (XQueryProlog) and the process-wide module cache of spec §3.6.
package prolog

import (
	"fmt"

	"github.com/parasol-framework/xpathql/ast"
)

// ConstructionMode controls whether type annotations are preserved on
// constructed nodes.
type ConstructionMode int

const (
	Preserve ConstructionMode = iota
	Strip
)

// BoundarySpace controls whether whitespace-only text nodes between
// direct constructors survive.
type BoundarySpace int

const (
	BoundaryPreserve BoundarySpace = iota
	BoundaryStrip
)

// OrderingMode records a prolog's "ordering" declaration. This engine
// always returns path results in document order; evaluation does not
// consult the mode.
type OrderingMode int

const (
	Ordered OrderingMode = iota
	Unordered
)

// EmptyOrder is the default `order by` placement of an empty sort key.
type EmptyOrder int

const (
	Greatest EmptyOrder = iota
	Least
)

// CopyNamespaces controls inherit/no-inherit + preserve/no-preserve for
// computed constructors copying an existing subtree.
type CopyNamespaces struct {
	Inherit  bool
	Preserve bool
}

// FunctionKey is the "{expanded-qname}/{arity}" lookup key spec §3.5
// specifies for declared functions.
func FunctionKey(uri, local string, arity int) string {
	return fmt.Sprintf("{%s}%s/%d", uri, local, arity)
}

// DeclaredFunction is a user-defined function from the query prolog or
// an imported library module.
type DeclaredFunction struct {
	URI    string
	Local  string
	Params []string
	Body   *ast.Node
}

// ModuleImport records one `import module` declaration.
type ModuleImport struct {
	TargetNamespace string
	LocationHints   []string
}

// DecimalFormat is a named (or unnamed/default) decimal-format
// declaration, feeding the format-number extension point (see
// SPEC_FULL.md supplemental features).
type DecimalFormat struct {
	Name             string // "" for the unnamed default format
	DecimalSeparator rune
	GroupingSeparator rune
	Infinity         string
	NaN              string
}

// Prolog is the per-query compile-time state of spec §3.5.
type Prolog struct {
	StaticBaseURI     string
	DefaultCollation  string
	DefaultElementNS  string
	DefaultFunctionNS string

	DeclaredNamespaces map[string]string // prefix -> URI

	DecimalFormats map[string]*DecimalFormat

	ConstructionMode ConstructionMode
	BoundarySpace    BoundarySpace
	OrderingMode     OrderingMode
	EmptyOrderMode   EmptyOrder
	CopyNS           CopyNamespaces

	IsLibraryModule   bool
	ModuleNamespaceURI string

	Functions map[string]*DeclaredFunction
	Variables map[string]*ast.Node // QName as written in the query -> init expression

	Imports []ModuleImport

	Cache *ModuleCache
}

// predefinedNamespaces are the prefix bindings XQuery 1.0's static
// context predefines regardless of prolog declarations (fn, xs, local);
// a "declare namespace" for one of these overrides the default the same
// way any other entry in DeclaredNamespaces does.
var predefinedNamespaces = map[string]string{
	"fn":    "http://www.w3.org/2005/xpath-functions",
	"xs":    "http://www.w3.org/2001/XMLSchema",
	"local": "http://www.w3.org/2005/xquery-local-functions",
}

// New returns a Prolog with the spec-mandated defaults: codepoint
// collation, construction mode preserve, boundary-space strip,
// ordering mode ordered, empty order greatest.
func New() *Prolog {
	declared := make(map[string]string, len(predefinedNamespaces))
	for prefix, uri := range predefinedNamespaces {
		declared[prefix] = uri
	}
	return &Prolog{
		DefaultCollation:   "http://www.w3.org/2005/xpath-functions/collation/codepoint",
		DeclaredNamespaces: declared,
		DecimalFormats:     map[string]*DecimalFormat{},
		ConstructionMode:   Preserve,
		BoundarySpace:      BoundaryStrip,
		OrderingMode:       Ordered,
		EmptyOrderMode:     Greatest,
		Functions:          map[string]*DeclaredFunction{},
		Variables:          map[string]*ast.Node{},
	}
}

// ResolvePrefix looks up a declared namespace prefix.
func (p *Prolog) ResolvePrefix(prefix string) (string, bool) {
	uri, ok := p.DeclaredNamespaces[prefix]
	return uri, ok
}

// LookupFunction finds a user-declared function by expanded name and
// arity.
func (p *Prolog) LookupFunction(uri, local string, arity int) (*DeclaredFunction, bool) {
	f, ok := p.Functions[FunctionKey(uri, local, arity)]
	return f, ok
}
