// Package ast defines the xpathql compiled-query tree (spec §3.4):
// immutable after parsing, tagged by Kind, carrying a lexeme/name in
// Value and an ordered list of owned children.
package ast

// Kind tags an ASTNode. Kinds partition into path shape, expressions,
// and constructors, exactly the three families spec §3.4 names.
type Kind int

const (
	// Path shape
	LocationPath Kind = iota
	Step
	Root
	AxisSpecifier
	NameTest
	Wildcard
	NodeTypeTest
	ProcessingInstructionTest
	Predicate
	Path
	Filter

	// Expressions
	Expression
	BinaryOp
	UnaryOp
	FunctionCall
	Literal
	Number
	String
	VariableReference
	Union
	Conditional
	ForExpression
	LetExpression
	FlworExpression
	QuantifiedExpression
	ForBinding
	LetBinding
	QuantifiedBinding
	OrderSpec
	SequenceExpr
	RangeExpr

	// Constructors
	DirectElementConstructor
	ComputedElementConstructor
	ComputedAttributeConstructor
	TextConstructor
	CommentConstructor
	PiConstructor
	DocumentConstructor
	ConstructorContent
)

// Axis enumerates the thirteen XPath axes (including "self",
// "attribute" and "namespace"), used as the Value of an AxisSpecifier
// node.
type Axis string

const (
	Child            Axis = "child"
	Descendant       Axis = "descendant"
	DescendantOrSelf Axis = "descendant-or-self"
	Parent           Axis = "parent"
	Ancestor         Axis = "ancestor"
	AncestorOrSelf   Axis = "ancestor-or-self"
	FollowingSibling Axis = "following-sibling"
	PrecedingSibling Axis = "preceding-sibling"
	Following        Axis = "following"
	Preceding        Axis = "preceding"
	SelfAxis         Axis = "self"
	AttributeAxis    Axis = "attribute"
	NamespaceAxis    Axis = "namespace"
)

// Node is one node of the AST.
type Node struct {
	Kind     Kind
	Value    string
	Children []*Node

	// Constructor side structures (spec §3.4).
	Attributes []*ConstructorAttribute
	NameExpr   *Node

	// Order spec direction/empty-mode, set only on OrderSpec nodes.
	Descending  bool
	EmptyLeast  bool
	Collation   string

	// Source position, useful for error messages; not part of the
	// spec's AST shape but harmless to carry.
	Offset int
}

// NewNode builds a Node with the given children.
func NewNode(k Kind, value string, children ...*Node) *Node {
	return &Node{Kind: k, Value: value, Children: children}
}

// ConstructorAttribute is one attribute of a direct element constructor:
// either a plain attribute (with an attribute value template) or an
// xmlns[:prefix] namespace declaration.
type ConstructorAttribute struct {
	Prefix      string
	Local       string
	IsNamespace bool
	Template    []AVTPart
}

// AVTPart is one run of an attribute value template: either literal
// text or a parsed expression to evaluate and stringify.
type AVTPart struct {
	Literal string
	Expr    *Node // nil for a literal-only part
}
