// Package parser implements the xpathql recursive-descent parser (spec
// §4.D): tokens to AST with precedence climbing, XQuery constructors,
// and a prolog preamble.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/prolog"
	"github.com/parasol-framework/xpathql/token"
)

// Result is what Parse returns: either a valid AST + Prolog, or a list
// of human-readable errors (spec §4.D: "errors produced by the parser
// are accumulated as strings").
type Result struct {
	Root   *ast.Node
	Prolog *prolog.Prolog
	Errors []string
}

// Valid reports whether parsing succeeded.
func (r *Result) Valid() bool { return len(r.Errors) == 0 && r.Root != nil }

// Parse compiles query text to an AST plus prolog.
func Parse(text string) *Result {
	p := &parser{lex: token.New(text), prolog: prolog.New()}
	p.advance()

	defer func() {
		if r := recover(); r != nil {
			if pe, ok := r.(parseError); ok {
				p.errors = append(p.errors, pe.msg)
			} else {
				panic(r)
			}
		}
	}()

	p.parseProlog()
	root := p.parseExpr()
	if p.cur.Kind != token.EOF && len(p.errors) == 0 {
		p.errorf("unexpected trailing input at offset %d: %q", p.cur.Offset, p.cur.Text)
	}
	if len(p.errors) > 0 {
		return &Result{Errors: p.errors}
	}
	return &Result{Root: root, Prolog: p.prolog}
}

type parser struct {
	lex    *token.Lexer
	cur    token.Token
	prolog *prolog.Prolog
	errors []string
}

// parseError unwinds the recursive descent on the first hard error,
// the same "accumulate strings, bail the compile" contract spec.md
// §4.D describes.
type parseError struct{ msg string }

func (p *parser) errorf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	p.errors = append(p.errors, msg)
	panic(parseError{msg})
}

func (p *parser) advance() {
	tok, err := p.lex.Next()
	if err != nil {
		p.errorf("%v", err)
	}
	p.cur = tok
}

func (p *parser) expect(k token.Kind, what string) token.Token {
	if p.cur.Kind != k {
		p.errorf("expected %s, got %q at offset %d", what, p.cur.Text, p.cur.Offset)
	}
	tok := p.cur
	p.advance()
	return tok
}

func (p *parser) at(k token.Kind) bool { return p.cur.Kind == k }

func (p *parser) atKeyword(kw string) bool {
	return p.cur.Kind == token.Identifier && p.cur.Text == kw
}

// ---- Expr / sequence ------------------------------------------------

func (p *parser) parseExpr() *ast.Node {
	first := p.parseExprSingle()
	if !p.at(token.Comma) {
		return first
	}
	items := []*ast.Node{first}
	for p.at(token.Comma) {
		p.advance()
		items = append(items, p.parseExprSingle())
	}
	return ast.NewNode(ast.SequenceExpr, ",", items...)
}

func (p *parser) parseExprSingle() *ast.Node {
	switch {
	case p.atKeyword("for"):
		return p.parseForExpr()
	case p.atKeyword("let"):
		return p.parseLetExpr()
	case p.atKeyword("some") || p.atKeyword("every"):
		return p.parseQuantifiedExpr()
	case p.atKeyword("if"):
		return p.parseIfExpr()
	default:
		return p.parseOrExpr()
	}
}

// ---- FLWOR ------------------------------------------------------------

func (p *parser) parseForExpr() *ast.Node {
	p.advance() // 'for'
	var bindings []*ast.Node
	for {
		p.expect(token.Dollar, "'$'")
		name := p.parseQName()
		p.expectKeyword("in")
		src := p.parseExprSingle()
		bindings = append(bindings, ast.NewNode(ast.ForBinding, name, src))
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	clauses := bindings
	clauses = append(clauses, p.parseFlworTail()...)
	p.expectKeyword("return")
	ret := p.parseExprSingle()
	clauses = append(clauses, ast.NewNode(ast.Expression, "return", ret))
	return ast.NewNode(ast.FlworExpression, "for", clauses...)
}

func (p *parser) parseLetExpr() *ast.Node {
	p.advance() // 'let'
	var bindings []*ast.Node
	for {
		p.expect(token.Dollar, "'$'")
		name := p.parseQName()
		p.expect(token.Assign, "':='")
		src := p.parseExprSingle()
		bindings = append(bindings, ast.NewNode(ast.LetBinding, name, src))
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	clauses := bindings
	clauses = append(clauses, p.parseFlworTail()...)
	p.expectKeyword("return")
	ret := p.parseExprSingle()
	clauses = append(clauses, ast.NewNode(ast.Expression, "return", ret))
	return ast.NewNode(ast.FlworExpression, "let", clauses...)
}

// parseFlworTail consumes any mixture of further for/let/where/order by
// clauses that follow the first binding group, returning them in
// source order (spec §4.J: "evaluate the clauses in source order").
func (p *parser) parseFlworTail() []*ast.Node {
	var clauses []*ast.Node
	for {
		switch {
		case p.atKeyword("for"):
			p.advance()
			for {
				p.expect(token.Dollar, "'$'")
				name := p.parseQName()
				p.expectKeyword("in")
				src := p.parseExprSingle()
				clauses = append(clauses, ast.NewNode(ast.ForBinding, name, src))
				if p.at(token.Comma) {
					p.advance()
					continue
				}
				break
			}
		case p.atKeyword("let"):
			p.advance()
			for {
				p.expect(token.Dollar, "'$'")
				name := p.parseQName()
				p.expect(token.Assign, "':='")
				src := p.parseExprSingle()
				clauses = append(clauses, ast.NewNode(ast.LetBinding, name, src))
				if p.at(token.Comma) {
					p.advance()
					continue
				}
				break
			}
		case p.atKeyword("where"):
			p.advance()
			cond := p.parseExprSingle()
			clauses = append(clauses, ast.NewNode(ast.Expression, "where", cond))
		case p.atKeyword("order"):
			p.advance()
			p.expectKeyword("by")
			clauses = append(clauses, p.parseOrderBy())
		default:
			return clauses
		}
	}
}

func (p *parser) parseOrderBy() *ast.Node {
	var specs []*ast.Node
	for {
		key := p.parseExprSingle()
		spec := &ast.Node{Kind: ast.OrderSpec, Value: "order-spec", Children: []*ast.Node{key}}
		spec.EmptyLeast = p.prolog.EmptyOrderMode == prolog.Least
		spec.Collation = p.prolog.DefaultCollation
		for {
			switch {
			case p.atKeyword("descending"):
				p.advance()
				spec.Descending = true
			case p.atKeyword("ascending"):
				p.advance()
			case p.atKeyword("empty"):
				p.advance()
				if p.atKeyword("greatest") {
					p.advance()
					spec.EmptyLeast = false
				} else if p.atKeyword("least") {
					p.advance()
					spec.EmptyLeast = true
				} else {
					p.errorf("expected 'greatest' or 'least' after 'empty'")
				}
			case p.atKeyword("collation"):
				p.advance()
				spec.Collation = p.expect(token.String, "collation URI").Text
			default:
				goto doneModifiers
			}
		}
	doneModifiers:
		specs = append(specs, spec)
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	return ast.NewNode(ast.Expression, "order by", specs...)
}

func (p *parser) parseQuantifiedExpr() *ast.Node {
	kind := p.cur.Text // "some" or "every"
	p.advance()
	var bindings []*ast.Node
	for {
		p.expect(token.Dollar, "'$'")
		name := p.parseQName()
		p.expectKeyword("in")
		src := p.parseExprSingle()
		bindings = append(bindings, ast.NewNode(ast.QuantifiedBinding, name, src))
		if p.at(token.Comma) {
			p.advance()
			continue
		}
		break
	}
	p.expectKeyword("satisfies")
	test := p.parseExprSingle()
	children := append(bindings, ast.NewNode(ast.Expression, "satisfies", test))
	return ast.NewNode(ast.QuantifiedExpression, kind, children...)
}

func (p *parser) parseIfExpr() *ast.Node {
	p.advance() // 'if'
	p.expect(token.LParen, "'('")
	cond := p.parseExpr()
	p.expect(token.RParen, "')'")
	p.expectKeyword("then")
	thenExpr := p.parseExprSingle()
	p.expectKeyword("else")
	elseExpr := p.parseExprSingle()
	return ast.NewNode(ast.Conditional, "if", cond, thenExpr, elseExpr)
}

func (p *parser) expectKeyword(kw string) {
	if !p.atKeyword(kw) {
		p.errorf("expected keyword %q, got %q at offset %d", kw, p.cur.Text, p.cur.Offset)
	}
	p.advance()
}

// ---- operator precedence chain ---------------------------------------

func (p *parser) parseOrExpr() *ast.Node {
	left := p.parseAndExpr()
	for p.at(token.Or) {
		p.advance()
		right := p.parseAndExpr()
		left = ast.NewNode(ast.BinaryOp, "or", left, right)
	}
	return left
}

func (p *parser) parseAndExpr() *ast.Node {
	left := p.parseEqualityExpr()
	for p.at(token.And) {
		p.advance()
		right := p.parseEqualityExpr()
		left = ast.NewNode(ast.BinaryOp, "and", left, right)
	}
	return left
}

var equalityOps = map[token.Kind]string{
	token.Eq: "=", token.Ne: "!=", token.EqOp: "eq", token.NeOp: "ne",
}

func (p *parser) parseEqualityExpr() *ast.Node {
	left := p.parseRelationalExpr()
	for {
		op, ok := equalityOps[p.cur.Kind]
		if !ok {
			return left
		}
		p.advance()
		right := p.parseRelationalExpr()
		left = ast.NewNode(ast.BinaryOp, op, left, right)
	}
}

var relationalOps = map[token.Kind]string{
	token.Lt: "<", token.Le: "<=", token.Gt: ">", token.Ge: ">=",
	token.LtOp: "lt", token.LeOp: "le", token.GtOp: "gt", token.GeOp: "ge",
}

func (p *parser) parseRelationalExpr() *ast.Node {
	left := p.parseRangeExpr()
	for {
		op, ok := relationalOps[p.cur.Kind]
		if !ok {
			return left
		}
		p.advance()
		right := p.parseRangeExpr()
		left = ast.NewNode(ast.BinaryOp, op, left, right)
	}
}

// parseRangeExpr handles XPath 2.0 "to", e.g. `1 to 5`.
func (p *parser) parseRangeExpr() *ast.Node {
	left := p.parseAdditiveExpr()
	if p.atKeyword("to") {
		p.advance()
		right := p.parseAdditiveExpr()
		return ast.NewNode(ast.RangeExpr, "to", left, right)
	}
	return left
}

func (p *parser) parseAdditiveExpr() *ast.Node {
	left := p.parseMultiplicativeExpr()
	for p.at(token.Plus) || p.at(token.Minus) {
		op := "+"
		if p.at(token.Minus) {
			op = "-"
		}
		p.advance()
		right := p.parseMultiplicativeExpr()
		left = ast.NewNode(ast.BinaryOp, op, left, right)
	}
	return left
}

func (p *parser) parseMultiplicativeExpr() *ast.Node {
	left := p.parseUnaryExpr()
	for {
		var op string
		switch {
		case p.at(token.Star):
			op = "*"
		case p.at(token.Div):
			op = "div"
		case p.at(token.Mod):
			op = "mod"
		default:
			return left
		}
		p.advance()
		right := p.parseUnaryExpr()
		left = ast.NewNode(ast.BinaryOp, op, left, right)
	}
}

func (p *parser) parseUnaryExpr() *ast.Node {
	if p.at(token.Minus) {
		p.advance()
		operand := p.parseUnaryExpr()
		return ast.NewNode(ast.UnaryOp, "-", operand)
	}
	if p.at(token.Plus) {
		p.advance()
		return p.parseUnaryExpr()
	}
	return p.parseUnionExpr()
}

var setOps = map[string]bool{"intersect": true, "except": true}

func (p *parser) parseUnionExpr() *ast.Node {
	left := p.parsePathExpr()
	for {
		switch {
		case p.at(token.Pipe) || p.atKeyword("union"):
			p.advance()
			right := p.parsePathExpr()
			left = ast.NewNode(ast.Union, "|", left, right)
		case p.atKeyword("intersect"):
			p.advance()
			right := p.parsePathExpr()
			left = ast.NewNode(ast.BinaryOp, "intersect", left, right)
		case p.atKeyword("except"):
			p.advance()
			right := p.parsePathExpr()
			left = ast.NewNode(ast.BinaryOp, "except", left, right)
		default:
			return left
		}
	}
}

func isNotKeyword(s string) bool {
	switch s {
	case "and", "or", "div", "mod", "union", "intersect", "except", "to",
		"return", "then", "else", "satisfies", "in", "where", "order",
		"by", "descending", "ascending", "empty", "greatest", "least",
		"collation":
		return true
	default:
		return false
	}
}

func (p *parser) parsePathExpr() *ast.Node {
	if p.at(token.SlashSlash) {
		p.advance()
		steps := p.parseRelativeSteps()
		descSelf := descendantOrSelfNodeStep()
		allSteps := append([]*ast.Node{descSelf}, steps...)
		return ast.NewNode(ast.LocationPath, "//", allSteps...)
	}
	if p.at(token.Slash) {
		p.advance()
		if !p.startsStep() {
			return ast.NewNode(ast.LocationPath, "/")
		}
		steps := p.parseRelativeSteps()
		return ast.NewNode(ast.LocationPath, "/", steps...)
	}
	if p.startsStep() {
		steps := p.parseRelativeSteps()
		return ast.NewNode(ast.LocationPath, ".", steps...)
	}
	return p.parseFilterExprWithTail()
}

// startsStep reports whether the current token can begin a Step,
// distinguishing a location-path step from a FilterExpr/function call
// (spec §4.D).
func (p *parser) startsStep() bool {
	switch p.cur.Kind {
	case token.Dot, token.DotDot, token.At, token.Wildcard:
		return true
	case token.Identifier:
		if isNotKeyword(p.cur.Text) {
			return false
		}
		return p.identifierStartsStep()
	default:
		return false
	}
}

// identifierStartsStep peeks past the current identifier (without
// consuming it) to see whether it is an axis name, a node type test, or
// a bare name test — as opposed to a function call in primary-expr
// position.
func (p *parser) identifierStartsStep() bool {
	save := p.lex.Pos()
	savedCur := p.cur
	defer func() { p.lex.SetPos(save); p.cur = savedCur }()

	name := p.cur.Text
	p.advance()
	if p.at(token.ColonColon) {
		return true
	}
	if (name == "node" || name == "text" || name == "comment" || name == "processing-instruction") && p.at(token.LParen) {
		return true
	}
	if computedConstructorKeywords[name] && (p.at(token.LBrace) || (name != "text" && p.at(token.Identifier) && !isNotKeyword(p.cur.Text))) {
		return false // computed constructor, e.g. `element a { … }`
	}
	if p.at(token.LParen) {
		return false // function call
	}
	return true // bare NameTest
}

func descendantOrSelfNodeStep() *ast.Node {
	axis := ast.NewNode(ast.AxisSpecifier, string(ast.DescendantOrSelf))
	nt := ast.NewNode(ast.NodeTypeTest, "node")
	return ast.NewNode(ast.Step, "", axis, nt)
}

func (p *parser) parseRelativeSteps() []*ast.Node {
	steps := []*ast.Node{p.parseStep()}
	for p.at(token.Slash) || p.at(token.SlashSlash) {
		if p.at(token.SlashSlash) {
			p.advance()
			steps = append(steps, descendantOrSelfNodeStep())
			steps = append(steps, p.parseStep())
		} else {
			p.advance()
			steps = append(steps, p.parseStep())
		}
	}
	return steps
}

func (p *parser) parseStep() *ast.Node {
	switch p.cur.Kind {
	case token.Dot:
		p.advance()
		return p.withPredicates(ast.NewNode(ast.Step, ".",
			ast.NewNode(ast.AxisSpecifier, string(ast.SelfAxis)),
			ast.NewNode(ast.NodeTypeTest, "node")))
	case token.DotDot:
		p.advance()
		return p.withPredicates(ast.NewNode(ast.Step, "..",
			ast.NewNode(ast.AxisSpecifier, string(ast.Parent)),
			ast.NewNode(ast.NodeTypeTest, "node")))
	case token.At:
		p.advance()
		nt := p.parseNodeTest()
		return p.withPredicates(ast.NewNode(ast.Step, "@",
			ast.NewNode(ast.AxisSpecifier, string(ast.AttributeAxis)), nt))
	case token.Wildcard:
		nt := p.parseNodeTest()
		return p.withPredicates(ast.NewNode(ast.Step, "",
			ast.NewNode(ast.AxisSpecifier, string(ast.Child)), nt))
	case token.Identifier:
		axis := ast.Child
		if p.identifierIsAxisName() {
			axis = ast.Axis(p.cur.Text)
			p.advance()
			p.expect(token.ColonColon, "'::'")
		}
		nt := p.parseNodeTest()
		return p.withPredicates(ast.NewNode(ast.Step, "",
			ast.NewNode(ast.AxisSpecifier, string(axis)), nt))
	default:
		p.errorf("expected a step at offset %d, got %q", p.cur.Offset, p.cur.Text)
		return nil
	}
}

var axisNames = map[string]bool{
	"child": true, "descendant": true, "descendant-or-self": true,
	"parent": true, "ancestor": true, "ancestor-or-self": true,
	"following-sibling": true, "preceding-sibling": true,
	"following": true, "preceding": true, "self": true,
	"attribute": true, "namespace": true,
}

func (p *parser) identifierIsAxisName() bool {
	if !axisNames[p.cur.Text] {
		return false
	}
	save := p.lex.Pos()
	savedCur := p.cur
	p.advance()
	isAxis := p.at(token.ColonColon)
	p.lex.SetPos(save)
	p.cur = savedCur
	return isAxis
}

func (p *parser) parseNodeTest() *ast.Node {
	switch p.cur.Kind {
	case token.Wildcard:
		p.advance()
		if p.at(token.ColonColon) {
			p.advance()
			local := p.parseQName()
			return ast.NewNode(ast.NameTest, "*:"+local)
		}
		return ast.NewNode(ast.Wildcard, "*")
	case token.Identifier:
		name := p.cur.Text
		if name == "node" || name == "text" || name == "comment" {
			save := p.lex.Pos()
			savedCur := p.cur
			p.advance()
			if p.at(token.LParen) {
				p.advance()
				p.expect(token.RParen, "')'")
				return ast.NewNode(ast.NodeTypeTest, name)
			}
			p.lex.SetPos(save)
			p.cur = savedCur
		}
		if name == "processing-instruction" {
			save := p.lex.Pos()
			savedCur := p.cur
			p.advance()
			if p.at(token.LParen) {
				p.advance()
				target := ""
				if p.at(token.String) {
					target = p.cur.Text
					p.advance()
				}
				p.expect(token.RParen, "')'")
				return ast.NewNode(ast.ProcessingInstructionTest, target)
			}
			p.lex.SetPos(save)
			p.cur = savedCur
		}
		return p.parseQNameTest()
	default:
		p.errorf("expected a node test at offset %d, got %q", p.cur.Offset, p.cur.Text)
		return nil
	}
}

// parseQNameTest parses prefix:local, prefix:* or a bare name. The
// lexer's identifier scan takes a single ':' (anything but '::') into
// the identifier, so "prefix:*" arrives as "prefix:" followed by a
// separate Wildcard token; "*:local" is handled by parseNodeTest.
func (p *parser) parseQNameTest() *ast.Node {
	text := p.cur.Text
	p.advance()
	if strings.HasSuffix(text, ":") && p.at(token.Wildcard) {
		// "prefix:*": the lexer can't fold '*' into an identifier, so
		// the prefix arrives with a trailing colon and the wildcard as
		// a separate token.
		p.advance()
		return ast.NewNode(ast.NameTest, text+"*")
	}
	colon := strings.IndexByte(text, ':')
	if colon >= 0 {
		prefix, local := text[:colon], text[colon+1:]
		if local == "*" {
			return ast.NewNode(ast.NameTest, prefix+":*")
		}
		return ast.NewNode(ast.NameTest, prefix+":"+local)
	}
	return ast.NewNode(ast.NameTest, text)
}

func (p *parser) withPredicates(step *ast.Node) *ast.Node {
	for p.at(token.LBracket) {
		step.Children = append(step.Children, p.parsePredicate())
	}
	return step
}

// parsePredicate recognises the three shorthand forms of spec §4.D in
// addition to the general expression form.
func (p *parser) parsePredicate() *ast.Node {
	p.advance() // '['
	if p.at(token.Eq) {
		p.advance()
		lit := p.parseLiteralOnly()
		p.expect(token.RBracket, "']'")
		return ast.NewNode(ast.Predicate, "", ast.NewNode(ast.BinaryOp, "content-equals", lit))
	}
	if p.at(token.At) {
		save := p.lex.Pos()
		savedCur := p.cur
		p.advance()
		name := p.parseQNameRaw()
		if p.at(token.Eq) {
			p.advance()
			lit := p.parseLiteralOnly()
			p.expect(token.RBracket, "']'")
			return ast.NewNode(ast.Predicate, "", ast.NewNode(ast.BinaryOp, "attribute-equals", ast.NewNode(ast.Literal, name), lit))
		}
		if p.at(token.RBracket) {
			p.advance()
			return ast.NewNode(ast.Predicate, "", ast.NewNode(ast.BinaryOp, "attribute-exists", ast.NewNode(ast.Literal, name)))
		}
		p.lex.SetPos(save)
		p.cur = savedCur
	}
	expr := p.parseExpr()
	p.expect(token.RBracket, "']'")
	return ast.NewNode(ast.Predicate, "", expr)
}

func (p *parser) parseLiteralOnly() *ast.Node {
	switch p.cur.Kind {
	case token.String:
		v := p.cur.Text
		p.advance()
		return ast.NewNode(ast.String, v)
	case token.Number:
		v := p.cur.Text
		p.advance()
		return ast.NewNode(ast.Number, v)
	default:
		p.errorf("expected literal at offset %d", p.cur.Offset)
		return nil
	}
}

func (p *parser) parseQNameRaw() string {
	return p.expect(token.Identifier, "name").Text
}

// ---- FilterExpr / PrimaryExpr ---------------------------------------

func (p *parser) parseFilterExprWithTail() *ast.Node {
	primary := p.parsePrimaryExpr()
	for p.at(token.LBracket) {
		pred := p.parsePredicate()
		primary = ast.NewNode(ast.Filter, "", primary, pred)
	}
	if !p.at(token.Slash) && !p.at(token.SlashSlash) {
		return primary
	}
	steps := []*ast.Node{}
	for p.at(token.Slash) || p.at(token.SlashSlash) {
		if p.at(token.SlashSlash) {
			p.advance()
			steps = append(steps, descendantOrSelfNodeStep())
			steps = append(steps, p.parseStep())
		} else {
			p.advance()
			steps = append(steps, p.parseStep())
		}
	}
	pathNode := ast.NewNode(ast.LocationPath, "/", steps...)
	return ast.NewNode(ast.Path, "", primary, pathNode)
}

func (p *parser) parsePrimaryExpr() *ast.Node {
	switch p.cur.Kind {
	case token.Number:
		v := p.cur.Text
		p.advance()
		return ast.NewNode(ast.Number, v)
	case token.String:
		v := p.cur.Text
		p.advance()
		return ast.NewNode(ast.String, v)
	case token.Dollar:
		p.advance()
		name := p.parseQName()
		return ast.NewNode(ast.VariableReference, name)
	case token.LParen:
		p.advance()
		if p.at(token.RParen) {
			p.advance()
			return ast.NewNode(ast.SequenceExpr, "()")
		}
		e := p.parseExpr()
		p.expect(token.RParen, "')'")
		return e
	case token.Lt:
		return p.parseDirectConstructor()
	case token.Identifier, token.Not:
		return p.parseIdentifierPrimary()
	default:
		p.errorf("unexpected token %q at offset %d", p.cur.Text, p.cur.Offset)
		return nil
	}
}

var computedConstructorKeywords = map[string]bool{
	"element": true, "attribute": true, "text": true, "comment": true,
	"processing-instruction": true, "document": true,
}

func (p *parser) parseIdentifierPrimary() *ast.Node {
	name := p.cur.Text
	if computedConstructorKeywords[name] {
		save := p.lex.Pos()
		savedCur := p.cur
		p.advance()
		if p.at(token.LBrace) || p.at(token.LParen) || (name != "text" && p.cur.Kind == token.Identifier) || p.at(token.Dollar) {
			return p.parseComputedConstructor(name)
		}
		p.lex.SetPos(save)
		p.cur = savedCur
	}
	p.advance()
	if p.at(token.LParen) {
		return p.parseFunctionCall(name)
	}
	p.errorf("unexpected identifier %q at offset %d (not a function call)", name, p.cur.Offset)
	return nil
}

func (p *parser) parseFunctionCall(name string) *ast.Node {
	p.advance() // '('
	var args []*ast.Node
	if !p.at(token.RParen) {
		args = append(args, p.parseExprSingle())
		for p.at(token.Comma) {
			p.advance()
			args = append(args, p.parseExprSingle())
		}
	}
	p.expect(token.RParen, "')'")
	return ast.NewNode(ast.FunctionCall, name, args...)
}

func (p *parser) parseQName() string {
	tok := p.expect(token.Identifier, "name")
	return tok.Text
}

// ---- numeric literal helper used by evaluator consumers -------------

// ParseNumberLiteral converts a Number token's text to float64.
func ParseNumberLiteral(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}
