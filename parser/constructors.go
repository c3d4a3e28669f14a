package parser

import (
	"strings"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/token"
)

// Direct and computed constructors (spec §3.4, §4.D) need two lexical
// modes: token mode for expressions, and raw-byte mode for XML markup
// and attribute value templates. We keep one token.Lexer and hop
// between the two by tracking a raw byte cursor directly, resuming
// token mode with lex.SetPos + advance() whenever we re-enter an
// expression hole or finish the constructor.

// parseDirectConstructor parses `<qname attrs…> content </qname>` or
// the self-closing form, starting with p.cur == '<', and resumes token
// mode just after the constructor.
func (p *parser) parseDirectConstructor() *ast.Node {
	node, pos := p.scanDirectConstructor(p.cur.Offset + p.cur.Length) // just after '<'
	p.lex.SetPos(pos)
	p.advance()
	return node
}

// scanDirectConstructor parses a direct constructor in raw-byte mode,
// starting just after its '<', and returns it with the raw position just
// after its closing '>'.
func (p *parser) scanDirectConstructor(pos int) (*ast.Node, int) {
	src := p.lex.Src()

	name, pos := scanName(src, pos)
	if name == "" {
		p.errorf("expected element name after '<' at offset %d", pos)
	}

	var attrs []*ast.ConstructorAttribute
	for {
		pos = skipSpace(src, pos)
		if hasPrefixAt(src, pos, "/>") {
			return p.finishDirectConstructor(name, attrs, nil), pos + 2
		}
		if hasPrefixAt(src, pos, ">") {
			pos++
			break
		}
		var attr *ast.ConstructorAttribute
		attr, pos = p.parseDirectAttribute(src, pos)
		attrs = append(attrs, attr)
	}

	content, pos := p.parseDirectContent(src, pos, name)
	return p.finishDirectConstructor(name, attrs, content), pos
}

func (p *parser) finishDirectConstructor(name string, attrs []*ast.ConstructorAttribute, content []*ast.Node) *ast.Node {
	node := ast.NewNode(ast.DirectElementConstructor, name, content...)
	node.Attributes = attrs
	return node
}

func (p *parser) parseDirectAttribute(src string, pos int) (*ast.ConstructorAttribute, int) {
	name, pos2 := scanName(src, pos)
	if name == "" {
		p.errorf("expected attribute name at offset %d", pos)
	}
	pos = skipSpace(src, pos2)
	if !hasPrefixAt(src, pos, "=") {
		p.errorf("expected '=' after attribute name %q at offset %d", name, pos)
	}
	pos = skipSpace(src, pos+1)
	if pos >= len(src) || (src[pos] != '"' && src[pos] != '\'') {
		p.errorf("expected quoted attribute value at offset %d", pos)
	}
	quote := src[pos]
	pos++
	template, endPos := p.parseAVT(src, pos, quote)

	prefix, local := "", name
	isNS := false
	if name == "xmlns" {
		isNS = true
		prefix = ""
	} else if strings.HasPrefix(name, "xmlns:") {
		isNS = true
		local = strings.TrimPrefix(name, "xmlns:")
	} else if i := strings.IndexByte(name, ':'); i >= 0 {
		prefix, local = name[:i], name[i+1:]
	}

	attr := &ast.ConstructorAttribute{Prefix: prefix, Local: local, IsNamespace: isNS, Template: template}
	return attr, endPos
}

// parseAVT scans an attribute-value-template body until the closing
// quote, splitting into literal runs and "{expr}" holes. "{{" and "}}"
// are literal escapes, matching XQuery's AVT rule.
func (p *parser) parseAVT(src string, pos int, quote byte) ([]ast.AVTPart, int) {
	var parts []ast.AVTPart
	var lit strings.Builder
	for pos < len(src) {
		c := src[pos]
		if c == quote {
			pos++
			break
		}
		if c == '{' {
			if pos+1 < len(src) && src[pos+1] == '{' {
				lit.WriteByte('{')
				pos += 2
				continue
			}
			if lit.Len() > 0 {
				parts = append(parts, ast.AVTPart{Literal: lit.String()})
				lit.Reset()
			}
			var expr *ast.Node
			expr, pos = p.parseEmbeddedExpr(pos + 1)
			parts = append(parts, ast.AVTPart{Expr: expr})
			continue
		}
		if c == '}' && pos+1 < len(src) && src[pos+1] == '}' {
			lit.WriteByte('}')
			pos += 2
			continue
		}
		lit.WriteByte(c)
		pos++
	}
	if lit.Len() > 0 {
		parts = append(parts, ast.AVTPart{Literal: lit.String()})
	}
	return parts, pos
}

// parseEmbeddedExpr re-enters token mode at pos (just after '{'),
// parses one Expr, and returns the raw position just after the
// matching '}'.
func (p *parser) parseEmbeddedExpr(pos int) (*ast.Node, int) {
	p.lex.SetPos(pos)
	p.advance()
	expr := p.parseExpr()
	if !p.at(token.RBrace) {
		p.errorf("expected '}' to close constructor expression at offset %d", p.cur.Offset)
	}
	end := p.cur.Offset + p.cur.Length
	return expr, end
}

// parseDirectContent scans element content up to the matching
// "</name>", producing a flat list of ConstructorContent children:
// text runs, nested DirectElementConstructors, and embedded
// expressions.
func (p *parser) parseDirectContent(src string, pos int, name string) ([]*ast.Node, int) {
	var out []*ast.Node
	var text strings.Builder
	flushText := func() {
		if text.Len() == 0 {
			return
		}
		out = append(out, ast.NewNode(ast.TextConstructor, text.String()))
		text.Reset()
	}
	for pos < len(src) {
		if hasPrefixAt(src, pos, "</") {
			closeName, after := scanName(src, pos+2)
			after = skipSpace(src, after)
			if after >= len(src) || src[after] != '>' {
				p.errorf("malformed closing tag for <%s> at offset %d", name, pos)
			}
			if closeName != name {
				p.errorf("mismatched closing tag: expected </%s>, got </%s>", name, closeName)
			}
			flushText()
			return out, after + 1
		}
		c := src[pos]
		switch {
		case c == '<':
			flushText()
			var child *ast.Node
			child, pos = p.scanDirectConstructor(pos + 1)
			out = append(out, child)
		case c == '{':
			if pos+1 < len(src) && src[pos+1] == '{' {
				text.WriteByte('{')
				pos += 2
				continue
			}
			flushText()
			var expr *ast.Node
			expr, pos = p.parseEmbeddedExpr(pos + 1)
			out = append(out, ast.NewNode(ast.ConstructorContent, "expr", expr))
		case c == '}' && pos+1 < len(src) && src[pos+1] == '}':
			text.WriteByte('}')
			pos += 2
		default:
			text.WriteByte(c)
			pos++
		}
	}
	p.errorf("unterminated element content for <%s>", name)
	return out, pos
}

func scanName(src string, pos int) (string, int) {
	start := pos
	for pos < len(src) && isNameByte(src[pos]) {
		pos++
	}
	return src[start:pos], pos
}

func isNameByte(b byte) bool {
	return b == '_' || b == '-' || b == '.' || b == ':' ||
		(b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') || (b >= '0' && b <= '9')
}

func skipSpace(src string, pos int) int {
	for pos < len(src) && (src[pos] == ' ' || src[pos] == '\t' || src[pos] == '\n' || src[pos] == '\r') {
		pos++
	}
	return pos
}

func hasPrefixAt(src string, pos int, prefix string) bool {
	if pos > len(src) {
		pos = len(src)
	}
	return strings.HasPrefix(src[pos:], prefix)
}

// ---- computed constructors --------------------------------------------

// parseComputedConstructor parses `element|attribute|text|comment|
// processing-instruction|document { ... }`, with p.cur already past
// the keyword (p.advance() having been called by the caller's lookahead).
func (p *parser) parseComputedConstructor(kind string) *ast.Node {
	switch kind {
	case "element":
		nameNode := p.parseConstructorNameExpr()
		p.expect(token.LBrace, "'{'")
		var content *ast.Node
		if !p.at(token.RBrace) {
			content = p.parseExpr()
		}
		p.expect(token.RBrace, "'}'")
		node := ast.NewNode(ast.ComputedElementConstructor, "element")
		node.NameExpr = nameNode
		if content != nil {
			node.Children = []*ast.Node{content}
		}
		return node
	case "attribute":
		nameNode := p.parseConstructorNameExpr()
		p.expect(token.LBrace, "'{'")
		var content *ast.Node
		if !p.at(token.RBrace) {
			content = p.parseExpr()
		}
		p.expect(token.RBrace, "'}'")
		node := ast.NewNode(ast.ComputedAttributeConstructor, "attribute")
		node.NameExpr = nameNode
		if content != nil {
			node.Children = []*ast.Node{content}
		}
		return node
	case "text":
		p.expect(token.LBrace, "'{'")
		content := p.parseExpr()
		p.expect(token.RBrace, "'}'")
		return ast.NewNode(ast.TextConstructor, "", content)
	case "comment":
		p.expect(token.LBrace, "'{'")
		content := p.parseExpr()
		p.expect(token.RBrace, "'}'")
		return ast.NewNode(ast.CommentConstructor, "", content)
	case "processing-instruction":
		nameNode := p.parseConstructorNameExpr()
		p.expect(token.LBrace, "'{'")
		var content *ast.Node
		if !p.at(token.RBrace) {
			content = p.parseExpr()
		}
		p.expect(token.RBrace, "'}'")
		node := ast.NewNode(ast.PiConstructor, "processing-instruction")
		node.NameExpr = nameNode
		if content != nil {
			node.Children = []*ast.Node{content}
		}
		return node
	case "document":
		p.expect(token.LBrace, "'{'")
		content := p.parseExpr()
		p.expect(token.RBrace, "'}'")
		return ast.NewNode(ast.DocumentConstructor, "", content)
	default:
		p.errorf("unknown computed constructor %q", kind)
		return nil
	}
}

// parseConstructorNameExpr parses either a literal QName or a braced
// name expression, e.g. `element summary {...}` vs
// `element { $nameExpr } {...}`.
func (p *parser) parseConstructorNameExpr() *ast.Node {
	if p.at(token.LBrace) {
		p.advance()
		e := p.parseExpr()
		p.expect(token.RBrace, "'}'")
		return e
	}
	name := p.expect(token.Identifier, "constructor name").Text
	return ast.NewNode(ast.Literal, name)
}
