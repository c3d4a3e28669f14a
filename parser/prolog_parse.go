package parser

import (
	"strings"

	"github.com/parasol-framework/xpathql/prolog"
	"github.com/parasol-framework/xpathql/token"
)

// parseProlog consumes a sequence of ';'-terminated declarations ahead
// of the main query body (spec §3.5). It stops as soon as the current
// token can no longer start a declaration, which is exactly when the
// body expression begins — XQuery prolog declarations are a closed,
// keyword-led set, so this needs no backtracking.
func (p *parser) parseProlog() {
	if p.atKeyword("xquery") {
		p.advance()
		p.expectKeyword("version")
		p.expect(token.String, "version string")
		if p.atKeyword("encoding") {
			p.advance()
			p.expect(token.String, "encoding string")
		}
		p.expectSemicolon()
	}
	if p.atKeyword("module") {
		p.advance()
		p.expectKeyword("namespace")
		prefix := p.parseQName()
		p.expect(token.Eq, "'='")
		uri := p.expect(token.String, "namespace URI").Text
		p.prolog.IsLibraryModule = true
		p.prolog.ModuleNamespaceURI = uri
		p.prolog.DeclaredNamespaces[prefix] = uri
		p.expectSemicolon()
	}
	for p.atKeyword("declare") || p.atKeyword("import") {
		if p.atKeyword("import") {
			p.parseImport()
		} else {
			p.parseDeclare()
		}
		p.expectSemicolon()
	}
}

func (p *parser) expectSemicolon() {
	if p.at(token.Semicolon) {
		p.advance()
		return
	}
	p.errorf("expected ';' after prolog declaration, got %q at offset %d", p.cur.Text, p.cur.Offset)
}

func (p *parser) parseImport() {
	p.advance() // 'import'
	p.expectKeyword("module")
	if p.atKeyword("namespace") {
		p.advance()
		prefix := p.parseQName()
		p.expect(token.Eq, "'='")
		uri := p.expect(token.String, "URI").Text
		p.prolog.DeclaredNamespaces[prefix] = uri
		imp := prolog.ModuleImport{TargetNamespace: uri}
		if p.atKeyword("at") {
			p.advance()
			imp.LocationHints = append(imp.LocationHints, p.expect(token.String, "location URI").Text)
			for p.at(token.Comma) {
				p.advance()
				imp.LocationHints = append(imp.LocationHints, p.expect(token.String, "location URI").Text)
			}
		}
		p.prolog.Imports = append(p.prolog.Imports, imp)
		return
	}
	uri := p.expect(token.String, "URI").Text
	imp := prolog.ModuleImport{TargetNamespace: uri}
	if p.atKeyword("at") {
		p.advance()
		imp.LocationHints = append(imp.LocationHints, p.expect(token.String, "location URI").Text)
	}
	p.prolog.Imports = append(p.prolog.Imports, imp)
}

func (p *parser) parseDeclare() {
	p.advance() // 'declare'
	switch {
	case p.atKeyword("namespace"):
		p.advance()
		prefix := p.parseQName()
		p.expect(token.Eq, "'='")
		uri := p.expect(token.String, "URI").Text
		p.prolog.DeclaredNamespaces[prefix] = uri
	case p.atKeyword("default"):
		p.advance()
		switch {
		case p.atKeyword("element"):
			p.advance()
			p.expectKeyword("namespace")
			p.prolog.DefaultElementNS = p.expect(token.String, "URI").Text
		case p.atKeyword("function"):
			p.advance()
			p.expectKeyword("namespace")
			p.prolog.DefaultFunctionNS = p.expect(token.String, "URI").Text
		case p.atKeyword("collation"):
			p.advance()
			p.prolog.DefaultCollation = p.expect(token.String, "URI").Text
		case p.atKeyword("order"):
			p.advance()
			p.expectKeyword("empty")
			if p.atKeyword("greatest") {
				p.advance()
				p.prolog.EmptyOrderMode = prolog.Greatest
			} else {
				p.expectKeyword("least")
				p.prolog.EmptyOrderMode = prolog.Least
			}
		default:
			p.errorf("unsupported 'declare default' clause at offset %d", p.cur.Offset)
		}
	case p.atKeyword("boundary-space"):
		p.advance()
		if p.atKeyword("preserve") {
			p.advance()
			p.prolog.BoundarySpace = prolog.BoundaryPreserve
		} else {
			p.expectKeyword("strip")
			p.prolog.BoundarySpace = prolog.BoundaryStrip
		}
	case p.atKeyword("construction"):
		p.advance()
		if p.atKeyword("preserve") {
			p.advance()
			p.prolog.ConstructionMode = prolog.Preserve
		} else {
			p.expectKeyword("strip")
			p.prolog.ConstructionMode = prolog.Strip
		}
	case p.atKeyword("ordering"):
		p.advance()
		if p.atKeyword("ordered") {
			p.advance()
			p.prolog.OrderingMode = prolog.Ordered
		} else {
			p.expectKeyword("unordered")
			p.prolog.OrderingMode = prolog.Unordered
		}
	case p.atKeyword("base-uri"):
		p.advance()
		p.prolog.StaticBaseURI = p.expect(token.String, "URI").Text
	case p.atKeyword("copy-namespaces"):
		p.advance()
		if p.atKeyword("preserve") {
			p.advance()
			p.prolog.CopyNS.Preserve = true
		} else {
			p.expectKeyword("no-preserve")
		}
		if p.at(token.Comma) {
			p.advance()
			if p.atKeyword("inherit") {
				p.advance()
				p.prolog.CopyNS.Inherit = true
			} else {
				p.expectKeyword("no-inherit")
			}
		}
	case p.atKeyword("variable"):
		p.advance()
		p.expect(token.Dollar, "'$'")
		name := p.parseQName()
		p.expect(token.Assign, "':='")
		expr := p.parseExprSingle()
		p.prolog.Variables[name] = expr
	case p.atKeyword("function"):
		p.advance()
		name := p.parseQName()
		p.expect(token.LParen, "'('")
		var params []string
		if !p.at(token.RParen) {
			p.expect(token.Dollar, "'$'")
			params = append(params, p.parseQName())
			for p.at(token.Comma) {
				p.advance()
				p.expect(token.Dollar, "'$'")
				params = append(params, p.parseQName())
			}
		}
		p.expect(token.RParen, "')'")
		p.expect(token.LBrace, "'{'")
		body := p.parseExpr()
		p.expect(token.RBrace, "'}'")
		uri, local := p.resolveDeclaredFunctionName(name)
		p.prolog.Functions[prolog.FunctionKey(uri, local, len(params))] = &prolog.DeclaredFunction{
			URI: uri, Local: local, Params: params, Body: body,
		}
	case p.atKeyword("decimal-format"):
		p.advance()
		name := ""
		if p.at(token.Identifier) && !isDecimalFormatProperty(p.cur.Text) {
			name = p.parseQName()
		}
		df := &prolog.DecimalFormat{Name: name, DecimalSeparator: '.', GroupingSeparator: ','}
		p.prolog.DecimalFormats[name] = df
		for isDecimalFormatProperty(p.cur.Text) && p.at(token.Identifier) {
			p.advance()
			p.expect(token.Eq, "'='")
			p.expect(token.String, "value")
		}
	default:
		p.errorf("unsupported declaration at offset %d: %q", p.cur.Offset, p.cur.Text)
	}
}

// resolveDeclaredFunctionName splits a declare-function name's QName
// into prefix and local parts and resolves the prefix against the
// namespaces declared so far in this prolog, the same way a call site
// resolves a function name (eval.Context.resolveFunctionNS). Prologs
// conventionally declare namespaces before the functions that use them,
// so a sequential, declare-order-sensitive scan is sufficient here.
func (p *parser) resolveDeclaredFunctionName(name string) (uri, local string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		prefix := name[:i]
		local = name[i+1:]
		if u, ok := p.prolog.DeclaredNamespaces[prefix]; ok {
			return u, local
		}
		return "", local
	}
	return p.prolog.DefaultFunctionNS, name
}

func isDecimalFormatProperty(kw string) bool {
	switch kw {
	case "decimal-separator", "grouping-separator", "infinity", "NaN",
		"minus-sign", "percent", "per-mille", "zero-digit", "digit", "pattern-separator":
		return true
	default:
		return false
	}
}
