package eval

import (
	"fmt"
	"strings"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/prolog"
	"github.com/parasol-framework/xpathql/value"
)

// evalFunctionCall resolves a (possibly prefixed) call name against the
// user-declared functions of the query prolog first, then the builtin
// registry (spec §3.5: local declarations shadow the function library).
func (ctx *Context) evalFunctionCall(node *ast.Node) (value.Value, error) {
	prefix, local := splitQName(node.Value)
	uri := ctx.resolveFunctionNS(prefix)

	args := make([]value.Value, len(node.Children))
	for i, c := range node.Children {
		v, err := ctx.Eval(c)
		if err != nil {
			return value.Value{}, err
		}
		args[i] = v
	}

	if fn, ok := ctx.Prolog.LookupFunction(uri, local, len(args)); ok {
		return ctx.callDeclaredFunction(fn, args)
	}

	sig, ok := ctx.Functions.Lookup(uri, local)
	if !ok && prefix == "" {
		sig, ok = ctx.Functions.Lookup("", local)
	}
	if !ok {
		return value.Value{}, fmt.Errorf("Unsupported XPath function: %s", node.Value)
	}
	if len(args) < sig.MinArgs || (sig.MaxArgs >= 0 && len(args) > sig.MaxArgs) {
		return value.Value{}, fmt.Errorf("Unsupported XPath function: %s (expects between %d and %d arguments, got %d)",
			node.Value, sig.MinArgs, sig.MaxArgs, len(args))
	}
	return sig.Impl(ctx.functionContext(), args)
}

func splitQName(name string) (prefix, local string) {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return "", name
}

func (ctx *Context) resolveFunctionNS(prefix string) string {
	if prefix == "" {
		if ctx.Prolog.DefaultFunctionNS != "" {
			return ctx.Prolog.DefaultFunctionNS
		}
		return ""
	}
	if uri, ok := ctx.Prolog.ResolvePrefix(prefix); ok {
		return uri
	}
	return ""
}

// callDeclaredFunction binds a user-declared function's parameters as
// fresh local variables and evaluates its body in a context that still
// carries the caller's item/position/size (spec §3.5: user functions do
// not change the focus, only the variable scope).
func (ctx *Context) callDeclaredFunction(fn *prolog.DeclaredFunction, args []value.Value) (value.Value, error) {
	if len(args) != len(fn.Params) {
		return value.Value{}, fmt.Errorf("function %s expects %d arguments, got %d", fn.Local, len(fn.Params), len(args))
	}
	vars := make(map[string]value.Value, len(args))
	for i, p := range fn.Params {
		vars[p] = args[i]
	}
	return ctx.withVars(vars).Eval(fn.Body)
}
