// Package xpathql is the engine's top-level API (spec §6.2): compile a
// query once, then run it against any number of host-owned XML
// documents via Evaluate or FindTag.
package xpathql

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/parasol-framework/xpathql/arena"
	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/eval"
	"github.com/parasol-framework/xpathql/function"
	"github.com/parasol-framework/xpathql/parser"
	"github.com/parasol-framework/xpathql/prolog"
	"github.com/parasol-framework/xpathql/schema"
	"github.com/parasol-framework/xpathql/value"
	"github.com/parasol-framework/xpathql/xmltree"
)

// Config configures an Engine. The zero Config is valid: it yields a
// logrus.StandardLogger() at its default level and no host loaders (see
// Loaders).
type Config struct {
	// Logger receives structured diagnostics for compile/evaluate calls.
	// Defaults to logrus.StandardLogger() when nil.
	Logger *logrus.Logger
	// Loaders backs unparsed-text() and its -available/-lines variants
	// (through Resolve/Read) and the regex function family (through
	// Regex). doc() and collection() serve only documents already in
	// Document.DocCache; bytes fetched through Read are never parsed into
	// a Document. With nil Loaders, unparsed-text() finds only what
	// Document.TextCache holds and the regex functions return an error.
	Loaders *xmltree.Loaders
	// Schemas is the schema-aware type registry used for attribute/
	// element coercion (spec §3.3). Defaults to schema.Default().
	Schemas *schema.Registry
}

// Engine compiles and evaluates xpathql queries. Create one with New or
// NewDefault and reuse it across queries and documents; an Engine holds
// no document-specific state.
type Engine struct {
	cfg       Config
	log       *logrus.Entry
	functions *function.Registry
	schemas   *schema.Registry
}

// New creates an Engine with custom configuration. To create an Engine
// with the default settings use NewDefault.
func New(cfg *Config) *Engine {
	if cfg == nil {
		cfg = &Config{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	schemas := cfg.Schemas
	if schemas == nil {
		schemas = schema.Default()
	}
	return &Engine{
		cfg:       *cfg,
		log:       logger.WithField("component", "xpathql"),
		functions: function.Default(),
		schemas:   schemas,
	}
}

// NewDefault creates an Engine with no host loaders wired in: doc() and
// collection() serve only Document.DocCache, unparsed-text() only
// Document.TextCache, and the regex-backed string functions return an
// error until a Config with Loaders is supplied via New.
func NewDefault() *Engine {
	return New(nil)
}

// CompiledQuery is an immutable, reusable compiled query (spec §3.4,
// §6.2). It carries no reference to any particular document.
type CompiledQuery struct {
	Text   string
	Root   *ast.Node
	Prolog *prolog.Prolog
}

// Compile parses query text into a CompiledQuery. A syntax error
// returns a nil query and an ErrSyntax wrapping every accumulated
// parser message (spec §4.D: "errors produced by the parser are
// accumulated as strings").
func (e *Engine) Compile(text string) (*CompiledQuery, error) {
	res := parser.Parse(text)
	if !res.Valid() {
		e.log.WithField("errors", res.Errors).Debug("compile failed")
		return nil, ErrSyntax.New(strings.Join(res.Errors, "; "))
	}
	return &CompiledQuery{Text: text, Root: res.Root, Prolog: res.Prolog}, nil
}

// newContext builds the dynamic evaluation context for one Evaluate/
// FindTag call, rooted at the document. currentPrefix is only recorded
// on the returned Context: node tests do not consult it, so an
// unqualified name test resolves through the query's prolog alone.
func (e *Engine) newContext(q *CompiledQuery, doc *xmltree.Document, currentPrefix uint32) *Context {
	ar := arena.Get()
	ctx := eval.NewContext(doc, q.Prolog, e.functions, e.cfg.Loaders, ar)
	ctx.Schema = e.schemas
	return &Context{inner: ctx, arena: ar, currentPrefix: currentPrefix}
}

// Context wraps the evaluator's dynamic context together with the
// arena borrowed for its lifetime, so callers always release it via
// release() exactly once per Evaluate/FindTag call.
type Context struct {
	inner         *eval.Context
	arena         *arena.Arena
	currentPrefix uint32
}

func (c *Context) release() { arena.Put(c.arena) }

// Evaluate runs a compiled query against doc and returns its result
// value (spec §6.2). currentPrefix is accepted for API symmetry with
// FindTag and is unused: evaluate always runs against the query's own
// static namespace context.
func (e *Engine) Evaluate(q *CompiledQuery, doc *xmltree.Document, currentPrefix uint32) (value.Value, xmltree.ErrorCode, error) {
	if q == nil || doc == nil {
		return value.Value{}, xmltree.NullArgs, nil
	}
	c := e.newContext(q, doc, currentPrefix)
	defer c.release()

	result, err := eval.Evaluate(c.inner, q.Root)
	if err != nil {
		e.log.WithError(err).WithField("query", q.Text).Debug("evaluate failed")
		return value.Value{}, xmltree.Failed, err
	}
	if result.Kind == value.NodeSet && len(result.Items) == 0 {
		return result, xmltree.Search, nil
	}
	return result, xmltree.Okay, nil
}

// FindTag runs a compiled query and invokes cb once per matched tag (or
// attribute) in document order (spec §4.J, §6.2). FindTag stops early
// and returns Terminate the first time cb itself returns anything other
// than Okay. A query that evaluates to the empty sequence returns
// Search, and one that evaluates to a non-node-set value returns
// InvalidValue, without ever invoking cb.
func (e *Engine) FindTag(q *CompiledQuery, doc *xmltree.Document, currentPrefix uint32, cb xmltree.Callback, userData interface{}) xmltree.ErrorCode {
	if q == nil || doc == nil || cb == nil {
		return xmltree.NullArgs
	}
	c := e.newContext(q, doc, currentPrefix)
	defer c.release()

	result, err := eval.Evaluate(c.inner, q.Root)
	if err != nil {
		e.log.WithError(err).WithField("query", q.Text).Debug("find_tag failed")
		return xmltree.Failed
	}
	if result.Kind != value.NodeSet {
		return xmltree.InvalidValue
	}
	if len(result.Items) == 0 {
		return xmltree.Search
	}
	for _, it := range result.Items {
		if it.Tag == nil {
			continue
		}
		attrName := ""
		if it.Attribute != nil {
			attrName = it.Attribute.Name
		}
		if code := cb(doc, it.Tag.ID, attrName, userData); code != xmltree.Okay {
			return xmltree.Terminate
		}
	}
	return xmltree.Okay
}

// Functions exposes the engine's builtin function registry, letting a
// host inspect or extend it (e.g. to validate a call before compiling).
func (e *Engine) Functions() *function.Registry {
	return e.functions
}
