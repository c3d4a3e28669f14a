package xpathql

import "gopkg.in/src-d/go-errors.v1"

// Error taxonomy (spec §7). Codes are authoritative at the API boundary
// (xmltree.ErrorCode); these Kinds carry the human-readable message and
// a stack trace for diagnostics, the same split the teacher uses for
// its MySQL error kinds (see sql/errors_test.go in the retrieved pack).
var (
	// ErrSyntax: the tokeniser or parser rejected the input.
	ErrSyntax = errors.NewKind("syntax error: %s")

	// ErrUnsupported: the evaluator hit a construct it does not
	// implement (missing function, external variable, unsupported
	// collation, namespace axis when not implemented, module-only
	// function without a cache).
	ErrUnsupported = errors.NewKind("unsupported xpath construct: %s")

	// ErrUnsupportedFunction names a missing or wrong-arity function,
	// surfaced distinctly because spec §4.B requires the literal
	// message shape "Unsupported XPath function: NAME".
	ErrUnsupportedFunction = errors.NewKind("Unsupported XPath function: %s")

	// ErrModule wraps the W3C module-import error family (XQST0047,
	// XQST0048, XQST0059, XQDY0054); Code carries the exact prefix.
	ErrModule = errors.NewKind("%s: %s")

	// ErrInvalidConstructor covers computed/direct constructor name
	// and content validation failures (bad NCName, "--" in a comment,
	// "?>" in a PI, recursion depth exceeded).
	ErrInvalidConstructor = errors.NewKind("invalid constructor: %s")
)

// ModuleErrorCode enumerates the W3C codes ErrModule can carry.
type ModuleErrorCode string

const (
	XQST0047 ModuleErrorCode = "XQST0047" // duplicate import of same namespace
	XQST0048 ModuleErrorCode = "XQST0048" // exported name outside module namespace
	XQST0059 ModuleErrorCode = "XQST0059" // module could not be loaded
	XQDY0054 ModuleErrorCode = "XQDY0054" // circular variable/module dependency
	XPST0134 ModuleErrorCode = "XPST0134" // namespace axis not supported
)

// NewModuleError builds an ErrModule with the given W3C code prefix.
func NewModuleError(code ModuleErrorCode, msg string) error {
	return ErrModule.New(string(code), msg)
}
