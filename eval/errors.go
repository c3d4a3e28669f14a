package eval

import "gopkg.in/src-d/go-errors.v1"

// ErrInvalidConstructor mirrors the root package's Kind of the same
// name (see the top-level errors.go): this package cannot import the
// root xpathql package, which already imports eval, so construction-time
// validation failures — including the recursion-depth bound enforced by
// constructors.go — get their own Kind here, using the same typed-error
// library the root package uses for its error taxonomy.
var ErrInvalidConstructor = errors.NewKind("invalid constructor: %s")
