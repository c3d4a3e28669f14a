// Package schema implements the XML-Schema-aware type registry (spec
// §3.3): an acyclic DAG of built-in and user-defined type descriptors
// used to coerce XPath/XQuery values and to answer is-derived-from and
// can-coerce-to questions during evaluation.
//
// Descriptors never hold a Value — that would create an import cycle
// with package value, which holds a *Descriptor for its own
// schema_type_info field. Coercion of an actual Value lives on
// value.Value itself.
package schema

import "sync"

// Kind enumerates the built-in schema kinds plus the four XPath 1.0
// pseudo-types and a catch-all for user-defined types.
type Kind int

const (
	AnyType Kind = iota
	XSString
	XSBoolean
	XSDecimal
	XSFloat
	XSDouble
	XSDuration
	XSDateTime
	XSTime
	XSDate
	XSInteger
	XSLong
	XSInt
	XSShort
	XSByte
	XSQName

	// XPath 1.0 pseudo-types, never schema-derived.
	PseudoNodeSet
	PseudoBoolean
	PseudoNumber
	PseudoString

	UserDefined
)

// QName is a namespace-qualified name.
type QName struct {
	Prefix string
	URI    string
	Local  string
}

// Expanded returns the (URI, Local) pair used as a registry lookup key.
func (q QName) Expanded() [2]string { return [2]string{q.URI, q.Local} }

// Descriptor describes one node of the type DAG.
type Descriptor struct {
	Kind              Kind
	Name              QName
	Base              *Descriptor // nil only for AnyType
	BuiltIn           bool
	ConstructorArity  int
	NamespaceSensitive bool
}

// IsDerivedFrom walks Base links looking for target.
func (d *Descriptor) IsDerivedFrom(target *Descriptor) bool {
	for cur := d; cur != nil; cur = cur.Base {
		if cur == target || cur.Kind == target.Kind && cur.Kind != UserDefined {
			return true
		}
		if cur.Base == cur {
			break
		}
	}
	return false
}

func isNumeric(k Kind) bool {
	switch k {
	case XSDecimal, XSFloat, XSDouble, XSInteger, XSLong, XSInt, XSShort, XSByte, PseudoNumber:
		return true
	default:
		return false
	}
}

func isStringLike(k Kind) bool {
	switch k {
	case XSString, XSQName, PseudoString:
		return true
	default:
		return false
	}
}

// CanCoerceTo implements the rule from spec §3.3: same type; anyType
// target; numeric↔numeric; anything→string-like; otherwise recurse on
// the base.
func (d *Descriptor) CanCoerceTo(target *Descriptor) bool {
	if d == nil || target == nil {
		return false
	}
	if d.Kind == target.Kind {
		return true
	}
	if target.Kind == AnyType {
		return true
	}
	if isNumeric(d.Kind) && isNumeric(target.Kind) {
		return true
	}
	if isStringLike(target.Kind) {
		return true
	}
	if d.Base == nil || d.Base == d {
		return false
	}
	return d.Base.CanCoerceTo(target)
}

// Registry is the process-wide, lazily-initialised singleton described
// by spec §3.3. Registration of a duplicate kind is a no-op: first
// registration wins.
type Registry struct {
	mu         sync.RWMutex
	byKind     map[Kind]*Descriptor
	byQName    map[QName]*Descriptor
	byExpanded map[[2]string]*Descriptor
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide singleton, building it on first use.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = newRegistry()
		defaultReg.registerBuiltins()
	})
	return defaultReg
}

func newRegistry() *Registry {
	return &Registry{
		byKind:     map[Kind]*Descriptor{},
		byQName:    map[QName]*Descriptor{},
		byExpanded: map[[2]string]*Descriptor{},
	}
}

const xsdNS = "http://www.w3.org/2001/XMLSchema"

// XSDNamespace is the XML Schema namespace URI, exported so callers
// outside this package (e.g. the function registry's xs: constructor
// functions) can resolve the "xs" prefix to the same URI this registry
// keys its built-in descriptors under.
const XSDNamespace = xsdNS

func (r *Registry) registerBuiltins() {
	anyType := &Descriptor{Kind: AnyType, Name: QName{Local: "anyType", URI: xsdNS}, BuiltIn: true}
	anyType.Base = anyType
	r.Register(anyType)

	def := func(k Kind, local string, base *Descriptor) *Descriptor {
		d := &Descriptor{Kind: k, Name: QName{Local: local, URI: xsdNS}, Base: base, BuiltIn: true}
		r.Register(d)
		return d
	}
	str := def(XSString, "string", anyType)
	def(XSBoolean, "boolean", anyType)
	decimal := def(XSDecimal, "decimal", anyType)
	def(XSFloat, "float", anyType)
	def(XSDouble, "double", anyType)
	def(XSDuration, "duration", anyType)
	def(XSDateTime, "dateTime", anyType)
	def(XSTime, "time", anyType)
	def(XSDate, "date", anyType)
	integer := def(XSInteger, "integer", decimal)
	long := def(XSLong, "long", integer)
	i32 := def(XSInt, "int", long)
	short := def(XSShort, "short", i32)
	def(XSByte, "byte", short)
	def(XSQName, "QName", str)

	pseudo := func(k Kind, local string) *Descriptor {
		d := &Descriptor{Kind: k, Name: QName{Local: local}, Base: anyType, BuiltIn: true}
		r.Register(d)
		return d
	}
	pseudo(PseudoNodeSet, "node-set")
	pseudo(PseudoBoolean, "boolean")
	pseudo(PseudoNumber, "number")
	pseudo(PseudoString, "string")
}

// Register adds d unless its Kind is already registered.
func (r *Registry) Register(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byKind[d.Kind]; ok {
		return
	}
	r.byKind[d.Kind] = d
	r.byQName[d.Name] = d
	r.byExpanded[d.Name.Expanded()] = d
}

// ByKind looks up a descriptor by its Kind.
func (r *Registry) ByKind(k Kind) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byKind[k]
	return d, ok
}

// ByQName looks up a descriptor by its fully-qualified name.
func (r *Registry) ByQName(q QName) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byQName[q]
	return d, ok
}

// ByExpandedName looks up a descriptor by (URI, local).
func (r *Registry) ByExpandedName(uri, local string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.byExpanded[[2]string{uri, local}]
	return d, ok
}

// RegisterUserDefined defines a new simple type derived from base.
func (r *Registry) RegisterUserDefined(name QName, base *Descriptor) *Descriptor {
	d := &Descriptor{Kind: UserDefined, Name: name, Base: base}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byQName[name] = d
	r.byExpanded[name.Expanded()] = d
	return d
}
