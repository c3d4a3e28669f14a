// Package xmltree defines the host-provided XML tree contract that the
// xpathql evaluator borrows but never owns. The tree itself is produced
// elsewhere (an XML parser is out of scope for this module, see spec §1);
// this package only fixes the shape the evaluator walks: ordered Tag
// nodes with positive integer IDs, a parent link per Tag, and a flat
// Attribute list whose first slot doubles as the element's own QName or
// as a Content tag's text.
package xmltree

import "strings"

// TagFlag classifies a Tag. Element is the default zero-ish case (no
// flag set means "plain element"); every other flag is mutually
// exclusive with Element in practice, though the bits are independent
// so a host can combine them if its source format requires it.
type TagFlag uint32

const (
	Element TagFlag = 1 << iota
	Content
	Comment
	Instruction
	Notation
	CData
)

// Attribute is either a real XML attribute (Name/Value) or, at index 0
// of an Element's Attribs, the element's own QName; or, for a Content
// tag, the tag's text in Value with Name empty.
type Attribute struct {
	Name  string
	Value string
}

// Tag is one node of the host tree. IDs are positive and unique within
// a Document; a Tag's Parent is 0 only for top-level tags.
type Tag struct {
	ID         int
	Parent     int
	NamespaceHash uint32
	Flags      TagFlag
	Attribs    []Attribute
	Children   []*Tag
}

// IsElement reports whether t represents a markup element (as opposed
// to text, comment, PI or notation).
func (t *Tag) IsElement() bool { return t.Flags&(Content|Comment|Instruction|Notation) == 0 }

// IsText reports whether t is a Content tag that is not a comment,
// instruction or notation — i.e. what the text() node test matches.
func (t *Tag) IsText() bool {
	return t.Flags&Content != 0 && t.Flags&(Comment|Instruction|Notation) == 0
}

// Name returns the element's QName (Attribs[0].Name), or "" for
// anything else.
func (t *Tag) Name() string {
	if len(t.Attribs) == 0 {
		return ""
	}
	if t.Flags&Content != 0 {
		return ""
	}
	return t.Attribs[0].Name
}

// PITarget returns the processing-instruction target for an Instruction
// tag: Name is stored as "?target".
func (t *Tag) PITarget() string {
	name := t.Name()
	return strings.TrimPrefix(name, "?")
}

// Text returns the stored text of a Content tag (Attribs[0].Value), or
// "" if t is not a Content tag.
func (t *Tag) Text() string {
	if t.Flags&Content == 0 || len(t.Attribs) == 0 {
		return ""
	}
	return t.Attribs[0].Value
}

// Attrs returns the ordinary attributes of an element, skipping the
// QName sentinel at index 0.
func (t *Tag) Attrs() []Attribute {
	if len(t.Attribs) <= 1 {
		return nil
	}
	return t.Attribs[1:]
}

// Attr looks up an ordinary attribute by (possibly empty) name,
// case-sensitive, returning its value and whether it was found.
func (t *Tag) Attr(name string) (string, bool) {
	for _, a := range t.Attrs() {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// StringValue is the XPath string-value of a node: for a Content tag,
// its own text plus the string-value of every child; for an element,
// the concatenation of every descendant Content tag's text in document
// order.
func (t *Tag) StringValue() string {
	if t.Flags&Content != 0 {
		var sb strings.Builder
		sb.WriteString(t.Text())
		for _, c := range t.Children {
			sb.WriteString(c.StringValue())
		}
		return sb.String()
	}
	var sb strings.Builder
	collectText(t, &sb)
	return sb.String()
}

func collectText(t *Tag, sb *strings.Builder) {
	if t.IsText() {
		sb.WriteString(t.Text())
	}
	for _, c := range t.Children {
		collectText(c, sb)
	}
}

// Document is an XML document as the evaluator sees it: an ordered
// sequence of top-level Tags plus the namespace and variable state the
// spec requires the host to supply (spec §6.1).
type Document struct {
	Tags     []*Tag
	Path     string
	Prefixes map[string]uint32
	nsByHash map[uint32]string
	nextHash uint32

	byID map[int]*Tag

	// Variables holds host-injected variables, keyed by the variable's
	// QName as the query writes it ("prefix:local" or a bare local name).
	Variables map[string]interface{}

	// ErrorMsg is the scratch slot runtime errors are reported through
	// for cursor-based hosts (spec §3.1, §7).
	ErrorMsg string

	// Modules is the per-document compiled-library-module cache,
	// sharing the document's lifetime (spec §3.6, §6.3).
	Modules map[string]interface{}

	// DocCache and TextCache back doc()/collection()/unparsed-text().
	// DocCache is populated by the host only; unparsed-text() also adds
	// each text it loads through the host loaders to TextCache.
	DocCache  map[string]*Document
	TextCache map[string]string
}

// NewDocument builds an empty Document ready for tags to be appended.
func NewDocument(path string) *Document {
	return &Document{
		Path:      path,
		Prefixes:  map[string]uint32{},
		nsByHash:  map[uint32]string{},
		Variables: map[string]interface{}{},
		Modules:   map[string]interface{}{},
		DocCache:  map[string]*Document{},
		TextCache: map[string]string{},
	}
}

// RegisterNamespace interns a URI and returns its hash, idempotently.
func (d *Document) RegisterNamespace(uri string) uint32 {
	for h, u := range d.nsByHash {
		if u == uri {
			return h
		}
	}
	d.nextHash++
	h := d.nextHash
	d.nsByHash[h] = uri
	return h
}

// NamespaceURI resolves a hash back to its URI.
func (d *Document) NamespaceURI(hash uint32) (string, bool) {
	if hash == 0 {
		return "", false
	}
	u, ok := d.nsByHash[hash]
	return u, ok
}

// Map lazily builds (or rebuilds, if stale) the ID → Tag index.
func (d *Document) Map() map[int]*Tag {
	if d.byID != nil {
		return d.byID
	}
	d.byID = make(map[int]*Tag)
	var walk func(*Tag)
	walk = func(t *Tag) {
		d.byID[t.ID] = t
		for _, c := range t.Children {
			walk(c)
		}
	}
	for _, t := range d.Tags {
		walk(t)
	}
	return d.byID
}

// InvalidateMap marks the ID index stale; the next Map() call rebuilds
// it. Hosts call this after mutating the tree (e.g. via AppendTag).
func (d *Document) InvalidateMap() { d.byID = nil }

// AppendTag adds a newly constructed top-level Tag and invalidates the
// ID index, used only for constructor emission (spec §6.1).
func (d *Document) AppendTag(t *Tag) {
	d.Tags = append(d.Tags, t)
	d.InvalidateMap()
}

// ResolvePrefix walks the ancestor chain of tagID looking for an
// "xmlns[:prefix]" declaration, returning the bound namespace hash.
// This is a structural fallback for hosts that do not track namespace
// scope themselves; most hosts resolve prefixes as tags are built and
// never need this.
func (d *Document) ResolvePrefix(prefix string, tagID int) (uint32, bool) {
	m := d.Map()
	declName := "xmlns"
	if prefix != "" {
		declName = "xmlns:" + prefix
	}
	for id := tagID; id != 0; {
		t, ok := m[id]
		if !ok {
			break
		}
		if v, ok := t.Attr(declName); ok {
			return d.RegisterNamespace(v), true
		}
		id = t.Parent
	}
	return 0, false
}
