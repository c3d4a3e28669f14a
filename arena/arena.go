// Package arena implements the per-evaluation scratch-buffer pool (spec
// §4.G). The engine checks one Arena out for each Evaluate/FindTag call,
// attaches it to the evaluation context and returns it when the call
// finishes; the evaluator's path and predicate steps allocate their own
// slices and do not draw buffers from it.
package arena

import (
	"sync"

	"github.com/parasol-framework/xpathql/value"
)

// Arena is a single evaluation's scratch pool. It is not safe for
// concurrent use — one Arena belongs to one evaluation of one query,
// matching the evaluator's single-goroutine context-stack model (spec
// §4.J).
type Arena struct {
	nodeItems [][]value.NodeItem
	values    [][]value.Value
}

// New returns an empty Arena.
func New() *Arena { return &Arena{} }

// NodeItems checks out a zero-length []value.NodeItem with at least the
// requested capacity, reusing a freed buffer when one is large enough.
func (a *Arena) NodeItems(capHint int) []value.NodeItem {
	for i, buf := range a.nodeItems {
		if cap(buf) >= capHint {
			a.nodeItems[i] = a.nodeItems[len(a.nodeItems)-1]
			a.nodeItems = a.nodeItems[:len(a.nodeItems)-1]
			return buf[:0]
		}
	}
	return make([]value.NodeItem, 0, capHint)
}

// PutNodeItems returns a buffer to the pool for reuse.
func (a *Arena) PutNodeItems(buf []value.NodeItem) {
	if cap(buf) == 0 {
		return
	}
	a.nodeItems = append(a.nodeItems, buf[:0])
}

// Values checks out a zero-length []value.Value with at least the
// requested capacity.
func (a *Arena) Values(capHint int) []value.Value {
	for i, buf := range a.values {
		if cap(buf) >= capHint {
			a.values[i] = a.values[len(a.values)-1]
			a.values = a.values[:len(a.values)-1]
			return buf[:0]
		}
	}
	return make([]value.Value, 0, capHint)
}

// PutValues returns a buffer to the pool for reuse.
func (a *Arena) PutValues(buf []value.Value) {
	if cap(buf) == 0 {
		return
	}
	a.values = append(a.values, buf[:0])
}

// Reset drops every checked-in buffer, called between independent
// top-level evaluations that share a pool but must not leak state.
func (a *Arena) Reset() {
	a.nodeItems = a.nodeItems[:0]
	a.values = a.values[:0]
}

// pool recycles Arenas themselves across independent Evaluate calls on
// the same Engine, amortising the slice-of-slices bookkeeping too.
var pool = sync.Pool{New: func() interface{} { return New() }}

// Get checks out an Arena from the shared pool.
func Get() *Arena { return pool.Get().(*Arena) }

// Put resets and returns an Arena to the shared pool.
func Put(a *Arena) {
	a.Reset()
	pool.Put(a)
}
