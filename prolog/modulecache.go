package prolog

import (
	"strings"
	"sync"

	"github.com/parasol-framework/xpathql/ast"
	"github.com/parasol-framework/xpathql/internal/depgraph"
)

// CompiledModule is a parsed and prolog-resolved library module, the
// unit the ModuleCache stores (spec §3.6).
type CompiledModule struct {
	Root   *ast.Node
	Prolog *Prolog
	URI    string
}

// ModuleCache is the process-wide map from normalised URI to compiled
// library query (spec §3.6). A module cache is attached to one
// xmltree.Document and shares its lifetime (spec §6.3).
type ModuleCache struct {
	mu      sync.RWMutex
	modules map[string]*CompiledModule
	loading *depgraph.InFlight
}

// NewModuleCache returns an empty cache.
func NewModuleCache() *ModuleCache {
	return &ModuleCache{
		modules: make(map[string]*CompiledModule),
		loading: depgraph.NewInFlight(),
	}
}

// NormalizeURI converts backslashes to forward slashes and strips a
// leading "file:" scheme, the key-normalisation rule of spec §6.3.
func NormalizeURI(uri string) string {
	u := strings.ReplaceAll(uri, "\\", "/")
	u = strings.TrimPrefix(u, "file:")
	return u
}

// Get returns the cached module for uri, if any.
func (c *ModuleCache) Get(uri string) (*CompiledModule, bool) {
	uri = NormalizeURI(uri)
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.modules[uri]
	return m, ok
}

// BeginLoad marks uri as currently loading, for cycle detection. It
// returns false if uri is already in the load chain (a circular
// import — XQDY0054).
func (c *ModuleCache) BeginLoad(uri string) bool {
	return c.loading.Enter(NormalizeURI(uri))
}

// EndLoad clears the in-flight marker for uri.
func (c *ModuleCache) EndLoad(uri string) {
	c.loading.Leave(NormalizeURI(uri))
}

// LoadChain returns the current load stack, for XQDY0054 messages.
func (c *ModuleCache) LoadChain() []string {
	return c.loading.Path()
}

// Store records a successfully compiled module, keyed by its
// normalised URI. Entries live until the cache itself is dropped.
func (c *ModuleCache) Store(uri string, m *CompiledModule) {
	uri = NormalizeURI(uri)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modules[uri] = m
}
