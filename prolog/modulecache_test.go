package prolog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModuleCacheIdentity(t *testing.T) {
	c := NewModuleCache()
	m := &CompiledModule{URI: "lib.xq", Prolog: New()}
	c.Store("lib.xq", m)

	got, ok := c.Get("lib.xq")
	require.True(t, ok)
	assert.Same(t, m, got)

	// A file: scheme prefix normalises to the same key (spec §6.3).
	got2, ok := c.Get(`file:lib.xq`)
	require.True(t, ok)
	assert.Same(t, m, got2)
}

func TestModuleCacheCycleDetection(t *testing.T) {
	c := NewModuleCache()
	require.True(t, c.BeginLoad("a.xq"))
	require.True(t, c.BeginLoad("b.xq"))
	assert.False(t, c.BeginLoad("a.xq"), "re-entering a.xq while it is loading must be rejected")
	c.EndLoad("b.xq")
	c.EndLoad("a.xq")
	assert.True(t, c.BeginLoad("a.xq"), "a.xq should be loadable again once the chain unwinds")
}
