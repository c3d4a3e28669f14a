package arena

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/parasol-framework/xpathql/value"
)

func TestNodeItemsReusesFreedBuffer(t *testing.T) {
	a := New()
	buf := a.NodeItems(4)
	buf = append(buf, value.NodeItem{})
	a.PutNodeItems(buf)

	got := a.NodeItems(2)
	assert.Equal(t, 0, len(got))
	assert.GreaterOrEqual(t, cap(got), 4)
}

func TestNodeItemsAllocatesWhenNoBufferFits(t *testing.T) {
	a := New()
	got := a.NodeItems(8)
	assert.Equal(t, 0, len(got))
	assert.GreaterOrEqual(t, cap(got), 8)
}

func TestPutNodeItemsIgnoresZeroCapBuffer(t *testing.T) {
	a := New()
	a.PutNodeItems(nil)
	assert.Empty(t, a.nodeItems)
}

func TestValuesRoundTrip(t *testing.T) {
	a := New()
	buf := a.Values(4)
	buf = append(buf, value.FromNumber(1))
	a.PutValues(buf)

	got := a.Values(4)
	assert.Equal(t, 0, len(got))
	assert.GreaterOrEqual(t, cap(got), 4)
}

func TestResetDropsCheckedInBuffers(t *testing.T) {
	a := New()
	a.PutNodeItems(make([]value.NodeItem, 0, 4))
	a.PutValues(make([]value.Value, 0, 4))
	a.Reset()
	assert.Empty(t, a.nodeItems)
	assert.Empty(t, a.values)
}

func TestGetPutRoundTripsThroughPool(t *testing.T) {
	a := Get()
	a.PutNodeItems(make([]value.NodeItem, 0, 4))
	Put(a)

	a2 := Get()
	assert.Empty(t, a2.nodeItems, "Put must Reset before returning to the pool")
}
