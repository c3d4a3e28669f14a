package ast

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewNodeAttachesChildrenInOrder(t *testing.T) {
	a := NewNode(Literal, "a")
	b := NewNode(Literal, "b")
	n := NewNode(Path, "", a, b)
	assert.Equal(t, Path, n.Kind)
	assert.Equal(t, []*Node{a, b}, n.Children)
}
