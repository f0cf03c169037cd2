package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vsinha/mbom/pkg/domain/entities"
)

func TestPath_PushDoesNotLeakIntoSiblings(t *testing.T) {
	root := Path{}.Push(1)
	left := root.Push(2)
	right := root.Push(3)

	assert.True(t, left.Contains(1))
	assert.True(t, left.Contains(2))
	assert.False(t, left.Contains(3))

	assert.True(t, right.Contains(3))
	assert.False(t, right.Contains(2))

	assert.False(t, root.Contains(2))
	assert.Equal(t, 1, root.Depth())
	assert.Equal(t, 2, left.Depth())
}

func TestPath_IDs(t *testing.T) {
	var empty Path
	assert.Empty(t, empty.IDs())
	assert.False(t, empty.Contains(1))

	p := Path{}.Push(10).Push(20).Push(30)
	assert.Equal(t, []entities.ProductID{10, 20, 30}, p.IDs())
}
