package shared

import (
	"github.com/vsinha/mbom/pkg/domain/entities"
)

// Path is the chain of products currently being resolved, root first.
// It is immutable: Push returns a new path sharing the parent's nodes, so a
// sibling branch never sees products pushed by another branch.
type Path struct {
	head  *pathNode
	depth int
}

type pathNode struct {
	id     entities.ProductID
	parent *pathNode
}

// Push returns the path extended with id
func (p Path) Push(id entities.ProductID) Path {
	return Path{head: &pathNode{id: id, parent: p.head}, depth: p.depth + 1}
}

// Contains reports whether id is on the path
func (p Path) Contains(id entities.ProductID) bool {
	for n := p.head; n != nil; n = n.parent {
		if n.id == id {
			return true
		}
	}
	return false
}

// Depth returns the number of products on the path
func (p Path) Depth() int {
	return p.depth
}

// IDs returns the products on the path, root first
func (p Path) IDs() []entities.ProductID {
	ids := make([]entities.ProductID, p.depth)
	i := p.depth - 1
	for n := p.head; n != nil; n = n.parent {
		ids[i] = n.id
		i--
	}
	return ids
}
