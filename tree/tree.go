// Package tree turns flat parent-referencing records into a sorted forest.
package tree

import "sort"

// Record is one flat row: a self id, an optional parent id and a sibling ordinal.
type Record[T any] struct {
	ID       uint
	ParentID *uint
	Ordinal  int
	Value    T
}

// Node is a tree node with its materialized children.
type Node[T any] struct {
	ID       uint       `json:"id"`
	ParentID *uint      `json:"parent_id"`
	Ordinal  int        `json:"order_index"`
	Value    T          `json:"value"`
	Children []*Node[T] `json:"children"`
}

// Build assembles the forest in one forward pass over an id-to-node map.
// A record whose parent is not part of the input becomes a root.
// Duplicate ids are not validated: the last record wins.
func Build[T any](records []Record[T]) []*Node[T] {
	byID := make(map[uint]*Node[T], len(records))
	order := make([]uint, 0, len(records))
	for _, r := range records {
		if _, seen := byID[r.ID]; !seen {
			order = append(order, r.ID)
		}
		byID[r.ID] = &Node[T]{ID: r.ID, ParentID: r.ParentID, Ordinal: r.Ordinal, Value: r.Value}
	}

	roots := make([]*Node[T], 0)
	for _, id := range order {
		n := byID[id]
		if n.ParentID != nil && *n.ParentID != n.ID {
			if parent, ok := byID[*n.ParentID]; ok {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	sortForest(roots)
	return roots
}

func sortForest[T any](nodes []*Node[T]) {
	sort.SliceStable(nodes, func(i, j int) bool {
		return nodes[i].Ordinal < nodes[j].Ordinal
	})
	for _, n := range nodes {
		sortForest(n.Children)
	}
}

// Walk visits every node depth-first, parents before children. depth starts at 1.
// Returning false from fn skips the node's subtree.
func Walk[T any](forest []*Node[T], fn func(n *Node[T], depth int) bool) {
	var visit func(nodes []*Node[T], depth int)
	visit = func(nodes []*Node[T], depth int) {
		for _, n := range nodes {
			if fn(n, depth) {
				visit(n.Children, depth+1)
			}
		}
	}
	visit(forest, 1)
}

// Find returns the node with the given id, or nil.
func Find[T any](forest []*Node[T], id uint) *Node[T] {
	var found *Node[T]
	Walk(forest, func(n *Node[T], _ int) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// Descendants returns id followed by the ids of every node below it.
// The result is empty when id is not in the forest.
func Descendants[T any](forest []*Node[T], id uint) []uint {
	n := Find(forest, id)
	if n == nil {
		return nil
	}
	ids := []uint{n.ID}
	Walk(n.Children, func(c *Node[T], _ int) bool {
		ids = append(ids, c.ID)
		return true
	})
	return ids
}

// Height is the number of levels in the subtree rooted at n (a leaf has height 1).
func Height[T any](n *Node[T]) int {
	if n == nil {
		return 0
	}
	h := 0
	for _, c := range n.Children {
		if ch := Height(c); ch > h {
			h = ch
		}
	}
	return h + 1
}

// Depth returns the level of id (roots are at depth 1), or 0 when absent.
func Depth[T any](forest []*Node[T], id uint) int {
	depth := 0
	Walk(forest, func(n *Node[T], d int) bool {
		if depth != 0 {
			return false
		}
		if n.ID == id {
			depth = d
			return false
		}
		return true
	})
	return depth
}
