// Package reorder computes ordinal changes for drag-and-drop moves between sibling lists.
package reorder

import (
	"errors"
	"sort"
)

var (
	ErrUnknownItem = errors.New("reorder: unknown item")
	ErrCycle       = errors.New("reorder: move would place an item inside itself")
	ErrTooDeep     = errors.New("reorder: move exceeds maximum nesting depth")
)

// Root is the parent key of the top-level list.
const Root uint = 0

// Item is one entry of a sibling list.
type Item struct {
	ID      uint `json:"id"`
	Parent  uint `json:"parent_id"`
	Ordinal int  `json:"order_index"`
}

// Position is a persisted (id, ordinal) pair.
type Position struct {
	ID      uint `json:"id"`
	Ordinal int  `json:"order_index"`
}

// Reparent moves an item from one parent to another.
type Reparent struct {
	ID   uint `json:"id"`
	From uint `json:"from"`
	To   uint `json:"to"`
}

// Plan is the batched write produced by a drop.
type Plan struct {
	Reparent  *Reparent  `json:"reparent,omitempty"`
	Positions []Position `json:"positions"`
}

// Empty reports whether the plan changes nothing.
func (p Plan) Empty() bool { return p.Reparent == nil && len(p.Positions) == 0 }

// Drop is the outcome of a drag gesture. When OverIsContainer is set, OverID names
// the destination parent itself and the item goes to the end of its list.
type Drop struct {
	ActiveID        uint `json:"active_id"`
	OverID          uint `json:"over_id"`
	OverIsContainer bool `json:"over_is_container"`
}

// Options configure a board.
//
// Nested marks boards whose parents are items of the same board (modules inside
// modules). Only nested boards check cycles and MaxDepth; zero MaxDepth disables
// the depth check.
type Options struct {
	Nested   bool
	MaxDepth int
}

// Board is the local projection of every sibling list, keyed by parent id.
type Board struct {
	opts     Options
	lists    map[uint][]Item
	parentOf map[uint]uint
}

// NewBoard groups items by parent and sorts each list by ordinal.
func NewBoard(items []Item, opts Options) *Board {
	b := &Board{
		opts:     opts,
		lists:    make(map[uint][]Item),
		parentOf: make(map[uint]uint, len(items)),
	}
	for _, it := range items {
		b.lists[it.Parent] = append(b.lists[it.Parent], it)
		b.parentOf[it.ID] = it.Parent
	}
	for parent := range b.lists {
		b.sortList(parent)
	}
	return b
}

func (b *Board) sortList(parent uint) {
	list := b.lists[parent]
	sort.SliceStable(list, func(i, j int) bool { return list[i].Ordinal < list[j].Ordinal })
}

// List returns a copy of the sibling list under parent in display order.
func (b *Board) List(parent uint) []Item {
	return append([]Item(nil), b.lists[parent]...)
}

// Items returns every item, list by list.
func (b *Board) Items() []Item {
	parents := make([]uint, 0, len(b.lists))
	for p := range b.lists {
		parents = append(parents, p)
	}
	sort.Slice(parents, func(i, j int) bool { return parents[i] < parents[j] })
	out := make([]Item, 0, len(b.parentOf))
	for _, p := range parents {
		out = append(out, b.lists[p]...)
	}
	return out
}

// ParentOf returns the parent of id.
func (b *Board) ParentOf(id uint) (uint, bool) {
	p, ok := b.parentOf[id]
	return p, ok
}

func indexOf(list []Item, id uint) int {
	for i, it := range list {
		if it.ID == id {
			return i
		}
	}
	return -1
}

// Plan computes the writes for a drop without changing the board.
func (b *Board) Plan(d Drop) (Plan, error) {
	src, ok := b.parentOf[d.ActiveID]
	if !ok {
		return Plan{}, ErrUnknownItem
	}
	if d.ActiveID == d.OverID && !d.OverIsContainer {
		return Plan{}, nil
	}

	var dst uint
	target := -1
	if d.OverIsContainer {
		dst = d.OverID
		if b.opts.Nested && dst != Root {
			if _, known := b.parentOf[dst]; !known {
				return Plan{}, ErrUnknownItem
			}
		}
	} else {
		dst, ok = b.parentOf[d.OverID]
		if !ok {
			return Plan{}, ErrUnknownItem
		}
		target = indexOf(b.lists[dst], d.OverID)
	}

	if dst == src {
		list := b.List(src)
		from := indexOf(list, d.ActiveID)
		to := target
		if to < 0 {
			to = len(list) - 1
		}
		if from == to {
			return Plan{}, nil
		}
		return Plan{Positions: changed(move(list, from, to))}, nil
	}

	if err := b.checkNesting(d.ActiveID, dst); err != nil {
		return Plan{}, err
	}

	srcList := b.List(src)
	moving := srcList[indexOf(srcList, d.ActiveID)]
	dstList := b.List(dst)
	if target < 0 {
		target = len(dstList)
	}
	dstList = append(dstList[:target], append([]Item{moving}, dstList[target:]...)...)

	positions := changed(dstList)
	if !containsPosition(positions, d.ActiveID) {
		positions = append(positions, Position{ID: d.ActiveID, Ordinal: target})
	}
	return Plan{
		Reparent:  &Reparent{ID: d.ActiveID, From: src, To: dst},
		Positions: positions,
	}, nil
}

func containsPosition(ps []Position, id uint) bool {
	for _, p := range ps {
		if p.ID == id {
			return true
		}
	}
	return false
}

// move is array-move semantics: items between from and to shift by one.
func move(list []Item, from, to int) []Item {
	it := list[from]
	out := append(list[:from:from], list[from+1:]...)
	out = append(out[:to:to], append([]Item{it}, out[to:]...)...)
	return out
}

// changed assigns ordinal = index and returns the pairs that differ from what was stored.
func changed(list []Item) []Position {
	var out []Position
	for i, it := range list {
		if it.Ordinal != i {
			out = append(out, Position{ID: it.ID, Ordinal: i})
		}
	}
	return out
}

func (b *Board) checkNesting(id, newParent uint) error {
	if !b.opts.Nested {
		return nil
	}
	for p := newParent; p != Root; {
		if p == id {
			return ErrCycle
		}
		next, ok := b.parentOf[p]
		if !ok {
			break
		}
		p = next
	}
	if b.opts.MaxDepth > 0 && b.depth(newParent)+b.height(id) > b.opts.MaxDepth {
		return ErrTooDeep
	}
	return nil
}

func (b *Board) depth(id uint) int {
	d := 0
	for p := id; p != Root; {
		d++
		next, ok := b.parentOf[p]
		if !ok || d > len(b.parentOf) {
			break
		}
		p = next
	}
	return d
}

func (b *Board) height(id uint) int {
	h := 0
	for _, child := range b.lists[id] {
		if ch := b.height(child.ID); ch > h {
			h = ch
		}
	}
	return h + 1
}

// Validate checks a plan computed elsewhere against this board.
func (b *Board) Validate(p Plan) error {
	if p.Reparent != nil {
		from, ok := b.parentOf[p.Reparent.ID]
		if !ok {
			return ErrUnknownItem
		}
		if b.opts.Nested && p.Reparent.To != Root {
			if _, known := b.parentOf[p.Reparent.To]; !known {
				return ErrUnknownItem
			}
		}
		if from != p.Reparent.To {
			if err := b.checkNesting(p.Reparent.ID, p.Reparent.To); err != nil {
				return err
			}
		}
	}
	for _, pos := range p.Positions {
		if _, ok := b.parentOf[pos.ID]; !ok {
			return ErrUnknownItem
		}
	}
	return nil
}

// Apply writes a plan into the board.
func (b *Board) Apply(p Plan) {
	touched := map[uint]bool{}
	if r := p.Reparent; r != nil {
		if from, ok := b.parentOf[r.ID]; ok {
			list := b.lists[from]
			if i := indexOf(list, r.ID); i >= 0 {
				it := list[i]
				b.lists[from] = append(list[:i:i], list[i+1:]...)
				it.Parent = r.To
				b.lists[r.To] = append(b.lists[r.To], it)
				b.parentOf[r.ID] = r.To
				touched[from], touched[r.To] = true, true
			}
		}
	}
	for _, pos := range p.Positions {
		parent, ok := b.parentOf[pos.ID]
		if !ok {
			continue
		}
		list := b.lists[parent]
		if i := indexOf(list, pos.ID); i >= 0 {
			list[i].Ordinal = pos.Ordinal
			touched[parent] = true
		}
	}
	for parent := range touched {
		b.sortList(parent)
	}
}
