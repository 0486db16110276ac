// Package permissions holds the per-portal access state edited for one user
// and the batched save that turns it into enrollment records.
package permissions

import (
	"sort"

	"coursehub/tree"
)

// PortalAccess is the editable access of one user to one portal.
// FullAccess and a non-empty ModuleIDs set are never held together.
type PortalAccess struct {
	Enabled    bool
	FullAccess bool
	ModuleIDs  map[uint]struct{}
}

// Modules returns the selected module ids in ascending order.
func (a PortalAccess) Modules() []uint {
	out := make([]uint, 0, len(a.ModuleIDs))
	for id := range a.ModuleIDs {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Selected reports whether moduleID is in the explicit selection.
func (a PortalAccess) Selected(moduleID uint) bool {
	_, ok := a.ModuleIDs[moduleID]
	return ok
}

func (a PortalAccess) clone() PortalAccess {
	ids := make(map[uint]struct{}, len(a.ModuleIDs))
	for id := range a.ModuleIDs {
		ids[id] = struct{}{}
	}
	a.ModuleIDs = ids
	return a
}

// State maps portal id to access.
type State map[uint]PortalAccess

// Portals returns the portal ids in ascending order.
func (s State) Portals() []uint {
	out := make([]uint, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s State) clone() State {
	out := make(State, len(s))
	for id, a := range s {
		out[id] = a.clone()
	}
	return out
}

// ActionKind selects the transition Reduce applies.
type ActionKind int

const (
	// TogglePortal enables or disables a portal. Disabling clears its selection.
	TogglePortal ActionKind = iota
	// SetFullAccess sets full access and clears the explicit module selection.
	SetFullAccess
	// ToggleModule flips a single module.
	ToggleModule
	// ToggleSubtree selects a module with its descendants, or removes them all when already fully selected.
	ToggleSubtree
)

// Action is one transition. Subtree carries the clicked module followed by all
// of its descendants; SubtreeAction builds it from a module forest.
type Action struct {
	Kind       ActionKind
	PortalID   uint
	ModuleID   uint
	FullAccess bool
	Subtree    []uint
}

// SubtreeAction returns the ToggleSubtree action for moduleID.
func SubtreeAction[T any](portalID uint, forest []*tree.Node[T], moduleID uint) Action {
	closure := tree.Descendants(forest, moduleID)
	if len(closure) == 0 {
		closure = []uint{moduleID}
	}
	return Action{Kind: ToggleSubtree, PortalID: portalID, ModuleID: moduleID, Subtree: closure}
}

// Reduce returns the state after a. The input state is not modified.
func Reduce(s State, a Action) State {
	next := s.clone()
	cur := next[a.PortalID]
	if cur.ModuleIDs == nil {
		cur.ModuleIDs = map[uint]struct{}{}
	}

	switch a.Kind {
	case TogglePortal:
		cur.Enabled = !cur.Enabled
		if !cur.Enabled {
			cur.FullAccess = false
			cur.ModuleIDs = map[uint]struct{}{}
		}
	case SetFullAccess:
		cur.FullAccess = a.FullAccess
		cur.ModuleIDs = map[uint]struct{}{}
		if a.FullAccess {
			cur.Enabled = true
		}
	case ToggleModule:
		if cur.Selected(a.ModuleID) {
			delete(cur.ModuleIDs, a.ModuleID)
		} else {
			cur.ModuleIDs[a.ModuleID] = struct{}{}
		}
		cur.FullAccess = false
		cur.Enabled = true
	case ToggleSubtree:
		// a partially selected subtree always expands to fully selected
		all := len(a.Subtree) > 0
		for _, id := range a.Subtree {
			if !cur.Selected(id) {
				all = false
				break
			}
		}
		for _, id := range a.Subtree {
			if all {
				delete(cur.ModuleIDs, id)
			} else {
				cur.ModuleIDs[id] = struct{}{}
			}
		}
		cur.FullAccess = false
		cur.Enabled = true
	}

	next[a.PortalID] = cur
	return next
}
