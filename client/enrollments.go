package client

import (
	"context"
	"fmt"
	"sync"

	"coursehub/permissions"
	"coursehub/reorder"
	"coursehub/tree"
)

// PortalAccess is one portal row of a user's enrollment editor.
type PortalAccess struct {
	PortalID   uint   `json:"portal_id"`
	PortalName string `json:"portal_name,omitempty"`
	Enabled    bool   `json:"enabled"`
	FullAccess bool   `json:"full_access"`
	ModuleIDs  []uint `json:"module_ids"`
}

func (c *Client) Enrollments(ctx context.Context, userID uint) ([]PortalAccess, error) {
	var out struct {
		Portals []PortalAccess `json:"portals"`
	}
	if err := c.do(ctx, "GET", fmt.Sprintf("/admin/users/%d/enrollments", userID), nil, &out); err != nil {
		return nil, err
	}
	return out.Portals, nil
}

// SaveEnrollments replaces the user's access with rows in one request.
func (c *Client) SaveEnrollments(ctx context.Context, userID uint, rows []PortalAccess) error {
	return c.do(ctx, "PUT", fmt.Sprintf("/admin/users/%d/enrollments", userID), map[string]interface{}{"portals": rows}, nil)
}

// EnrollmentEditor holds a user's access state between load and save. Every
// edit goes through permissions.Reduce.
type EnrollmentEditor struct {
	api    *Client
	userID uint

	mu      sync.Mutex
	names   map[uint]string
	state   permissions.State
	forests map[uint][]*tree.Node[reorder.Item]
}

func (c *Client) EnrollmentEditor(ctx context.Context, userID uint) (*EnrollmentEditor, error) {
	e := &EnrollmentEditor{api: c, userID: userID, forests: map[uint][]*tree.Node[reorder.Item]{}}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload discards local edits and reads the stored access.
func (e *EnrollmentEditor) Reload(ctx context.Context) error {
	rows, err := e.api.Enrollments(ctx, e.userID)
	if err != nil {
		return err
	}
	portalIDs := make([]uint, 0, len(rows))
	names := make(map[uint]string, len(rows))
	var records []permissions.Record
	for _, r := range rows {
		portalIDs = append(portalIDs, r.PortalID)
		names[r.PortalID] = r.PortalName
		if r.Enabled {
			records = append(records, permissions.Record{PortalID: r.PortalID, FullAccess: r.FullAccess, ModuleIDs: r.ModuleIDs})
		}
	}
	state := permissions.FromRecords(portalIDs, records)

	e.mu.Lock()
	e.names = names
	e.state = state
	e.mu.Unlock()
	return nil
}

// State returns the current state. Callers must not modify it.
func (e *EnrollmentEditor) State() permissions.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// PortalName is the display name of portalID as last loaded.
func (e *EnrollmentEditor) PortalName(portalID uint) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.names[portalID]
}

// Dispatch applies a to the local state.
func (e *EnrollmentEditor) Dispatch(a permissions.Action) permissions.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = permissions.Reduce(e.state, a)
	return e.state
}

// ToggleSubtree selects or clears moduleID with all of its descendants.
// The portal's module outline is loaded on first use.
func (e *EnrollmentEditor) ToggleSubtree(ctx context.Context, portalID, moduleID uint) (permissions.State, error) {
	e.mu.Lock()
	forest, ok := e.forests[portalID]
	e.mu.Unlock()

	if !ok {
		items, err := e.api.ModuleStore(portalID).Load(ctx)
		if err != nil {
			return nil, err
		}
		records := make([]tree.Record[reorder.Item], len(items))
		for i, it := range items {
			var parent *uint
			if it.Parent != reorder.Root {
				p := it.Parent
				parent = &p
			}
			records[i] = tree.Record[reorder.Item]{ID: it.ID, ParentID: parent, Ordinal: it.Ordinal, Value: it}
		}
		forest = tree.Build(records)
		e.mu.Lock()
		e.forests[portalID] = forest
		e.mu.Unlock()
	}

	return e.Dispatch(permissions.SubtreeAction(portalID, forest, moduleID)), nil
}

// Save writes the whole state in one request. On failure the local state is
// kept so the edit can be retried.
func (e *EnrollmentEditor) Save(ctx context.Context) error {
	e.mu.Lock()
	state := e.state
	rows := make([]PortalAccess, 0, len(state))
	for _, portalID := range state.Portals() {
		rec := permissions.RecordFor(portalID, state[portalID])
		rows = append(rows, PortalAccess{
			PortalID:   portalID,
			Enabled:    state[portalID].Enabled,
			FullAccess: rec.FullAccess,
			ModuleIDs:  rec.ModuleIDs,
		})
	}
	e.mu.Unlock()

	return e.api.SaveEnrollments(ctx, e.userID, rows)
}
