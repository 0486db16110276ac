package permissions

import (
	"context"
	"fmt"
)

// Record is the persisted form of one enabled portal.
type Record struct {
	PortalID   uint   `json:"portal_id"`
	FullAccess bool   `json:"full_access"`
	ModuleIDs  []uint `json:"module_ids"`
}

// Store writes enrollment records for one user.
type Store interface {
	DeleteEnrollment(ctx context.Context, userID, portalID uint) error
	UpsertEnrollment(ctx context.Context, userID uint, rec Record) error
}

// RecordFor converts one portal's access into what gets stored.
// Full access always persists an empty module list.
func RecordFor(portalID uint, a PortalAccess) Record {
	rec := Record{PortalID: portalID, FullAccess: a.FullAccess, ModuleIDs: []uint{}}
	if !a.FullAccess {
		rec.ModuleIDs = a.Modules()
	}
	return rec
}

// FromRecords builds the editor state from stored enrollments. Every stored
// record is an enabled portal; portals without a record are disabled.
func FromRecords(portalIDs []uint, recs []Record) State {
	s := make(State, len(portalIDs))
	for _, id := range portalIDs {
		s[id] = PortalAccess{ModuleIDs: map[uint]struct{}{}}
	}
	for _, r := range recs {
		a := PortalAccess{Enabled: true, FullAccess: r.FullAccess, ModuleIDs: map[uint]struct{}{}}
		if !r.FullAccess {
			for _, m := range r.ModuleIDs {
				a.ModuleIDs[m] = struct{}{}
			}
		}
		s[r.PortalID] = a
	}
	return s
}

// Save deletes the enrollment of every disabled portal and upserts every
// enabled one. It stops at the first failing write.
func Save(ctx context.Context, userID uint, s State, store Store) error {
	for _, portalID := range s.Portals() {
		a := s[portalID]
		if !a.Enabled {
			if err := store.DeleteEnrollment(ctx, userID, portalID); err != nil {
				return fmt.Errorf("permissions: delete portal %d: %w", portalID, err)
			}
			continue
		}
		if err := store.UpsertEnrollment(ctx, userID, RecordFor(portalID, a)); err != nil {
			return fmt.Errorf("permissions: upsert portal %d: %w", portalID, err)
		}
	}
	return nil
}
