package client

import (
	"context"
	"fmt"

	"coursehub/reorder"
)

type moduleRow struct {
	ID         uint  `json:"id"`
	ParentID   *uint `json:"parent_id"`
	OrderIndex int   `json:"order_index"`
}

type lessonRow struct {
	ID         uint `json:"id"`
	ModuleID   uint `json:"module_id"`
	OrderIndex int  `json:"order_index"`
}

// outlineNode mirrors one node of GET /admin/portal/:id/tree.
type outlineNode struct {
	ID    uint `json:"id"`
	Value struct {
		Lessons []lessonRow `json:"lessons"`
	} `json:"value"`
	Children []outlineNode `json:"children"`
}

// ModuleStore loads and saves the module outline of a portal. It backs a reorder.Coordinator.
type ModuleStore struct {
	api      *Client
	portalID uint
}

func (c *Client) ModuleStore(portalID uint) *ModuleStore {
	return &ModuleStore{api: c, portalID: portalID}
}

func (s *ModuleStore) Load(ctx context.Context) ([]reorder.Item, error) {
	var out struct {
		Modules []moduleRow `json:"modules"`
	}
	if err := s.api.do(ctx, "GET", fmt.Sprintf("/admin/portal/%d/modules", s.portalID), nil, &out); err != nil {
		return nil, err
	}
	items := make([]reorder.Item, len(out.Modules))
	for i, m := range out.Modules {
		parent := reorder.Root
		if m.ParentID != nil {
			parent = *m.ParentID
		}
		items[i] = reorder.Item{ID: m.ID, Parent: parent, Ordinal: m.OrderIndex}
	}
	return items, nil
}

// Save sends the plan as one batch; the server applies it atomically.
func (s *ModuleStore) Save(ctx context.Context, plan reorder.Plan) error {
	return s.api.do(ctx, "PUT", fmt.Sprintf("/admin/portal/%d/modules/order", s.portalID), plan, nil)
}

// LessonStore loads and saves lesson order across every module of a portal.
type LessonStore struct {
	api      *Client
	portalID uint
}

func (c *Client) LessonStore(portalID uint) *LessonStore {
	return &LessonStore{api: c, portalID: portalID}
}

func (s *LessonStore) Load(ctx context.Context) ([]reorder.Item, error) {
	var out struct {
		Tree []outlineNode `json:"tree"`
	}
	if err := s.api.do(ctx, "GET", fmt.Sprintf("/admin/portal/%d/tree", s.portalID), nil, &out); err != nil {
		return nil, err
	}
	var items []reorder.Item
	var walk func(nodes []outlineNode)
	walk = func(nodes []outlineNode) {
		for _, n := range nodes {
			for _, l := range n.Value.Lessons {
				items = append(items, reorder.Item{ID: l.ID, Parent: l.ModuleID, Ordinal: l.OrderIndex})
			}
			walk(n.Children)
		}
	}
	walk(out.Tree)
	return items, nil
}

func (s *LessonStore) Save(ctx context.Context, plan reorder.Plan) error {
	return s.api.do(ctx, "PUT", fmt.Sprintf("/admin/portal/%d/lessons/order", s.portalID), plan, nil)
}

// ModuleCoordinator loads a portal's modules into a coordinator limited to maxDepth levels.
func (c *Client) ModuleCoordinator(ctx context.Context, portalID uint, maxDepth int) (*reorder.Coordinator, error) {
	return reorder.NewCoordinator(ctx, c.ModuleStore(portalID), reorder.Options{Nested: true, MaxDepth: maxDepth})
}

// LessonCoordinator loads a portal's lessons into a coordinator. Containers are modules.
func (c *Client) LessonCoordinator(ctx context.Context, portalID uint) (*reorder.Coordinator, error) {
	return reorder.NewCoordinator(ctx, c.LessonStore(portalID), reorder.Options{})
}
