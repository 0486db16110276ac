package reorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Store persists plans and reads the authoritative item list back.
type Store interface {
	Load(ctx context.Context) ([]Item, error)
	Save(ctx context.Context, plan Plan) error
}

// Coordinator applies drops to a local board before the write is confirmed.
// A failed write is recovered by reloading the whole board from the store.
type Coordinator struct {
	mu    sync.Mutex
	opts  Options
	board *Board
	store Store
}

// NewCoordinator loads the initial board from store.
func NewCoordinator(ctx context.Context, store Store, opts Options) (*Coordinator, error) {
	c := &Coordinator{opts: opts, store: store}
	if err := c.Reload(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload replaces the local board with the store's current list.
func (c *Coordinator) Reload(ctx context.Context) error {
	items, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("reorder: load: %w", err)
	}
	board := NewBoard(items, c.opts)
	c.mu.Lock()
	c.board = board
	c.mu.Unlock()
	return nil
}

// List returns the current local sibling list under parent.
func (c *Coordinator) List(parent uint) []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.List(parent)
}

// Items returns every local item.
func (c *Coordinator) Items() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.board.Items()
}

// Drop plans the move, applies it locally and persists it. Nothing is retried.
func (c *Coordinator) Drop(ctx context.Context, d Drop) (Plan, error) {
	c.mu.Lock()
	plan, err := c.board.Plan(d)
	if err != nil || plan.Empty() {
		c.mu.Unlock()
		return plan, err
	}
	c.board.Apply(plan)
	c.mu.Unlock()

	if err := c.store.Save(ctx, plan); err != nil {
		saveErr := fmt.Errorf("reorder: save: %w", err)
		if reloadErr := c.Reload(ctx); reloadErr != nil {
			return plan, errors.Join(saveErr, reloadErr)
		}
		return plan, saveErr
	}
	return plan, nil
}
