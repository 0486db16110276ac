package syncclient

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"coursehub/logger"
	"coursehub/realtime"
)

// DefaultPollInterval is the fallback refresh period when no interval is configured.
const DefaultPollInterval = 15 * time.Second

// Entry is one row of a live list. Pending entries were sent by this client and
// are not confirmed yet; they carry a temporary id and ID is zero.
type Entry[T any] struct {
	ID     uint
	TempID string
	Item   T
}

// Pending reports whether the entry is a provisional row still waiting for its confirmation.
func (e Entry[T]) Pending() bool { return e.TempID != "" }

// Options configures a LiveList.
type Options[T any] struct {
	// Fetch returns the authoritative list, joined fields included.
	Fetch func(ctx context.Context) ([]T, error)
	// ID extracts the primary key of a confirmed item.
	ID           func(T) uint
	PollInterval time.Duration
	Log          *logger.Logger
}

// LiveList mirrors a server-side list. Inserts and updates trigger a full
// re-fetch, deletes remove locally, and a poll ticker covers missed events.
type LiveList[T any] struct {
	fetch    func(ctx context.Context) ([]T, error)
	id       func(T) uint
	interval time.Duration
	log      *logger.Logger

	mu      sync.Mutex
	entries []Entry[T]

	obsMu     sync.Mutex
	observers map[int]func([]Entry[T])
	nextObs   int
}

// NewLiveList returns an empty list; call Refresh or Run to load it.
func NewLiveList[T any](opts Options[T]) (*LiveList[T], error) {
	if opts.Fetch == nil || opts.ID == nil {
		return nil, errors.New("syncclient: Fetch and ID are required")
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &LiveList[T]{
		fetch:     opts.Fetch,
		id:        opts.ID,
		interval:  opts.PollInterval,
		log:       opts.Log,
		observers: map[int]func([]Entry[T]){},
	}, nil
}

// Snapshot returns a copy of the current entries, confirmed rows first in
// fetch order followed by pending rows in send order.
func (l *LiveList[T]) Snapshot() []Entry[T] {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Items returns the current items without their bookkeeping.
func (l *LiveList[T]) Items() []T {
	snap := l.Snapshot()
	out := make([]T, len(snap))
	for i, e := range snap {
		out[i] = e.Item
	}
	return out
}

func (l *LiveList[T]) snapshotLocked() []Entry[T] {
	out := make([]Entry[T], len(l.entries))
	copy(out, l.entries)
	return out
}

// Subscribe registers fn for every change of the list. The returned func removes it.
func (l *LiveList[T]) Subscribe(fn func([]Entry[T])) func() {
	l.obsMu.Lock()
	id := l.nextObs
	l.nextObs++
	l.observers[id] = fn
	l.obsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.obsMu.Lock()
			delete(l.observers, id)
			l.obsMu.Unlock()
		})
	}
}

func (l *LiveList[T]) notify(snap []Entry[T]) {
	l.obsMu.Lock()
	fns := make([]func([]Entry[T]), 0, len(l.observers))
	for _, fn := range l.observers {
		fns = append(fns, fn)
	}
	l.obsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Refresh replaces the confirmed rows with a fresh fetch. Pending rows are kept.
func (l *LiveList[T]) Refresh(ctx context.Context) error {
	items, err := l.fetch(ctx)
	if err != nil {
		return err
	}

	l.mu.Lock()
	next := make([]Entry[T], 0, len(items)+len(l.entries))
	for _, it := range items {
		next = append(next, Entry[T]{ID: l.id(it), Item: it})
	}
	for _, e := range l.entries {
		if e.Pending() {
			next = append(next, e)
		}
	}
	l.entries = next
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snap)
	return nil
}

// Remove drops the confirmed row with id. Removing an absent id is a no-op.
func (l *LiveList[T]) Remove(id uint) bool {
	l.mu.Lock()
	idx := -1
	for i, e := range l.entries {
		if !e.Pending() && e.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return false
	}
	l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	snap := l.snapshotLocked()
	l.mu.Unlock()

	l.notify(snap)
	return true
}

// Apply merges one change event into the list.
func (l *LiveList[T]) Apply(ctx context.Context, ch realtime.Change) error {
	switch ch.Type {
	case realtime.Insert, realtime.Update:
		return l.Refresh(ctx)
	case realtime.Delete:
		if id, ok := ch.ID(); ok {
			l.Remove(id)
		}
	}
	return nil
}

// Send shows provisional at the end of the list while submit runs. On success
// the provisional row becomes the confirmed item in place, or disappears when a
// refresh already brought the confirmed item in. On failure it is removed and
// the error returned.
func (l *LiveList[T]) Send(ctx context.Context, provisional T, submit func(ctx context.Context) (T, error)) (T, error) {
	tempID := "temp-" + uuid.NewString()

	l.mu.Lock()
	l.entries = append(l.entries, Entry[T]{TempID: tempID, Item: provisional})
	snap := l.snapshotLocked()
	l.mu.Unlock()
	l.notify(snap)

	confirmed, err := submit(ctx)

	l.mu.Lock()
	idx := -1
	for i, e := range l.entries {
		if e.TempID == tempID {
			idx = i
			break
		}
	}
	if err != nil {
		if idx >= 0 {
			l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
		}
		snap = l.snapshotLocked()
		l.mu.Unlock()
		l.notify(snap)
		var zero T
		return zero, err
	}

	id := l.id(confirmed)
	present := false
	for _, e := range l.entries {
		if !e.Pending() && e.ID == id {
			present = true
			break
		}
	}
	switch {
	case idx < 0:
	case present:
		l.entries = append(l.entries[:idx], l.entries[idx+1:]...)
	default:
		l.entries[idx] = Entry[T]{ID: id, Item: confirmed}
	}
	snap = l.snapshotLocked()
	l.mu.Unlock()
	l.notify(snap)
	return confirmed, nil
}

// Run loads the list, then applies changes and polls until ctx is done.
// A nil changes channel leaves polling as the only source.
func (l *LiveList[T]) Run(ctx context.Context, changes <-chan realtime.Change) error {
	if err := l.Refresh(ctx); err != nil {
		l.log.Warn("initial fetch failed", "error", err)
	}

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := l.Refresh(ctx); err != nil {
				l.log.Warn("poll refresh failed", "error", err)
			}
		case ch, ok := <-changes:
			if !ok {
				changes = nil
				continue
			}
			if err := l.Apply(ctx, ch); err != nil {
				l.log.Warn("apply change failed", "table", ch.Table, "type", ch.Type, "error", err)
			}
		}
	}
}
