package client

import (
	"context"
	"sync"

	"coursehub/realtime"
)

// Subscriber opens realtime subscriptions. *syncclient.Conn implements it.
type Subscriber interface {
	Subscribe(ctx context.Context, table, event, filter string) (<-chan realtime.Change, func(), error)
}

// topic is one subscription feeding a list. Changes of a related table are
// turned into a refresh of the list instead of being applied by id.
type topic struct {
	table   string
	event   string
	filter  string
	related bool
}

// watch merges topics into one channel. The channel is closed when ctx is done
// or every subscription has ended. stop unsubscribes everything.
func watch(ctx context.Context, sub Subscriber, topics ...topic) (<-chan realtime.Change, func(), error) {
	out := make(chan realtime.Change, 16)
	var (
		unsubs []func()
		wg     sync.WaitGroup
	)
	stop := func() {
		for _, u := range unsubs {
			u()
		}
	}

	for _, t := range topics {
		changes, unsubscribe, err := sub.Subscribe(ctx, t.table, t.event, t.filter)
		if err != nil {
			stop()
			return nil, nil, err
		}
		unsubs = append(unsubs, unsubscribe)

		wg.Add(1)
		go func(t topic, changes <-chan realtime.Change) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ch, ok := <-changes:
					if !ok {
						return
					}
					if t.related {
						// the list row itself did not change, only something joined onto it
						ch = realtime.Change{Table: ch.Table, Type: realtime.Update, CommitTimestamp: ch.CommitTimestamp}
					}
					select {
					case out <- ch:
					case <-ctx.Done():
						return
					}
				}
			}
		}(t, changes)
	}

	go func() {
		wg.Wait()
		close(out)
	}()

	var once sync.Once
	return out, func() { once.Do(stop) }, nil
}
