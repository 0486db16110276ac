package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"coursehub/logger"
)

// Bus carries changes between API instances.
type Bus interface {
	Publish(ctx context.Context, ch Change) error
	StartForwarder(ctx context.Context, onMsg func(Change)) error
	Close() error
}

type redisBus struct {
	log     *logger.Logger
	rdb     *goredis.Client
	channel string
}

func NewRedisBus(log *logger.Logger, addr, channel string) (Bus, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	channel = strings.TrimSpace(channel)
	if channel == "" {
		channel = "coursehub:changes"
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &redisBus{
		log:     log.With("service", "RedisChangeBus"),
		rdb:     rdb,
		channel: channel,
	}, nil
}

func (b *redisBus) Publish(ctx context.Context, ch Change) error {
	raw, err := json.Marshal(ch)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *redisBus) StartForwarder(ctx context.Context, onMsg func(Change)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}

	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok || m == nil {
					return
				}
				var ch Change
				if err := json.Unmarshal([]byte(m.Payload), &ch); err != nil {
					b.log.Warn("bad change payload", "error", err)
					continue
				}
				onMsg(ch)
			}
		}
	}()
	return nil
}

func (b *redisBus) Close() error {
	return b.rdb.Close()
}

// memoryBus delivers changes in-process. Used when no Redis is configured.
type memoryBus struct {
	mu        sync.RWMutex
	listeners []func(Change)
}

func NewMemoryBus() Bus {
	return &memoryBus{}
}

func (b *memoryBus) Publish(_ context.Context, ch Change) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, fn := range b.listeners {
		fn(ch)
	}
	return nil
}

func (b *memoryBus) StartForwarder(_ context.Context, onMsg func(Change)) error {
	if onMsg == nil {
		return fmt.Errorf("onMsg callback required")
	}
	b.mu.Lock()
	b.listeners = append(b.listeners, onMsg)
	b.mu.Unlock()
	return nil
}

func (b *memoryBus) Close() error { return nil }
