package handler

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventDeduper tracks processed webhook event IDs so that provider retries
// of an already-delivered event are acknowledged without reprocessing.
type EventDeduper interface {
	Seen(ctx context.Context, gateway, eventID string) (bool, error)
}

type redisEventDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func (d *redisEventDeduper) Seen(ctx context.Context, gateway, eventID string) (bool, error) {
	key := d.prefix + ":" + gateway + ":" + eventID
	ok, err := d.client.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}
	// false => already exists => duplicate
	return !ok, nil
}

type memoryEventDeduper struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	ttl    time.Duration
	nextGC time.Time
}

func newMemoryEventDeduper(ttl time.Duration) *memoryEventDeduper {
	now := time.Now()
	return &memoryEventDeduper{
		seen:   make(map[string]time.Time),
		ttl:    ttl,
		nextGC: now.Add(ttl),
	}
}

func (d *memoryEventDeduper) Seen(_ context.Context, gateway, eventID string) (bool, error) {
	key := gateway + ":" + eventID
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[key]; ok && exp.After(now) {
		return true, nil
	}

	d.seen[key] = now.Add(d.ttl)
	if now.After(d.nextGC) {
		for id, exp := range d.seen {
			if exp.Before(now) {
				delete(d.seen, id)
			}
		}
		d.nextGC = now.Add(d.ttl)
	}

	return false, nil
}

// NewEventDeduper builds a Redis deduper and falls back to in-memory on
// failure. An empty addr selects the in-memory deduper directly.
func NewEventDeduper(addr, pass string, db int, ttl time.Duration) (EventDeduper, error) {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if addr == "" {
		return newMemoryEventDeduper(ttl), nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: pass,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return newMemoryEventDeduper(ttl), err
	}

	return &redisEventDeduper{
		client: client,
		prefix: "webhook:event",
		ttl:    ttl,
	}, nil
}
