package redisclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const waitlistKeyPrefix = "queue:slot:"

// Waitlist is the Redis-list backed queue of consumers waiting on a
// slot. One list per slot id, FIFO, tail insert.
type Waitlist struct {
	client *redis.Client
}

func NewWaitlist(client *redis.Client) *Waitlist {
	return &Waitlist{client: client}
}

func waitlistKey(slotID uuid.UUID) string {
	return waitlistKeyPrefix + slotID.String()
}

func (w *Waitlist) Append(ctx context.Context, slotID, consumerID uuid.UUID) error {
	if err := w.client.RPush(ctx, waitlistKey(slotID), consumerID.String()).Err(); err != nil {
		return fmt.Errorf("append to waitlist %s: %w", slotID, err)
	}
	return nil
}

// PopFront removes and returns the head of the slot's waitlist.
// The second return is false when the list is empty or missing.
func (w *Waitlist) PopFront(ctx context.Context, slotID uuid.UUID) (uuid.UUID, bool, error) {
	val, err := w.client.LPop(ctx, waitlistKey(slotID)).Result()
	if err == redis.Nil {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("pop waitlist %s: %w", slotID, err)
	}

	id, err := uuid.Parse(val)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("corrupt waitlist entry %q on slot %s: %w", val, slotID, err)
	}
	return id, true, nil
}

func (w *Waitlist) Range(ctx context.Context, slotID uuid.UUID) ([]uuid.UUID, error) {
	vals, err := w.client.LRange(ctx, waitlistKey(slotID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("range waitlist %s: %w", slotID, err)
	}

	out := make([]uuid.UUID, 0, len(vals))
	for _, v := range vals {
		id, err := uuid.Parse(v)
		if err != nil {
			return nil, fmt.Errorf("corrupt waitlist entry %q on slot %s: %w", v, slotID, err)
		}
		out = append(out, id)
	}
	return out, nil
}

// Replace swaps the whole list in one pipeline. Redis lists have no
// positional delete, so leave is implemented as rebuild-and-replace.
func (w *Waitlist) Replace(ctx context.Context, slotID uuid.UUID, consumers []uuid.UUID) error {
	key := waitlistKey(slotID)

	pipe := w.client.TxPipeline()
	pipe.Del(ctx, key)
	for _, c := range consumers {
		pipe.RPush(ctx, key, c.String())
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replace waitlist %s: %w", slotID, err)
	}
	return nil
}

func (w *Waitlist) Delete(ctx context.Context, slotID uuid.UUID) error {
	if err := w.client.Del(ctx, waitlistKey(slotID)).Err(); err != nil {
		return fmt.Errorf("delete waitlist %s: %w", slotID, err)
	}
	return nil
}

func (w *Waitlist) Len(ctx context.Context, slotID uuid.UUID) (int64, error) {
	n, err := w.client.LLen(ctx, waitlistKey(slotID)).Result()
	if err != nil {
		return 0, fmt.Errorf("len waitlist %s: %w", slotID, err)
	}
	return n, nil
}

// SlotIDs scans for every slot that currently has a waitlist. The scan
// is cursor-based and not a point-in-time snapshot of all keys.
func (w *Waitlist) SlotIDs(ctx context.Context) ([]uuid.UUID, error) {
	var out []uuid.UUID

	iter := w.client.Scan(ctx, 0, waitlistKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		raw := strings.TrimPrefix(iter.Val(), waitlistKeyPrefix)
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("corrupt waitlist key %q: %w", iter.Val(), err)
		}
		out = append(out, id)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan waitlist keys: %w", err)
	}
	return out, nil
}
