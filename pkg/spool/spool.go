package spool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/pushrelay/pushrelay/pkg/kv"
)

// RetentionTTL is the fixed horizon after which a pending message silently
// expires in the backing store.
const RetentionTTL = 7 * 24 * time.Hour

// Message is one spooled push payload. Data and Encrypted are mutually
// exclusive; CreatedAt is Unix milliseconds and drives drain ordering.
type Message struct {
	ID        string         `json:"id"`
	DeviceKey string         `json:"device_key"`
	Data      map[string]any `json:"data,omitempty"`
	Encrypted string         `json:"encrypted,omitempty"`
	CreatedAt int64          `json:"created_at"`
}

// Queue is the durable offline spool.
type Queue struct {
	store kv.Store
	log   *slog.Logger
}

// QueueOption configures a Queue.
type QueueOption func(*Queue)

// WithQueueLogger sets the logger for the Queue.
func WithQueueLogger(log *slog.Logger) QueueOption {
	return func(q *Queue) {
		if log != nil {
			q.log = log
		}
	}
}

// NewQueue creates a spool persisting through the given store.
func NewQueue(store kv.Store, opts ...QueueOption) *Queue {
	q := &Queue{
		store: store,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Enqueue stores a pending message and records its id in the device's
// index. The message expires after RetentionTTL.
func (q *Queue) Enqueue(ctx context.Context, msg Message) error {
	if msg.DeviceKey == "" {
		return ErrEmptyDeviceKey
	}
	if msg.ID == "" {
		return ErrEmptyMessageID
	}
	if msg.Data != nil && msg.Encrypted != "" {
		return ErrAmbiguousPayload
	}
	if msg.CreatedAt == 0 {
		msg.CreatedAt = time.Now().UnixMilli()
	}

	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode offline message: %w", err)
	}
	if err := q.store.Put(ctx, messageKey(msg.DeviceKey, msg.ID), raw, RetentionTTL); err != nil {
		return err
	}

	ids, err := q.index(ctx, msg.DeviceKey)
	if err != nil {
		return err
	}
	if !slices.Contains(ids, msg.ID) {
		ids = append(ids, msg.ID)
		if err := q.putIndex(ctx, msg.DeviceKey, ids); err != nil {
			return err
		}
	}
	return nil
}

// Drain returns all pending messages for a device in ascending creation
// order. Ids whose entries already expired are compacted out of the index.
func (q *Queue) Drain(ctx context.Context, deviceKey string) ([]Message, error) {
	if deviceKey == "" {
		return nil, ErrEmptyDeviceKey
	}

	ids, err := q.index(ctx, deviceKey)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	messages := make([]Message, 0, len(ids))
	live := make([]string, 0, len(ids))
	for _, id := range ids {
		raw, err := q.store.Get(ctx, messageKey(deviceKey, id))
		if err != nil {
			if errors.Is(err, kv.ErrNotFound) {
				continue // expired, compact out
			}
			return nil, err
		}

		var msg Message
		if err := json.Unmarshal(raw, &msg); err != nil {
			q.log.WarnContext(ctx, "dropping undecodable offline message",
				"device_key", deviceKey, "message_id", id, "error", err)
			continue
		}
		messages = append(messages, msg)
		live = append(live, id)
	}

	if len(live) != len(ids) {
		if err := q.putIndex(ctx, deviceKey, live); err != nil {
			q.log.WarnContext(ctx, "failed to compact offline index",
				"device_key", deviceKey, "error", err)
		}
	}

	slices.SortStableFunc(messages, func(a, b Message) int {
		switch {
		case a.CreatedAt < b.CreatedAt:
			return -1
		case a.CreatedAt > b.CreatedAt:
			return 1
		default:
			return 0
		}
	})
	return messages, nil
}

// Remove acknowledges one delivered message: the entry is deleted and its
// id pruned from the index. Best effort; a missed removal is cleaned up by
// TTL expiry.
func (q *Queue) Remove(ctx context.Context, deviceKey, messageID string) error {
	if deviceKey == "" {
		return ErrEmptyDeviceKey
	}
	if messageID == "" {
		return ErrEmptyMessageID
	}

	if err := q.store.Delete(ctx, messageKey(deviceKey, messageID)); err != nil {
		return err
	}

	ids, err := q.index(ctx, deviceKey)
	if err != nil {
		return err
	}
	pruned := slices.DeleteFunc(ids, func(id string) bool { return id == messageID })
	if len(pruned) == len(ids) {
		return nil
	}
	return q.putIndex(ctx, deviceKey, pruned)
}

func (q *Queue) index(ctx context.Context, deviceKey string) ([]string, error) {
	raw, err := q.store.Get(ctx, indexKey(deviceKey))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode offline index: %w", err)
	}
	return ids, nil
}

func (q *Queue) putIndex(ctx context.Context, deviceKey string, ids []string) error {
	if len(ids) == 0 {
		return q.store.Delete(ctx, indexKey(deviceKey))
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode offline index: %w", err)
	}
	return q.store.Put(ctx, indexKey(deviceKey), raw, RetentionTTL)
}

func messageKey(deviceKey, id string) string {
	return "offline_" + deviceKey + "_" + id
}

func indexKey(deviceKey string) string {
	return "offline_index_" + deviceKey
}
