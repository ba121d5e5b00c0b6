/**
 * @description
 * EventStreamHub multiplexes the Redis event channel to many SSE clients
 * without spawning a Redis subscription per HTTP request. Subscribers may
 * filter to a single market; filtering happens in the hub so slow clients
 * only pay for the events they asked for.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 */

package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

type streamSubscriber struct {
	ch       chan []byte
	marketID string // empty subscribes to all markets
}

// EventStreamHub fans the market event channel out to SSE clients.
type EventStreamHub struct {
	redis       *redis.Client
	channelName string

	mu          sync.RWMutex
	subscribers map[*streamSubscriber]struct{}

	cancel context.CancelFunc
}

func NewEventStreamHub(redis *redis.Client, channel string) *EventStreamHub {
	ctx, cancel := context.WithCancel(context.Background())
	hub := &EventStreamHub{
		redis:       redis,
		channelName: channel,
		subscribers: make(map[*streamSubscriber]struct{}),
		cancel:      cancel,
	}

	go hub.run(ctx)

	return hub
}

func (h *EventStreamHub) run(ctx context.Context) {
	for {
		pubsub := h.redis.Subscribe(ctx, h.channelName)
		ch := pubsub.Channel(redis.WithChannelSize(16384))

		for msg := range ch {
			h.broadcast([]byte(msg.Payload))
		}

		_ = pubsub.Close()

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
			// Avoid a tight reconnect loop if Redis drops
		}
	}
}

func (h *EventStreamHub) broadcast(payload []byte) {
	marketID := marketIDOf(payload)

	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subscribers {
		if sub.marketID != "" && sub.marketID != marketID {
			continue
		}
		select {
		case sub.ch <- payload:
		default:
			// Subscriber is too slow; shed its oldest message and retry once
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- payload:
			default:
			}
		}
	}
}

// marketIDOf pulls market_id out of an event envelope without decoding the
// whole payload into a typed struct.
func marketIDOf(payload []byte) string {
	var probe struct {
		MarketID string `json:"market_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return ""
	}
	return probe.MarketID
}

// Subscribe registers a listener, optionally filtered to one market ID, and
// returns the channel plus a cleanup function.
func (h *EventStreamHub) Subscribe(marketID string) (<-chan []byte, func()) {
	sub := &streamSubscriber{
		ch:       make(chan []byte, 512),
		marketID: marketID,
	}

	h.mu.Lock()
	h.subscribers[sub] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.subscribers[sub]; ok {
			delete(h.subscribers, sub)
			close(sub.ch)
		}
		h.mu.Unlock()
	}

	return sub.ch, unsubscribe
}

// Close stops the Redis subscription loop. Existing subscriber channels are
// left open for their own unsubscribe callbacks to close.
func (h *EventStreamHub) Close() {
	h.cancel()
}
