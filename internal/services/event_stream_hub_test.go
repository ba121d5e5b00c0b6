package services

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestHub(t *testing.T) (*EventStreamHub, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = redisClient.Close() })

	hub := NewEventStreamHub(redisClient, EventChannel)
	t.Cleanup(hub.Close)
	return hub, redisClient
}

func publishEventually(t *testing.T, rdb *redis.Client, payload string) {
	t.Helper()
	// The hub's Redis subscription is established asynchronously; republish
	// until the subscriber count is visible or a listener picks it up.
	go func() {
		for i := 0; i < 40; i++ {
			_ = rdb.Publish(context.Background(), EventChannel, payload).Err()
			time.Sleep(50 * time.Millisecond)
		}
	}()
}

func TestHubDeliversToFirehoseSubscriber(t *testing.T) {
	hub, rdb := newTestHub(t)

	ch, unsubscribe := hub.Subscribe("")
	defer unsubscribe()

	publishEventually(t, rdb, `{"type":"trade_executed","market_id":"m-1"}`)

	select {
	case msg := <-ch:
		if string(msg) != `{"type":"trade_executed","market_id":"m-1"}` {
			t.Fatalf("unexpected payload: %s", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for hub delivery")
	}
}

func TestHubFiltersByMarket(t *testing.T) {
	hub, rdb := newTestHub(t)

	wanted, unsubWanted := hub.Subscribe("m-1")
	defer unsubWanted()
	other, unsubOther := hub.Subscribe("m-2")
	defer unsubOther()

	publishEventually(t, rdb, `{"type":"market_resolved","market_id":"m-1"}`)

	select {
	case msg := <-wanted:
		if string(msg) != `{"type":"market_resolved","market_id":"m-1"}` {
			t.Fatalf("unexpected payload: %s", msg)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for filtered delivery")
	}

	select {
	case msg := <-other:
		t.Fatalf("subscriber for m-2 received foreign event: %s", msg)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	hub, _ := newTestHub(t)

	ch, unsubscribe := hub.Subscribe("")
	unsubscribe()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected closed channel after unsubscribe")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}

	// Double unsubscribe is safe.
	unsubscribe()
}
