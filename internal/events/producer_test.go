package events

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

// ---------------------------------------------------------------------------
// Stub channel
// ---------------------------------------------------------------------------

type stubChannel struct {
	mu        sync.Mutex
	failing   bool
	keys      []string
	published []amqp091.Publishing
}

func (c *stubChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp091.Publishing) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failing {
		return errors.New("channel/connection is not open")
	}
	c.keys = append(c.keys, key)
	c.published = append(c.published, msg)
	return nil
}

func (c *stubChannel) Close() error { return nil }

func (c *stubChannel) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.published)
}

func testProducer(ch amqpChannel, reopen func() (amqpChannel, error)) *Producer {
	return &Producer{logger: slog.Default(), channel: ch, reopen: reopen}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestPublishReopensDeadChannel(t *testing.T) {
	dead := &stubChannel{failing: true}
	fresh := &stubChannel{}
	reopens := 0
	p := testProducer(dead, func() (amqpChannel, error) {
		reopens++
		return fresh, nil
	})

	p.TaskCompleted(context.Background(), uuid.New(), uuid.New(), uuid.New(), 200)

	if reopens != 1 {
		t.Fatalf("reopens: got %d, want 1", reopens)
	}
	if fresh.count() != 1 {
		t.Fatalf("published on fresh channel: got %d, want 1", fresh.count())
	}
	if fresh.keys[0] != "task.completed" {
		t.Errorf("routing key: got %q", fresh.keys[0])
	}
	var body map[string]any
	if err := json.Unmarshal(fresh.published[0].Body, &body); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if body["reward_cents"] != float64(200) {
		t.Errorf("reward_cents: got %v", body["reward_cents"])
	}

	// The replaced channel is reused directly on the next publish.
	p.ReferralAwarded(context.Background(), uuid.New(), uuid.New(), 290)
	if reopens != 1 {
		t.Errorf("reopens after second publish: got %d, want 1", reopens)
	}
	if fresh.count() != 2 {
		t.Errorf("published on fresh channel: got %d, want 2", fresh.count())
	}
}

func TestPublishDropsEventWhenReopenFails(t *testing.T) {
	dead := &stubChannel{failing: true}
	p := testProducer(dead, func() (amqpChannel, error) {
		return nil, errors.New("connection refused")
	})

	// Must not panic and must not surface the failure to the caller.
	p.WithdrawalStateChanged(context.Background(), uuid.New(), uuid.New(), "pending", 490)
}

func TestPublishConcurrent(t *testing.T) {
	flaky := &stubChannel{failing: true}
	fresh := &stubChannel{}
	var mu sync.Mutex
	reopens := 0
	p := testProducer(flaky, func() (amqpChannel, error) {
		mu.Lock()
		defer mu.Unlock()
		reopens++
		return fresh, nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.TaskCompleted(context.Background(), uuid.New(), uuid.New(), uuid.New(), 100)
		}()
	}
	wg.Wait()

	// The first publisher through the lock swaps the channel; everyone else
	// reuses it, so exactly one reopen and no lost events.
	if reopens != 1 {
		t.Errorf("reopens: got %d, want 1", reopens)
	}
	if fresh.count() != 20 {
		t.Errorf("published: got %d, want 20", fresh.count())
	}
}
