package redisclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

func queueChannel(doctorID uuid.UUID) string {
	return fmt.Sprintf("queue:updates:%s", doctorID.String())
}

// QueueNotifier fans queue mutations out to live subscribers through Redis
// pub/sub. Messages carry no payload beyond the doctor id; subscribers
// re-read the queue snapshot from the store on every signal.
type QueueNotifier struct {
	client *redis.Client
}

func NewQueueNotifier(client *redis.Client) *QueueNotifier {
	return &QueueNotifier{client: client}
}

// Publish signals that the doctor's queue changed.
func (n *QueueNotifier) Publish(ctx context.Context, doctorID uuid.UUID) error {
	if err := n.client.Publish(ctx, queueChannel(doctorID), doctorID.String()).Err(); err != nil {
		return fmt.Errorf("publish queue update: %w", err)
	}
	return nil
}

// Subscribe returns a signal channel that receives one value per published
// update for the doctor, plus a cancel func. After cancel returns no further
// signals are delivered and the channel is closed.
func (n *QueueNotifier) Subscribe(ctx context.Context, doctorID uuid.UUID) (<-chan struct{}, func(), error) {
	sub := n.client.Subscribe(ctx, queueChannel(doctorID))

	// Force the subscription onto the wire before we report success.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe queue updates: %w", err)
	}

	signals := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(signals)
		ch := sub.Channel()
		for {
			select {
			case <-done:
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case signals <- struct{}{}:
				default:
					// A signal is already pending; snapshots are
					// re-read in full so coalescing is safe.
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			_ = sub.Close()
		})
	}

	return signals, cancel, nil
}
