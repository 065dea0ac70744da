package api

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

type EventBroker interface {
	Subscribe(jobID string) chan SSEEvent
	Unsubscribe(jobID string, ch chan SSEEvent)
	Publish(jobID string, evt SSEEvent)
}

// pubSub is the slice of redis.PubSub the broker needs; tests substitute a fake.
type pubSub interface {
	Channel(opts ...redis.ChannelOption) <-chan *redis.Message
	Close() error
}

// RedisBroker implements EventBroker over Redis Pub/Sub so progress events
// reach subscribers on other instances.
type RedisBroker struct {
	rdb *redis.Client

	mu   sync.Mutex
	subs map[chan SSEEvent]pubSub

	newPubSub func(channel string) pubSub
}

func NewRedisBroker(url string) (*RedisBroker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	b := &RedisBroker{
		rdb:  redis.NewClient(opt),
		subs: make(map[chan SSEEvent]pubSub),
	}
	b.newPubSub = func(channel string) pubSub {
		ctx := context.Background()
		ps := b.rdb.Subscribe(ctx, channel)
		// initial consume to ensure subscription
		_, _ = ps.Receive(ctx)
		return ps
	}
	return b, nil
}

func (b *RedisBroker) Subscribe(jobID string) chan SSEEvent {
	ch := make(chan SSEEvent, 16)
	ps := b.newPubSub(b.chanName(jobID))
	b.mu.Lock()
	b.subs[ch] = ps
	b.mu.Unlock()
	go func() {
		// sole closer of ch; exits when the PubSub is closed
		defer close(ch)
		for msg := range ps.Channel() {
			var evt SSEEvent
			if err := json.Unmarshal([]byte(msg.Payload), &evt); err == nil {
				select {
				case ch <- evt:
				default:
				}
			}
		}
	}()
	return ch
}

func (b *RedisBroker) Unsubscribe(jobID string, ch chan SSEEvent) {
	b.mu.Lock()
	ps, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		_ = ps.Close()
	}
}

func (b *RedisBroker) Publish(jobID string, evt SSEEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	data, _ := json.Marshal(evt)
	_ = b.rdb.Publish(ctx, b.chanName(jobID), data).Err()
}

func (b *RedisBroker) chanName(jobID string) string { return "job:" + jobID }
