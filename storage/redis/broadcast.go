package redisstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-social-login/storage"
	"github.com/redis/go-redis/v9"
)

// Broadcaster maps broadcast channels onto Redis Pub/Sub.
type Broadcaster struct {
	rdb redis.UniversalClient
}

var _ storage.Broadcaster = (*Broadcaster)(nil)

func NewBroadcaster(rdb redis.UniversalClient) *Broadcaster {
	return &Broadcaster{rdb: rdb}
}

func (b *Broadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	return b.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe returns once Redis has confirmed the subscription, so a Publish issued afterwards
// is never missed.
func (b *Broadcaster) Subscribe(ctx context.Context, channel string) (storage.Subscription, error) {
	ps := b.rdb.Subscribe(ctx, channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("[redisstore Subscribe] %s: %w", channel, err)
	}

	s := &subscription{ps: ps, ch: make(chan []byte, 8), done: make(chan struct{})}
	go s.pump()
	return s, nil
}

type subscription struct {
	ps   *redis.PubSub
	ch   chan []byte
	done chan struct{}
	once sync.Once
	err  error
}

func (s *subscription) pump() {
	defer close(s.ch)
	msgs := s.ps.Channel()
	for {
		select {
		case <-s.done:
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			select {
			case s.ch <- []byte(m.Payload):
			case <-s.done:
				return
			}
		}
	}
}

func (s *subscription) C() <-chan []byte { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.ps.Close()
	})
	return s.err
}
