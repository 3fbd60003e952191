package memorystore

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-social-login/storage"
)

const subscriptionBuffer = 8

// Broadcaster fans payloads out to in-process subscribers.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

var _ storage.Broadcaster = (*Broadcaster)(nil)

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[*subscription]struct{})}
}

// Publish never blocks; a subscriber with a full buffer misses the payload.
func (b *Broadcaster) Publish(ctx context.Context, channel string, payload []byte) error {
	_ = ctx
	b.mu.Lock()
	defer b.mu.Unlock()
	for s := range b.subs[channel] {
		select {
		case s.ch <- append([]byte(nil), payload...):
		default:
		}
	}
	return nil
}

func (b *Broadcaster) Subscribe(ctx context.Context, channel string) (storage.Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &subscription{owner: b, channel: channel, ch: make(chan []byte, subscriptionBuffer)}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[channel] == nil {
		b.subs[channel] = make(map[*subscription]struct{})
	}
	b.subs[channel][s] = struct{}{}
	return s, nil
}

func (b *Broadcaster) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[s.channel], s)
	if len(b.subs[s.channel]) == 0 {
		delete(b.subs, s.channel)
	}
}

type subscription struct {
	owner   *Broadcaster
	channel string
	ch      chan []byte
	once    sync.Once
}

func (s *subscription) C() <-chan []byte { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(func() { s.owner.remove(s) })
	return nil
}
