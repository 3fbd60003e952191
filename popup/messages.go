package popup

import (
	"sync"

	"github.com/jrsteele09/go-social-login/oauth2"
)

const busBuffer = 8

// ChannelName is the broadcast channel an attempt with the given state listens on.
func ChannelName(state string) string {
	return "oauth-" + state
}

// Message is the completion payload sent by the callback context to the waiting opener.
type Message struct {
	Type       oauth2.MessageType    `json:"type"`
	Provider   string                `json:"provider,omitempty"`
	ProviderID string                `json:"providerId,omitempty"`
	State      string                `json:"state,omitempty"`
	Response   *oauth2.LoginResponse `json:"response,omitempty"`
	Error      string                `json:"error,omitempty"`

	// Kind is the error kind code (oauthmodel.KindCode) of a failure, Code the provider's error code.
	Kind string `json:"kind,omitempty"`
	Code string `json:"code,omitempty"`
}

// Envelope is a Message together with the origin of the context that posted it.
type Envelope struct {
	Origin  string
	Message Message
}

// MessageBus is the in-process equivalent of cross-window message posting: every subscriber
// sees every envelope and decides by origin whether to trust it.
type MessageBus struct {
	mu   sync.Mutex
	subs map[uint64]chan Envelope
	next uint64
}

func NewMessageBus() *MessageBus {
	return &MessageBus{subs: make(map[uint64]chan Envelope)}
}

// Post delivers the message to current subscribers without blocking.
func (b *MessageBus) Post(origin string, msg Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- Envelope{Origin: origin, Message: msg}:
		default:
		}
	}
}

// Subscribe registers a listener. The returned function removes it and may be called more than once.
func (b *MessageBus) Subscribe() (<-chan Envelope, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	ch := make(chan Envelope, busBuffer)
	b.subs[id] = ch
	return ch, func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs, id)
	}
}

// Subscribers returns the number of live listeners.
func (b *MessageBus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
