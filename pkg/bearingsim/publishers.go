package bearingsim

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrChannelPublisherClosed is returned when a channel publisher is used after being closed.
var ErrChannelPublisherClosed = errors.New("bearingsim: channel publisher closed")

// Message is one payload handed to a callback or channel publisher.
type Message struct {
	Topic   string
	Payload []byte
}

// PublishFunc receives every payload the simulation emits.
type PublishFunc func(ctx context.Context, msg Message) error

// NewCallbackPublisher adapts a PublishFunc into a full Publisher so callers
// can plug arbitrary functions without defining structs.
func NewCallbackPublisher(name string, fn PublishFunc) Publisher {
	if name == "" {
		name = "callback"
	}
	return &callbackPublisher{name: name, fn: fn}
}

// NewChannelPublisher exposes payloads via a channel; it returns the publisher,
// the read-only channel, and a close function the caller should invoke during shutdown.
func NewChannelPublisher(name string, buffer int) (Publisher, <-chan Message, func()) {
	if name == "" {
		name = "channel"
	}
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Message, buffer)
	p := &channelPublisher{
		name:   name,
		ch:     ch,
		closed: make(chan struct{}),
	}
	return p, ch, func() { p.close() }
}

type callbackPublisher struct {
	name string
	fn   PublishFunc
}

func (p *callbackPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	if p.fn == nil {
		return fmt.Errorf("callback publisher %q: nil handler", p.name)
	}
	return p.fn(ctx, Message{Topic: topic, Payload: clone(payload)})
}

func (p *callbackPublisher) Name() string { return p.name }

type channelPublisher struct {
	name   string
	ch     chan Message
	closed chan struct{}
	once   sync.Once
	mu     sync.RWMutex
}

func (p *channelPublisher) Publish(ctx context.Context, topic string, payload []byte) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	select {
	case <-p.closed:
		return ErrChannelPublisherClosed
	default:
	}

	msg := Message{Topic: topic, Payload: clone(payload)}

	select {
	case <-p.closed:
		return ErrChannelPublisherClosed
	case <-ctx.Done():
		return ctx.Err()
	case p.ch <- msg:
		return nil
	}
}

func (p *channelPublisher) Name() string { return p.name }

func (p *channelPublisher) close() {
	p.once.Do(func() {
		close(p.closed)
		p.mu.Lock()
		close(p.ch)
		p.mu.Unlock()
	})
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
