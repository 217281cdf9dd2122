package transport

import (
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/robosim/sensors/msgs"
)

// ErrPublisherClosed is returned by Publish after the publisher or its node is closed.
var ErrPublisherClosed = errors.New("publisher closed")

// Publisher sends messages of type T on a single topic.
type Publisher[T msgs.Message] struct {
	node   *Node
	topic  string
	closed atomic.Bool
}

// Topic returns the fully qualified topic name.
func (p *Publisher[T]) Topic() string {
	if p == nil {
		return ""
	}
	return p.topic
}

// Valid reports whether the publisher can still publish.
func (p *Publisher[T]) Valid() bool {
	return p != nil && !p.closed.Load() && !p.node.isClosed()
}

// HasConnections reports whether anyone is subscribed to the topic.
func (p *Publisher[T]) HasConnections() bool {
	if !p.Valid() {
		return false
	}
	b := p.node.bus
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.topics[p.topic]
	return ok && len(t.subs) > 0
}

// Publish hands msg to every current subscriber without blocking.
func (p *Publisher[T]) Publish(msg T) error {
	if !p.Valid() {
		return ErrPublisherClosed
	}
	p.node.bus.publish(p.topic, msg)
	return nil
}

// Close stops advertising the topic.
func (p *Publisher[T]) Close() error {
	if p == nil || !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.node.releasePublisher(p.topic)
	return nil
}
