package transport

import (
	"sync"
	"sync/atomic"

	goutils "go.viam.com/utils"

	"github.com/robosim/sensors/msgs"
)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	sub *subscription
}

// Topic returns the fully qualified topic name.
func (s *Subscription) Topic() string {
	return s.sub.topic
}

// Dropped returns how many messages were discarded because the queue was full.
func (s *Subscription) Dropped() uint64 {
	return s.sub.dropped.Load()
}

// Unsubscribe stops delivery. A callback already running is allowed to finish; it is safe to
// call from inside the callback.
func (s *Subscription) Unsubscribe() error {
	if s == nil {
		return nil
	}
	return s.sub.close()
}

type subscription struct {
	id      uint64
	topic   string
	node    *Node
	deliver func(msgs.Message)

	queue   chan msgs.Message
	done    chan struct{}
	once    sync.Once
	dropped atomic.Uint64
}

func newSubscription(n *Node, id uint64, topic string, queueSize int, deliver func(msgs.Message)) *subscription {
	return &subscription{
		id:      id,
		topic:   topic,
		node:    n,
		deliver: deliver,
		queue:   make(chan msgs.Message, queueSize),
		done:    make(chan struct{}),
	}
}

func (s *subscription) start() {
	goutils.PanicCapturingGo(s.run)
}

func (s *subscription) run() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.queue:
			select {
			case <-s.done:
				return
			default:
			}
			s.call(msg)
		}
	}
}

func (s *subscription) call(msg msgs.Message) {
	defer func() {
		if r := recover(); r != nil {
			s.node.bus.logger.Errorw("subscriber callback panicked", "topic", s.topic, "panic", r)
		}
	}()
	s.deliver(msg)
}

// enqueue never blocks: when the queue is full the oldest message is discarded.
func (s *subscription) enqueue(msg msgs.Message) {
	for {
		select {
		case <-s.done:
			return
		case s.queue <- msg:
			return
		default:
		}
		select {
		case <-s.queue:
			n := s.dropped.Add(1)
			s.node.bus.logger.Debugw("subscriber queue full, dropped oldest message", "topic", s.topic, "dropped", n)
		default:
		}
	}
}

func (s *subscription) close() error {
	s.once.Do(func() {
		close(s.done)

		b := s.node.bus
		b.mu.Lock()
		if t, ok := b.topics[s.topic]; ok {
			delete(t.subs, s.id)
			b.pruneLocked(t)
		}
		b.mu.Unlock()
		s.node.forget(s)
	})
	return nil
}
