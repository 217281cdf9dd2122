package transport

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/robosim/sensors/msgs"
)

// ErrNodeClosed is returned when using a node after Close.
var ErrNodeClosed = errors.New("transport node closed")

// Node owns a set of publishers and subscriptions that share a namespace.
type Node struct {
	id        uuid.UUID
	namespace string
	bus       *Bus

	mu     sync.Mutex
	closed bool
	subs   map[uint64]*subscription
	pubs   map[string]int
}

// ID returns the node's unique id.
func (n *Node) ID() uuid.UUID {
	return n.id
}

// Namespace returns the namespace relative topics resolve under.
func (n *Node) Namespace() string {
	return n.namespace
}

// Bus returns the bus the node is attached to.
func (n *Node) Bus() *Bus {
	return n.bus
}

// Close unsubscribes every subscription and invalidates every publisher the node created.
func (n *Node) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	subs := n.subs
	pubs := n.pubs
	n.subs = map[uint64]*subscription{}
	n.pubs = map[string]int{}
	n.mu.Unlock()

	var errs error
	for _, s := range subs {
		errs = multierr.Append(errs, s.close())
	}

	n.bus.mu.Lock()
	for topic := range pubs {
		if t, ok := n.bus.topics[topic]; ok {
			delete(t.publishers, n.id)
			n.bus.pruneLocked(t)
		}
	}
	n.bus.mu.Unlock()
	return errs
}

// Advertise creates a publisher for topic, resolved against the node's namespace.
func Advertise[T msgs.Message](n *Node, topic string) (*Publisher[T], error) {
	name, err := FullyQualifiedName(n.namespace, topic)
	if err != nil {
		return nil, err
	}
	var zero T
	msgType := zero.MessageType()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrNodeClosed
	}

	n.bus.mu.Lock()
	t, err := n.bus.topicLocked(name, msgType)
	if err != nil {
		n.bus.mu.Unlock()
		return nil, err
	}
	t.publishers[n.id]++
	n.bus.mu.Unlock()

	n.pubs[name]++
	n.bus.logger.Debugw("advertised topic", "topic", name, "type", msgType, "node", n.id.String())
	return &Publisher[T]{node: n, topic: name}, nil
}

// Subscribe calls cb with every message published on topic. Messages are delivered in
// publish order on a goroutine owned by the subscription; cb must not modify them.
func Subscribe[T msgs.Message](n *Node, topic string, cb func(T)) (*Subscription, error) {
	if cb == nil {
		return nil, errors.New("nil subscription callback")
	}
	name, err := FullyQualifiedName(n.namespace, topic)
	if err != nil {
		return nil, err
	}
	var zero T
	msgType := zero.MessageType()

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil, ErrNodeClosed
	}

	n.bus.mu.Lock()
	t, err := n.bus.topicLocked(name, msgType)
	if err != nil {
		n.bus.mu.Unlock()
		return nil, err
	}
	n.bus.nextID++
	s := newSubscription(n, n.bus.nextID, name, n.bus.queueSize, func(m msgs.Message) {
		if typed, ok := m.(T); ok {
			cb(typed)
		}
	})
	t.subs[s.id] = s
	n.bus.mu.Unlock()

	n.subs[s.id] = s
	s.start()
	return &Subscription{sub: s}, nil
}

func (n *Node) forget(s *subscription) {
	n.mu.Lock()
	delete(n.subs, s.id)
	n.mu.Unlock()
}

func (n *Node) releasePublisher(topic string) {
	n.mu.Lock()
	if n.pubs[topic] > 0 {
		n.pubs[topic]--
		if n.pubs[topic] == 0 {
			delete(n.pubs, topic)
		}
	}
	n.mu.Unlock()

	n.bus.mu.Lock()
	defer n.bus.mu.Unlock()
	t, ok := n.bus.topics[topic]
	if !ok {
		return
	}
	if t.publishers[n.id] > 0 {
		t.publishers[n.id]--
		if t.publishers[n.id] == 0 {
			delete(t.publishers, n.id)
		}
	}
	n.bus.pruneLocked(t)
}

func (n *Node) isClosed() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.closed
}
