// Package transport is an in-process publish/subscribe bus for sensor messages.
//
// Topics are typed: the first advertiser or subscriber binds the message type and later
// users must agree with it. Publishing never blocks; every subscription owns a bounded
// queue drained by its own goroutine, and the oldest queued message is dropped when a slow
// subscriber falls behind.
package transport

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/robosim/sensors/logging"
	"github.com/robosim/sensors/msgs"
)

// DefaultQueueSize is the number of messages buffered per subscription.
const DefaultQueueSize = 10

// ErrTypeMismatch is returned when a topic is used with a message type other than its own.
var ErrTypeMismatch = errors.New("topic message type mismatch")

var (
	defaultBusOnce sync.Once
	defaultBus     *Bus
)

// DefaultBus returns the process-wide bus.
func DefaultBus() *Bus {
	defaultBusOnce.Do(func() {
		defaultBus = NewBus(logging.Global().Sublogger("transport"))
	})
	return defaultBus
}

// Bus routes published messages to subscriptions by topic.
type Bus struct {
	logger    logging.Logger
	queueSize int

	mu     sync.RWMutex
	nextID uint64
	topics map[string]*topicState
}

type topicState struct {
	name       string
	msgType    string
	publishers map[uuid.UUID]int
	subs       map[uint64]*subscription
}

// TopicInfo describes an active topic.
type TopicInfo struct {
	Name        string `json:"name"`
	MessageType string `json:"message_type"`
	Publishers  int    `json:"publishers"`
	Subscribers int    `json:"subscribers"`
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithQueueSize sets the per-subscription queue length.
func WithQueueSize(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// NewBus returns an empty bus.
func NewBus(logger logging.Logger, opts ...BusOption) *Bus {
	b := &Bus{
		logger:    logger,
		queueSize: DefaultQueueSize,
		topics:    map[string]*topicState{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewNode returns a node that advertises and subscribes relative to namespace.
func (b *Bus) NewNode(namespace string) (*Node, error) {
	if !ValidNamespace(namespace) {
		return nil, errors.Wrapf(ErrInvalidTopic, "namespace %q", namespace)
	}
	return &Node{
		id:        uuid.New(),
		namespace: namespace,
		bus:       b,
		subs:      map[uint64]*subscription{},
		pubs:      map[string]int{},
	}, nil
}

// Topics lists the topics currently known to the bus, sorted by name.
func (b *Bus) Topics() []TopicInfo {
	b.mu.RLock()
	defer b.mu.RUnlock()
	infos := make([]TopicInfo, 0, len(b.topics))
	for _, t := range b.topics {
		pubs := 0
		for _, n := range t.publishers {
			pubs += n
		}
		infos = append(infos, TopicInfo{Name: t.name, MessageType: t.msgType, Publishers: pubs, Subscribers: len(t.subs)})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// topicLocked returns the topic, creating it bound to msgType if needed. Must hold b.mu.
func (b *Bus) topicLocked(name, msgType string) (*topicState, error) {
	t, ok := b.topics[name]
	if !ok {
		t = &topicState{
			name:       name,
			msgType:    msgType,
			publishers: map[uuid.UUID]int{},
			subs:       map[uint64]*subscription{},
		}
		b.topics[name] = t
		return t, nil
	}
	if t.msgType != msgType {
		return nil, errors.Wrapf(ErrTypeMismatch, "topic %s carries %s, not %s", name, t.msgType, msgType)
	}
	return t, nil
}

// pruneLocked forgets a topic nobody uses anymore. Must hold b.mu.
func (b *Bus) pruneLocked(t *topicState) {
	if len(t.publishers) == 0 && len(t.subs) == 0 {
		delete(b.topics, t.name)
	}
}

func (b *Bus) publish(topic string, msg msgs.Message) int {
	b.mu.RLock()
	t, ok := b.topics[topic]
	var subs []*subscription
	if ok {
		subs = make([]*subscription, 0, len(t.subs))
		for _, s := range t.subs {
			subs = append(subs, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range subs {
		s.enqueue(msg)
	}
	return len(subs)
}
