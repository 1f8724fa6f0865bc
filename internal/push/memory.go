package push

import (
	"context"
	"sync"
)

// MemoryBroker fans messages out inside one process
type MemoryBroker struct {
	mu         sync.RWMutex
	bufferSize int
	subs       map[Topic]map[*memorySubscription]struct{}
	closed     bool
}

// NewMemoryBroker creates an in-process broker whose subscriptions buffer bufferSize messages
func NewMemoryBroker(bufferSize int) *MemoryBroker {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &MemoryBroker{
		bufferSize: bufferSize,
		subs:       make(map[Topic]map[*memorySubscription]struct{}),
	}
}

// Publish delivers value to every current subscriber of topic without blocking
func (b *MemoryBroker) Publish(ctx context.Context, topic Topic, value string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrBrokerClosed
	}

	msg := newMessage(value)
	for sub := range b.subs[topic] {
		select {
		case sub.ch <- msg:
		default:
			// subscriber is not keeping up; drop
		}
	}
	return nil
}

// Subscribe registers a subscription that ends when ctx is done or Close is called
func (b *MemoryBroker) Subscribe(ctx context.Context, topic Topic) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBrokerClosed
	}

	sub := &memorySubscription{
		broker: b,
		topic:  topic,
		ch:     make(chan Message, b.bufferSize),
		done:   make(chan struct{}),
	}
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*memorySubscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// Ping reports whether the broker still accepts work
func (b *MemoryBroker) Ping(ctx context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBrokerClosed
	}
	return nil
}

// SubscriberCount returns the number of open subscriptions on topic
func (b *MemoryBroker) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close ends every subscription
func (b *MemoryBroker) Close() error {
	b.mu.Lock()
	subs := b.subs
	b.subs = make(map[Topic]map[*memorySubscription]struct{})
	b.closed = true
	b.mu.Unlock()

	for _, set := range subs {
		for sub := range set {
			sub.closeChannel()
		}
	}
	return nil
}

func (b *MemoryBroker) remove(sub *memorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.topic)
		}
	}
}

type memorySubscription struct {
	broker *MemoryBroker
	topic  Topic
	ch     chan Message
	done   chan struct{}
	once   sync.Once
}

func (s *memorySubscription) Messages() <-chan Message {
	return s.ch
}

func (s *memorySubscription) Close() error {
	s.broker.remove(s)
	s.closeChannel()
	return nil
}

func (s *memorySubscription) closeChannel() {
	s.once.Do(func() {
		close(s.done)
		close(s.ch)
	})
}
