package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"fieldsync/internal/logger"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RedisBroker fans messages out across instances through Redis pub/sub
type RedisBroker struct {
	client     *redis.Client
	prefix     string
	bufferSize int
	logger     *logger.Logger
}

// NewRedisBroker creates a broker publishing on channels named prefix:collection:type:id:field
func NewRedisBroker(client *redis.Client, prefix string, bufferSize int, logger *logger.Logger) *RedisBroker {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &RedisBroker{
		client:     client,
		prefix:     prefix,
		bufferSize: bufferSize,
		logger:     logger,
	}
}

// Publish sends value to every instance subscribed to topic
func (b *RedisBroker) Publish(ctx context.Context, topic Topic, value string) error {
	payload, err := json.Marshal(newMessage(value))
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	if err := b.client.Publish(ctx, topic.Channel(b.prefix), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish push message: %w", err)
	}
	return nil
}

// Subscribe opens a Redis subscription and waits for its confirmation
func (b *RedisBroker) Subscribe(ctx context.Context, topic Topic) (Subscription, error) {
	channel := topic.Channel(b.prefix)
	pubsub := b.client.Subscribe(ctx, channel)

	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		ch:     make(chan Message, b.bufferSize),
		done:   make(chan struct{}),
	}

	go sub.forward(ctx, b.logger.WithField("channel", channel))

	return sub, nil
}

// Ping checks the Redis connection
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

type redisSubscription struct {
	pubsub *redis.PubSub
	ch     chan Message
	done   chan struct{}
	once   sync.Once
}

func (s *redisSubscription) forward(ctx context.Context, log *logrus.Entry) {
	defer close(s.ch)

	in := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			s.Close()
			return
		case <-s.done:
			return
		case raw, ok := <-in:
			if !ok {
				return
			}

			var msg Message
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				log.WithError(err).Warn("Dropping malformed push message")
				continue
			}

			select {
			case s.ch <- msg:
			default:
				// subscriber is not keeping up; drop
			}
		}
	}
}

func (s *redisSubscription) Messages() <-chan Message {
	return s.ch
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.pubsub.Close()
	})
	return err
}
