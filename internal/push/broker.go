// Package push fans field value changes out to event-stream subscribers.
// Delivery is best effort: slow subscribers lose messages and nothing is replayed.
package push

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"fieldsync/internal/models"

	"github.com/oklog/ulid/v2"
)

// ErrBrokerClosed is returned by operations on a closed broker
var ErrBrokerClosed = errors.New("push broker closed")

// Topic addresses the change stream of one record field
type Topic struct {
	Collection string
	RecordType string
	RecordID   string
	Field      string
}

// TopicFor builds the topic of a field on a located record.
// Numeric ids are canonical so that 07 and 7 share a topic.
func TopicFor(loc models.Locator, field string) Topic {
	return Topic{
		Collection: loc.Collection,
		RecordType: strings.ToLower(loc.RecordType),
		RecordID:   canonicalID(loc.RecordID),
		Field:      field,
	}
}

func canonicalID(id string) string {
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return id
}

// Channel renders the topic as a broker channel name
func (t Topic) Channel(prefix string) string {
	return strings.Join([]string{prefix, t.Collection, t.RecordType, t.RecordID, t.Field}, ":")
}

// Message is one published field value
type Message struct {
	ID    string `json:"id"`
	Value string `json:"value"`
}

func newMessage(value string) Message {
	return Message{ID: ulid.Make().String(), Value: value}
}

// Broker publishes field values and hands out subscriptions
type Broker interface {
	Publish(ctx context.Context, topic Topic, value string) error
	Subscribe(ctx context.Context, topic Topic) (Subscription, error)
	Ping(ctx context.Context) error
}

// Subscription delivers messages for one topic until closed
type Subscription interface {
	Messages() <-chan Message
	Close() error
}
