// Package transport defines the publish/subscribe capability the giveaway
// protocol runs on, and an in-process broker implementing it.
//
// Delivery is best-effort and at-most-once per published message. There is
// no ordering guarantee across publishers.
package transport

import (
	"context"
	"errors"
)

var (
	// ErrNotStarted is returned when the transport is used before Start.
	ErrNotStarted = errors.New("transport not started")
	// ErrStopped is returned when the transport is used after Stop.
	ErrStopped = errors.New("transport stopped")
)

// Message is a payload delivered on a topic.
type Message struct {
	Topic string
	Data  []byte
}

// Subscription is an inbound stream of messages for one topic.
type Subscription interface {
	// Messages is closed once the subscription is closed or the transport stops.
	Messages() <-chan Message
	Close() error
}

// Transport broadcasts payloads under named topics.
type Transport interface {
	Publish(ctx context.Context, topic string, data []byte) error
	Subscribe(ctx context.Context, topic string) (Subscription, error)
}

// TopicSet names the two topics of one giveaway namespace.
type TopicSet struct {
	Commits string `json:"commits"`
	Reveals string `json:"reveals"`
}

// Topics returns the commit and reveal topics under namespace.
func Topics(namespace string) TopicSet {
	return TopicSet{
		Commits: namespace + "/commits",
		Reveals: namespace + "/reveals",
	}
}
