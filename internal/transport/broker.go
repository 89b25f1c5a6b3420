package transport

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/logger"
)

// DefaultQueueSize is used when a Broker is created with a non-positive queue size.
const DefaultQueueSize = 256

// Broker is an in-process Transport. Every subscriber of a topic receives
// each published payload once; a subscriber whose queue is full misses it.
// A single Broker is meant to be shared by all sessions of a process.
type Broker struct {
	queueSize int

	mu      sync.RWMutex
	state   brokerState
	topics  map[string]map[*subscription]struct{}
	dropped atomic.Uint64
}

type brokerState int

const (
	brokerIdle brokerState = iota
	brokerRunning
	brokerStopped
)

// NewBroker creates a Broker with the given per-subscriber queue size.
func NewBroker(queueSize int) *Broker {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Broker{
		queueSize: queueSize,
		topics:    make(map[string]map[*subscription]struct{}),
	}
}

// Start makes the broker accept publications and subscriptions.
func (b *Broker) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case brokerStopped:
		return ErrStopped
	case brokerRunning:
		return nil
	}
	b.state = brokerRunning
	logger.Infof("transport: broker started (queue size %d)", b.queueSize)
	return nil
}

// Stop closes every open subscription. The broker cannot be restarted.
func (b *Broker) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == brokerStopped {
		return
	}
	b.state = brokerStopped
	for topic, subs := range b.topics {
		for s := range subs {
			close(s.ch)
		}
		delete(b.topics, topic)
	}
	logger.Infof("transport: broker stopped (%d deliveries dropped)", b.dropped.Load())
}

func (b *Broker) checkRunning() error {
	switch b.state {
	case brokerIdle:
		return ErrNotStarted
	case brokerStopped:
		return ErrStopped
	}
	return nil
}

// Publish delivers a copy of data to every current subscriber of topic.
func (b *Broker) Publish(ctx context.Context, topic string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.checkRunning(); err != nil {
		return err
	}
	for s := range b.topics[topic] {
		msg := Message{Topic: topic, Data: append([]byte(nil), data...)}
		select {
		case s.ch <- msg:
		default:
			b.dropped.Add(1)
			logger.Warningf("transport: subscriber queue full on %s, message dropped", topic)
		}
	}
	return nil
}

// Subscribe opens a subscription on topic.
func (b *Broker) Subscribe(ctx context.Context, topic string) (Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.checkRunning(); err != nil {
		return nil, err
	}
	s := &subscription{
		broker: b,
		topic:  topic,
		ch:     make(chan Message, b.queueSize),
	}
	if b.topics[topic] == nil {
		b.topics[topic] = make(map[*subscription]struct{})
	}
	b.topics[topic][s] = struct{}{}
	return s, nil
}

// Dropped returns the number of deliveries lost to full subscriber queues.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

// Subscribers returns the number of open subscriptions on topic.
func (b *Broker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

func (b *Broker) remove(s *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[s.topic]
	if !ok {
		return
	}
	if _, ok := subs[s]; !ok {
		return
	}
	delete(subs, s)
	close(s.ch)
	if len(subs) == 0 {
		delete(b.topics, s.topic)
	}
}

type subscription struct {
	broker *Broker
	topic  string
	ch     chan Message
	once   sync.Once
}

func (s *subscription) Messages() <-chan Message {
	return s.ch
}

func (s *subscription) Close() error {
	s.once.Do(func() { s.broker.remove(s) })
	return nil
}
