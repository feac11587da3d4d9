package events

import (
	"context"
	"sync"
)

// LocalBroker delivers notifications within a single process
type LocalBroker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// NewLocalBroker creates an in-process broker
func NewLocalBroker() *LocalBroker {
	return &LocalBroker{
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

// Publish wakes every subscriber of topic
func (b *LocalBroker) Publish(ctx context.Context, topic string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.topics[topic] {
		sub.notify()
	}
	return nil
}

// Subscribe registers a subscriber for topic
func (b *LocalBroker) Subscribe(ctx context.Context, topic string) (*Subscription, error) {
	var sub *Subscription
	sub = newSubscription(topic, func() { b.remove(topic, sub) })

	b.mu.Lock()
	defer b.mu.Unlock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	return sub, nil
}

// Subscribers returns the number of live subscribers of topic
func (b *LocalBroker) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.topics[topic])
}

// Close drops every subscriber
func (b *LocalBroker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics = make(map[string]map[*Subscription]struct{})
	return nil
}

func (b *LocalBroker) remove(topic string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.topics[topic]
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}
