// Package events carries change notifications between writers and live
// watchers. Notifications have no payload: a watcher that is woken re-reads
// the resource it watches, so bursts of writes coalesce into one re-read.
package events

import (
	"context"
	"sync"
)

// Broker publishes and subscribes to change notifications by topic
type Broker interface {
	Publish(ctx context.Context, topic string) error
	Subscribe(ctx context.Context, topic string) (*Subscription, error)
	Close() error
}

// Subscription receives notifications for one topic until closed
type Subscription struct {
	topic string
	ch    chan struct{}
	once  sync.Once
	stop  func()
}

func newSubscription(topic string, stop func()) *Subscription {
	return &Subscription{
		topic: topic,
		ch:    make(chan struct{}, 1),
		stop:  stop,
	}
}

// Topic returns the subscribed topic
func (s *Subscription) Topic() string {
	return s.topic
}

// C fires at least once after every publish to the topic
func (s *Subscription) C() <-chan struct{} {
	return s.ch
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		if s.stop != nil {
			s.stop()
		}
	})
}

// notify wakes the subscriber without blocking; a pending wake-up already
// covers this one.
func (s *Subscription) notify() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Topic names
func UserTopic(userID string) string             { return "user:" + userID }
func ReactionsTopic(userID string) string        { return "reactions:" + userID }
func ChatStatusTopic(pairID string) string       { return "chat:" + pairID + ":status" }
func ChatNotificationTopic(pairID string) string { return "chat:" + pairID + ":notification" }
func ChatMessagesTopic(pairID string) string     { return "chat:" + pairID + ":messages" }
