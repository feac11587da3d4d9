package services

import (
	"context"
	"fmt"
	"sync"

	"mdsync-backend/internal/events"

	"github.com/rs/zerolog/log"
)

// Watcher is a live subscription to one resource
type Watcher struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Stop cancels the subscription and waits for any in-flight callback. No
// callback runs after Stop returns. Stop must not be called from the
// watcher's own handler.
func (w *Watcher) Stop() {
	w.cancel()
	<-w.done
}

// Done is closed once the watcher has stopped delivering
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

// Watch delivers fetch's result to handler once immediately and again after
// every notification on topic, until ctx is cancelled or the watcher is
// stopped. Callbacks of one watcher never run concurrently.
func Watch[T any](
	ctx context.Context,
	broker events.Broker,
	topic string,
	fetch func(context.Context) (T, error),
	handler func(T, error),
) (*Watcher, error) {
	sub, err := broker.Subscribe(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", topic, err)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &Watcher{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		defer sub.Close()

		deliver := func() {
			v, err := fetch(wctx)
			if wctx.Err() != nil {
				return
			}
			handler(v, err)
		}

		deliver()
		for {
			select {
			case <-wctx.Done():
				return
			case <-sub.C():
				deliver()
			}
		}
	}()

	return w, nil
}

// Listeners owns the watchers of one client, keyed by logical channel
type Listeners struct {
	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewListeners creates an empty registry
func NewListeners() *Listeners {
	return &Listeners{watchers: make(map[string]*Watcher)}
}

// Set installs w for key, stopping the watcher it replaces
func (l *Listeners) Set(key string, w *Watcher) {
	l.mu.Lock()
	prev := l.watchers[key]
	l.watchers[key] = w
	l.mu.Unlock()

	if prev != nil && prev != w {
		prev.Stop()
	}
}

// Stop stops and removes the watcher for key, reporting whether there was one
func (l *Listeners) Stop(key string) bool {
	l.mu.Lock()
	w, ok := l.watchers[key]
	delete(l.watchers, key)
	l.mu.Unlock()

	if ok {
		w.Stop()
	}
	return ok
}

// Has reports whether a watcher is installed for key
func (l *Listeners) Has(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.watchers[key]
	return ok
}

// Len returns the number of installed watchers
func (l *Listeners) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.watchers)
}

// StopAll stops every watcher
func (l *Listeners) StopAll() {
	l.mu.Lock()
	watchers := l.watchers
	l.watchers = make(map[string]*Watcher)
	l.mu.Unlock()

	for _, w := range watchers {
		w.Stop()
	}
}

// publish notifies watchers of the given topics. Delivery is best effort: the
// write it follows has already succeeded.
func publish(ctx context.Context, broker events.Broker, topics ...string) {
	for _, topic := range topics {
		if err := broker.Publish(ctx, topic); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("Failed to publish change")
		}
	}
}
