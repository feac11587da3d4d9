package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"mdsync-backend/internal/events"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatch_InitialSnapshotAndRefetch(t *testing.T) {
	ctx := context.Background()
	broker := events.NewLocalBroker()
	defer broker.Close()

	var value atomic.Int64
	got := make(chan int64, 10)

	w, err := Watch(ctx, broker, "counter", func(context.Context) (int64, error) {
		return value.Load(), nil
	}, func(v int64, err error) {
		assert.NoError(t, err)
		got <- v
	})
	require.NoError(t, err)
	defer w.Stop()

	assert.Equal(t, int64(0), receive(t, got))

	value.Store(7)
	require.NoError(t, broker.Publish(ctx, "counter"))
	assert.Equal(t, int64(7), receive(t, got))
}

func TestWatch_DeliversFetchErrors(t *testing.T) {
	broker := events.NewLocalBroker()
	defer broker.Close()

	boom := errors.New("boom")
	got := make(chan error, 1)

	w, err := Watch(context.Background(), broker, "t", func(context.Context) (string, error) {
		return "", boom
	}, func(_ string, err error) {
		got <- err
	})
	require.NoError(t, err)
	defer w.Stop()

	assert.ErrorIs(t, receive(t, got), boom)
}

func TestWatch_StopEndsDelivery(t *testing.T) {
	ctx := context.Background()
	broker := events.NewLocalBroker()
	defer broker.Close()

	var calls atomic.Int32
	first := make(chan struct{}, 1)

	w, err := Watch(ctx, broker, "t", func(context.Context) (int, error) {
		return 0, nil
	}, func(int, error) {
		calls.Add(1)
		select {
		case first <- struct{}{}:
		default:
		}
	})
	require.NoError(t, err)
	receive(t, first)

	w.Stop()
	select {
	case <-w.Done():
	default:
		t.Fatal("Done must be closed after Stop")
	}
	assert.Equal(t, 0, broker.Subscribers("t"))

	before := calls.Load()
	require.NoError(t, broker.Publish(ctx, "t"))
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, before, calls.Load())
}

func TestWatch_ContextCancelStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	broker := events.NewLocalBroker()
	defer broker.Close()

	w, err := Watch(ctx, broker, "t", func(context.Context) (int, error) { return 0, nil }, func(int, error) {})
	require.NoError(t, err)

	cancel()
	select {
	case <-w.Done():
	case <-time.After(waitTimeout):
		t.Fatal("watcher did not stop on cancel")
	}
}

func TestListeners_SetReplacesAndStopAll(t *testing.T) {
	ctx := context.Background()
	broker := events.NewLocalBroker()
	defer broker.Close()

	newWatcher := func(topic string) *Watcher {
		w, err := Watch(ctx, broker, topic, func(context.Context) (int, error) { return 0, nil }, func(int, error) {})
		require.NoError(t, err)
		return w
	}

	l := NewListeners()
	first := newWatcher("a")
	l.Set("chan", first)
	assert.True(t, l.Has("chan"))

	second := newWatcher("b")
	l.Set("chan", second)
	select {
	case <-first.Done():
	default:
		t.Fatal("replaced watcher must be stopped")
	}
	assert.Equal(t, 1, l.Len())

	l.Set("other", newWatcher("c"))
	assert.Equal(t, 2, l.Len())

	assert.True(t, l.Stop("other"))
	assert.False(t, l.Stop("other"))

	l.StopAll()
	assert.Equal(t, 0, l.Len())
	select {
	case <-second.Done():
	default:
		t.Fatal("StopAll must stop every watcher")
	}
}
