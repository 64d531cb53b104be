package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mockbird/mockbird/pkg/capture"
)

func TestHubPublishReachesSubscribers(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	ch1, cancel1, err := hub.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := hub.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	defer cancel2()
	other, cancelOther, err := hub.Subscribe(ctx, "user-2")
	require.NoError(t, err)
	defer cancelOther()

	ev := &Event{Type: EventTypeCaptured, Capture: &capture.Capture{ID: capture.NewID(time.Now())}}
	require.NoError(t, hub.Publish(ctx, "user-1", ev))

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case got := <-ch:
			assert.Equal(t, ev.Capture.ID, got.Capture.ID)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}

	select {
	case <-other:
		t.Fatal("event leaked across users")
	default:
	}
}

func TestHubPublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(nil)
	assert.NoError(t, hub.Publish(context.Background(), "nobody", &Event{Type: EventTypeCaptured}))
}

func TestHubCancelStopsDelivery(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	cancel()
	cancel() // second call is safe

	_, open := <-ch
	assert.False(t, open)

	require.NoError(t, hub.Publish(ctx, "user-1", &Event{Type: EventTypeCaptured}))
}

func TestHubCloseClosesSubscriberChannels(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	ch1, cancel1, err := hub.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	ch2, _, err := hub.Subscribe(ctx, "user-2")
	require.NoError(t, err)

	require.NoError(t, hub.Close())

	for _, ch := range []<-chan *Event{ch1, ch2} {
		select {
		case _, open := <-ch:
			assert.False(t, open)
		case <-time.After(time.Second):
			t.Fatal("subscriber channel still open after close")
		}
	}

	cancel1() // cancel after close is safe
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	hub := NewHub(nil)
	ctx := context.Background()

	ch, cancel, err := hub.Subscribe(ctx, "user-1")
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < subscriberBuffer+8; i++ {
		require.NoError(t, hub.Publish(ctx, "user-1", &Event{Type: EventTypeCaptured}))
	}

	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			assert.Equal(t, subscriberBuffer, received)
			return
		}
	}
}
