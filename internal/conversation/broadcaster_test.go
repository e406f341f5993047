// ABOUTME: Tests for the snapshot broadcaster
// ABOUTME: Covers fan-out, unsubscription, context cleanup, and slow subscribers

package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcaster_FanOut(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch1, _ := b.Subscribe(context.Background())
	ch2, _ := b.Subscribe(context.Background())

	b.Publish(Snapshot{State: State{Phase: PhaseLoading}})

	for _, ch := range []<-chan Snapshot{ch1, ch2} {
		select {
		case snap := <-ch:
			assert.Equal(t, PhaseLoading, snap.State.Phase)
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive snapshot")
		}
	}
}

func TestBroadcaster_UnsubscribeClosesChannel(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, subID := b.Subscribe(context.Background())
	b.Unsubscribe(subID)

	_, open := <-ch
	assert.False(t, open)

	// Double unsubscribe is a no-op
	b.Unsubscribe(subID)
}

func TestBroadcaster_ContextCancellationCleansUp(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _ := b.Subscribe(ctx)
	cancel()

	select {
	case _, open := <-ch:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("channel not closed after context cancellation")
	}
}

func TestBroadcaster_SlowSubscriberNeverBlocksPublish(t *testing.T) {
	b := NewBroadcaster(nil)
	defer b.Close()

	ch, _ := b.Subscribe(context.Background())

	finished := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBufferSize*2; i++ {
			b.Publish(Snapshot{})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a full subscriber channel")
	}

	// The buffer holds the first snapshots; the overflow was dropped
	require.Len(t, ch, subscriberBufferSize)
}
