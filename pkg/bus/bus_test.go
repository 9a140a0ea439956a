package bus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishDeliversFIFO(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(TopicPricesUpdate)
	defer sub.Unsubscribe()

	for i := 0; i < 3; i++ {
		require.NoError(t, b.Publish(TopicPricesUpdate, i))
	}

	for i := 0; i < 3; i++ {
		select {
		case ev := <-sub.Events:
			assert.Equal(t, i, ev.Payload)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for event %d", i)
		}
	}
}

func TestPublishNeverBlocksOnFullQueue(t *testing.T) {
	b := New(2)
	sub := b.Subscribe(TopicPricesUpdate)
	defer sub.Unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = b.Publish(TopicPricesUpdate, i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber queue")
	}

	assert.Greater(t, sub.OverflowCount(), uint64(0))
}

func TestOverflowDropsOldestKeepsNewest(t *testing.T) {
	b := New(2)
	sub := b.Subscribe(TopicPricesUpdate)
	defer sub.Unsubscribe()

	for i := 0; i < 5; i++ {
		require.NoError(t, b.Publish(TopicPricesUpdate, i))
	}

	var last int
	drained := 0
	for {
		select {
		case ev := <-sub.Events:
			last = ev.Payload.(int)
			drained++
		default:
			assert.Equal(t, 4, last, "newest event should survive overflow")
			assert.LessOrEqual(t, drained, 2)
			return
		}
	}
}

func TestUnsubscribeIsSynchronous(t *testing.T) {
	b := New(4)
	sub := b.Subscribe(TopicPricesUpdate)
	sub.Unsubscribe()

	require.NoError(t, b.Publish(TopicPricesUpdate, "after-unsubscribe"))

	select {
	case _, ok := <-sub.Events:
		assert.False(t, ok, "channel should be closed, not carrying a post-unsubscribe event")
	case <-time.After(100 * time.Millisecond):
		t.Fatal("expected closed channel to read immediately")
	}
}

func TestTopicsAreIndependent(t *testing.T) {
	b := New(4)
	prices := b.Subscribe(TopicPricesUpdate)
	defer prices.Unsubscribe()
	leaderboard := b.Subscribe(TopicLeaderboardUpdate)
	defer leaderboard.Unsubscribe()

	require.NoError(t, b.Publish(TopicPricesUpdate, "p"))

	select {
	case ev := <-prices.Events:
		assert.Equal(t, "p", ev.Payload)
	case <-time.After(time.Second):
		t.Fatal("expected event on prices topic")
	}

	select {
	case <-leaderboard.Events:
		t.Fatal("leaderboard subscriber should not see prices events")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestKlineUpdateTopicIsPerSymbolAndInterval(t *testing.T) {
	assert.Equal(t, Topic("klines:update:BTCUSDT:1m"), KlineUpdateTopic("BTCUSDT", "1m"))
	assert.NotEqual(t, KlineUpdateTopic("BTCUSDT", "1m"), KlineUpdateTopic("ETHUSDT", "1m"))
}
