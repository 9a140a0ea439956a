// Package bus implements the fixed-topic Event Bus (C4): a bounded,
// drop-oldest-on-overflow pub/sub fan-out over a small set of topics.
package bus

import (
	"fmt"
	"sync"

	"github.com/zeromicro/go-zero/core/logx"
)

// Topic is one of the fixed set of subjects the bus carries.
type Topic string

const (
	TopicLeaderboardUpdate Topic = "leaderboard:update"
	TopicLeaderboardError  Topic = "leaderboard:error"
	TopicPricesUpdate      Topic = "prices:update"
)

// KlineUpdateTopic builds the per-(symbol,interval) kline topic, the one
// topic family that isn't a compile-time constant.
func KlineUpdateTopic(symbol, interval string) Topic {
	return Topic(fmt.Sprintf("klines:update:%s:%s", symbol, interval))
}

const defaultQueueDepth = 64

// Event is one published message.
type Event struct {
	Topic   Topic
	Payload interface{}
}

type subscriber struct {
	id       uint64
	ch       chan Event
	done     chan struct{}
	overflow uint64

	mu sync.Mutex // guards overflow + closed
	closed bool
}

// Bus is the process-wide Event Bus. The zero value is not usable; use New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[Topic]map[uint64]*subscriber
	nextID      uint64
	queueDepth  int
}

// New constructs a Bus. queueDepth bounds each subscriber's per-topic
// channel; 0 selects a sane default.
func New(queueDepth int) *Bus {
	if queueDepth <= 0 {
		queueDepth = defaultQueueDepth
	}
	return &Bus{
		subscribers: make(map[Topic]map[uint64]*subscriber),
		queueDepth:  queueDepth,
	}
}

// Subscription is returned by Subscribe; read Events until Unsubscribe.
type Subscription struct {
	Events <-chan Event

	bus   *Bus
	topic Topic
	sub   *subscriber
}

// Subscribe registers a new bounded-queue subscriber for topic.
func (b *Bus) Subscribe(topic Topic) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	sub := &subscriber{
		id:   b.nextID,
		ch:   make(chan Event, b.queueDepth),
		done: make(chan struct{}),
	}
	if b.subscribers[topic] == nil {
		b.subscribers[topic] = make(map[uint64]*subscriber)
	}
	b.subscribers[topic][sub.id] = sub
	return &Subscription{Events: sub.ch, bus: b, topic: topic, sub: sub}
}

// Unsubscribe synchronously detaches the subscription: once it returns,
// no further callback/read will observe a new event on this channel.
func (s *Subscription) Unsubscribe() {
	s.bus.mu.Lock()
	delete(s.bus.subscribers[s.topic], s.sub.id)
	s.bus.mu.Unlock()

	s.sub.mu.Lock()
	if !s.sub.closed {
		s.sub.closed = true
		close(s.sub.ch)
	}
	s.sub.mu.Unlock()
}

// OverflowCount reports how many events this subscriber has dropped.
func (s *Subscription) OverflowCount() uint64 {
	s.sub.mu.Lock()
	defer s.sub.mu.Unlock()
	return s.sub.overflow
}

// Publish fans an event out to every topic subscriber without blocking.
// A subscriber whose queue is full has its oldest queued event dropped
// to make room, and its overflow counter increments; the publisher
// itself never blocks or errors because of a slow subscriber.
func (b *Bus) Publish(topic Topic, payload interface{}) error {
	b.mu.RLock()
	subs := make([]*subscriber, 0, len(b.subscribers[topic]))
	for _, s := range b.subscribers[topic] {
		subs = append(subs, s)
	}
	b.mu.RUnlock()

	ev := Event{Topic: topic, Payload: payload}
	for _, s := range subs {
		deliver(s, ev)
	}
	return nil
}

func deliver(s *subscriber, ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- ev:
		return
	default:
	}
	// Queue full: drop the oldest queued event, then enqueue the new one.
	select {
	case <-s.ch:
		s.overflow++
		logx.Debugf("bus: subscriber %d overflow on topic %s (total=%d)", s.id, ev.Topic, s.overflow)
	default:
	}
	select {
	case s.ch <- ev:
	default:
		// Another goroutine drained concurrently; best effort only.
	}
}
