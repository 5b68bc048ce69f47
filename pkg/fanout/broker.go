package fanout

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"vitalbridge.dev/telemetry-service/pkg/common"
)

const (
	EventVitalsUpdate  = "vitals:update"
	EventAlertCritical = "alert:critical"
	EventDeviceStatus  = "device:status-changed"
)

// subscriberBuffer bounds each subscriber's channel. A subscriber that falls
// this far behind starts losing events; delivery is at-most-once.
const subscriberBuffer = 64

// mirrorChannelPrefix namespaces the redis pub/sub channels used to mirror
// events to sibling processes.
const mirrorChannelPrefix = "telemetry."

const mirrorTimeout = 2 * time.Second

func DeviceTopic(id string) string { return "device:" + id }
func PatientTopic(id string) string { return "patient:" + id }
func RoomTopic(name string) string { return "room:" + name }
func MirrorChannel(tp string) string { return mirrorChannelPrefix + tp }

type Event struct {
	Type    string    `json:"type"`
	Topic   string    `json:"topic"`
	At      time.Time `json:"at"`
	Payload any       `json:"payload"`
}

// Subscriber receives events for its topics on C. The channel is closed on
// Unsubscribe; a newly created subscriber only sees events published after it
// was added to a topic.
type Subscriber struct {
	C chan Event

	mu     sync.Mutex
	topics map[string]struct{}
	closed bool
}

func (s *Subscriber) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.topics))
	for tp := range s.topics {
		out = append(out, tp)
	}
	return out
}

// send delivers ev without blocking. The lock orders the send before any
// close of C from Unsubscribe; a closed subscriber reports open=false.
func (s *Subscriber) send(ev Event) (sent, open bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, false
	}
	select {
	case s.C <- ev:
		return true, true
	default:
		return false, true
	}
}

// Broker distributes events to in-process subscribers grouped by topic, and
// optionally mirrors every event onto redis pub/sub. Publication is
// fire-and-forget per subscriber: a full subscriber channel drops the event
// rather than blocking the publisher.
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{}

	mirror  *redis.Client
	dropped atomic.Uint64
}

// New creates a broker. mirror may be nil to disable the redis mirror.
func New(mirror *redis.Client) *Broker {
	return &Broker{
		subs:   make(map[string]map[*Subscriber]struct{}),
		mirror: mirror,
	}
}

func (b *Broker) Subscribe(topics ...string) *Subscriber {
	sub := &Subscriber{
		C:      make(chan Event, subscriberBuffer),
		topics: make(map[string]struct{}),
	}
	for _, tp := range topics {
		b.AddTopic(sub, tp)
	}
	return sub
}

func (b *Broker) AddTopic(sub *Subscriber, topic string) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.topics[topic] = struct{}{}
	sub.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.subs[topic]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.subs[topic] = set
	}
	set[sub] = struct{}{}
}

func (b *Broker) RemoveTopic(sub *Subscriber, topic string) {
	sub.mu.Lock()
	delete(sub.topics, topic)
	sub.mu.Unlock()

	b.mu.Lock()
	defer b.mu.Unlock()
	if set, ok := b.subs[topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, topic)
		}
	}
}

func (b *Broker) Unsubscribe(sub *Subscriber) {
	sub.mu.Lock()
	if sub.closed {
		sub.mu.Unlock()
		return
	}
	sub.closed = true
	topics := make([]string, 0, len(sub.topics))
	for tp := range sub.topics {
		topics = append(topics, tp)
	}
	sub.topics = make(map[string]struct{})
	sub.mu.Unlock()

	b.mu.Lock()
	for _, tp := range topics {
		if set, ok := b.subs[tp]; ok {
			delete(set, sub)
			if len(set) == 0 {
				delete(b.subs, tp)
			}
		}
	}
	b.mu.Unlock()

	close(sub.C)
}

// Publish delivers the event to every subscriber of the topic without
// blocking: readers holding only the read lock never contend with publishes
// to unrelated topics, and slow subscribers lose the event.
func (b *Broker) Publish(topic string, ev Event) {
	ev.Topic = topic
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	b.mu.RLock()
	var targets []*Subscriber
	if set, ok := b.subs[topic]; ok {
		targets = make([]*Subscriber, 0, len(set))
		for sub := range set {
			targets = append(targets, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range targets {
		if sent, open := sub.send(ev); !sent && open {
			b.dropped.Add(1)
		}
	}

	if b.mirror != nil {
		go b.mirrorPublish(topic, ev)
	}
}

// Dropped reports how many events were lost to slow subscribers.
func (b *Broker) Dropped() uint64 {
	return b.dropped.Load()
}

func (b *Broker) mirrorPublish(topic string, ev Event) {
	logger := common.GetLoggerWith(
		common.LoggerNameFanout,
		zap.String(common.LoggerFieldCategory, common.LoggerCategoryPublish),
	)

	ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
	defer cancel()

	payload, err := json.Marshal(ev)
	if err != nil {
		logger.Warn("Mirror marshal failed", zap.Error(err))
		return
	}
	if err := b.mirror.Publish(ctx, MirrorChannel(topic), payload).Err(); err != nil {
		logger.Warn("Mirror publish failed",
			zap.String("topic", topic),
			zap.Error(err))
	}
}
