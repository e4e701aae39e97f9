package realtime

import (
	"log"
	"sync"

	"github.com/auxillium/backend/internal/model/chat"
)

// EventType names the change notifications produced by the store.
type EventType string

const (
	EventChatCreated       EventType = "chat-created"
	EventChatStatusChanged EventType = "chat-status-changed"
	EventMessageAppended   EventType = "message-appended"
)

// Event carries the full updated entity so consumers never have to
// re-read shared state to apply it.
type Event struct {
	Type    EventType     `json:"type"`
	Chat    *chat.Chat    `json:"chat,omitempty"`
	Message *chat.Message `json:"message,omitempty"`
}

// TopicChats receives every chat-level change; queue views subscribe here.
const TopicChats = "chats"

// TopicChat is the per-conversation topic carrying messages and status
// changes for one chat.
func TopicChat(chatID string) string { return "chat." + chatID }

// Subscription is one consumer's ordered event stream. The consumer owns
// a local snapshot and applies received events; it never mutates shared
// state. A subscription that falls too far behind is closed rather than
// allowed to block publishers, and the consumer restarts it after
// re-fetching.
type Subscription struct {
	topic  string
	ch     chan Event
	once   sync.Once
	broker *Broker
}

// Events returns the receive side of the stream. The channel closes when
// the subscription is cancelled or dropped as a slow consumer.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Close cancels the subscription.
func (s *Subscription) Close() {
	s.broker.remove(s)
	s.once.Do(func() { close(s.ch) })
}

// Broker fans change events out to per-view subscriptions.
type Broker struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
}

// NewBroker creates an empty broker.
func NewBroker() *Broker {
	return &Broker{topics: make(map[string]map[*Subscription]struct{})}
}

const subscriptionBuffer = 64

// Subscribe opens a buffered event stream on topic.
func (b *Broker) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic:  topic,
		ch:     make(chan Event, subscriptionBuffer),
		broker: b,
	}

	b.mu.Lock()
	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// Publish delivers ev to every subscription on topic. Delivery never
// blocks: a subscriber with a full buffer is dropped and must restart.
func (b *Broker) Publish(topic string, ev Event) {
	b.mu.RLock()
	var dropped []*Subscription
	for sub := range b.topics[topic] {
		select {
		case sub.ch <- ev:
		default:
			dropped = append(dropped, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range dropped {
		log.Printf("[realtime] dropping slow subscriber on %s", topic)
		sub.Close()
	}
}

func (b *Broker) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if subs, ok := b.topics[sub.topic]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(b.topics, sub.topic)
		}
	}
}
