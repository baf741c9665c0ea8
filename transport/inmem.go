package transport

import (
	"sync"

	modular "github.com/edwinhayes/logrus-modular"

	"github.com/goalwire/goalwire/msgs"
)

// Bus is a synchronous in-memory fabric. Every publish is encoded to
// bytes and re-decoded through each subscriber's message type, so the
// codec path is exercised exactly as it would be on a real wire.
// Delivery happens on the publisher's goroutine, in publish order per
// topic.
type Bus struct {
	mutex       sync.RWMutex
	subscribers map[string][]*busSubscriber
	logger      *modular.ModuleLogger
}

// NewBus creates an empty fabric.
func NewBus(logger *modular.ModuleLogger) *Bus {
	return &Bus{
		subscribers: make(map[string][]*busSubscriber),
		logger:      logger,
	}
}

// NewNode creates a named endpoint on the bus.
func (b *Bus) NewNode(name string) Node {
	return &busNode{bus: b, name: name}
}

func (b *Bus) publish(topic, publisherName string, msg msgs.Message) {
	payload, err := msg.Marshal()
	if err != nil {
		logger := *b.logger
		logger.Errorf("[Bus] error encoding message on %s: %v", topic, err)
		return
	}

	b.mutex.RLock()
	subs := make([]*busSubscriber, len(b.subscribers[topic]))
	copy(subs, b.subscribers[topic])
	b.mutex.RUnlock()

	event := MessageEvent{PublisherName: publisherName, ReceiptTime: msgs.Now()}
	for _, sub := range subs {
		decoded := sub.msgType.NewMessage()
		if err := decoded.Unmarshal(payload); err != nil {
			logger := *b.logger
			logger.Errorf("[Bus] error decoding message on %s: %v", topic, err)
			continue
		}
		sub.handler(decoded, event)
	}
}

func (b *Bus) subscribe(sub *busSubscriber) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.subscribers[sub.topic] = append(b.subscribers[sub.topic], sub)
}

func (b *Bus) unsubscribe(sub *busSubscriber) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	subs := b.subscribers[sub.topic]
	for i, s := range subs {
		if s == sub {
			subs[i] = subs[len(subs)-1]
			subs[len(subs)-1] = nil
			b.subscribers[sub.topic] = subs[:len(subs)-1]
			break
		}
	}
}

type busNode struct {
	bus  *Bus
	name string
}

func (n *busNode) Name() string { return n.name }

func (n *busNode) NewPublisher(topic string, msgType msgs.MessageType) (Publisher, error) {
	return &busPublisher{node: n, topic: topic}, nil
}

func (n *busNode) NewSubscriber(topic string, msgType msgs.MessageType, handler MessageHandler) (Subscriber, error) {
	sub := &busSubscriber{node: n, topic: topic, msgType: msgType, handler: handler}
	n.bus.subscribe(sub)
	return sub, nil
}

func (n *busNode) Shutdown() {
	n.bus.mutex.Lock()
	defer n.bus.mutex.Unlock()

	for topic, subs := range n.bus.subscribers {
		kept := subs[:0]
		for _, s := range subs {
			if s.node != n {
				kept = append(kept, s)
			}
		}
		n.bus.subscribers[topic] = kept
	}
}

type busPublisher struct {
	node  *busNode
	topic string
}

func (p *busPublisher) Topic() string { return p.topic }

func (p *busPublisher) Publish(msg msgs.Message) {
	p.node.bus.publish(p.topic, p.node.name, msg)
}

func (p *busPublisher) Shutdown() {}

type busSubscriber struct {
	node    *busNode
	topic   string
	msgType msgs.MessageType
	handler MessageHandler
}

func (s *busSubscriber) Topic() string { return s.topic }

func (s *busSubscriber) Shutdown() {
	s.node.bus.unsubscribe(s)
}
