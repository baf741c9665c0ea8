// Package transport abstracts the pub/sub fabric the goal client runs
// over. The action layer only sees Publishers and Subscribers obtained
// from a Node; topic wiring, QoS and serialization live behind this
// boundary.
package transport

import (
	"github.com/goalwire/goalwire/msgs"
)

// MessageEvent carries delivery metadata alongside an incoming message.
type MessageEvent struct {
	PublisherName string
	ReceiptTime   msgs.Time
}

// MessageHandler receives decoded messages for one subscription.
type MessageHandler func(msg msgs.Message, event MessageEvent)

// Publisher sends messages on one topic. Publish must not block on
// I/O from the caller's perspective; fabrics that need buffering do it
// internally.
type Publisher interface {
	Topic() string
	Publish(msg msgs.Message)
	Shutdown()
}

// Subscriber receives messages on one topic.
type Subscriber interface {
	Topic() string
	Shutdown()
}

// Node is one endpoint on the fabric, a factory for publishers and
// subscribers.
type Node interface {
	Name() string
	NewPublisher(topic string, msgType msgs.MessageType) (Publisher, error)
	NewSubscriber(topic string, msgType msgs.MessageType, handler MessageHandler) (Subscriber, error)
	Shutdown()
}
