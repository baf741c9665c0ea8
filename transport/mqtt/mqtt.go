// Package mqtt implements the transport.Node abstraction on an MQTT
// broker via eclipse/paho.golang. Action topics map one-to-one onto
// MQTT topics under a configurable namespace.
package mqtt

import (
	"context"
	"crypto/tls"
	"net/url"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
	modular "github.com/edwinhayes/logrus-modular"
	"github.com/pkg/errors"

	"github.com/goalwire/goalwire/config"
	"github.com/goalwire/goalwire/msgs"
	"github.com/goalwire/goalwire/transport"
)

const publishTimeout = 10 * time.Second

// Node is one MQTT endpoint on the fabric.
type Node struct {
	cfg       config.MQTTConfig
	name      string
	namespace string
	logger    *modular.ModuleLogger
	cm        *autopaho.ConnectionManager

	mutex       sync.Mutex
	subscribers map[string][]*subscriber
}

// NewNode connects to the broker and returns a node named name. The
// namespace, when non-empty, prefixes every topic on the wire. The
// context governs the connection's lifetime; cancelling it stops
// reconnection attempts.
func NewNode(ctx context.Context, cfg config.MQTTConfig, name, namespace string, logger *modular.ModuleLogger) (*Node, error) {
	brokerURL, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, errors.Wrap(err, "error parsing mqtt broker URL")
	}

	n := &Node{
		cfg:         cfg,
		name:        name,
		namespace:   namespace,
		logger:      logger,
		subscribers: make(map[string][]*subscriber),
	}

	availTopic := n.availabilityTopic()

	pahoCfg := autopaho.ClientConfig{
		ServerUrls:      []*url.URL{brokerURL},
		KeepAlive:       cfg.KeepAliveSec,
		ConnectUsername: cfg.Username,
		ConnectPassword: []byte(cfg.Password),
		WillMessage: &paho.WillMessage{
			Topic:   availTopic,
			Payload: []byte("offline"),
			QoS:     1,
			Retain:  true,
		},
		OnConnectionUp: func(cm *autopaho.ConnectionManager, _ *paho.Connack) {
			logger := *n.logger
			logger.Infof("[MQTT] connected to broker %s", cfg.Broker)
			// The broker does not retain subscriptions across
			// reconnects; re-announce and re-subscribe every time.
			upCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
			defer cancel()
			n.publishAvailability(upCtx, cm, "online")
			n.resubscribe(upCtx, cm)
		},
		OnConnectError: func(err error) {
			logger := *n.logger
			logger.Warnf("[MQTT] connection error: %v", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
		},
	}

	if brokerURL.Scheme == "mqtts" || brokerURL.Scheme == "ssl" {
		pahoCfg.TlsCfg = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	cm, err := autopaho.NewConnection(ctx, pahoCfg)
	if err != nil {
		return nil, errors.Wrap(err, "error connecting to mqtt broker")
	}
	n.cm = cm

	cm.AddOnPublishReceived(func(pr autopaho.PublishReceived) (bool, error) {
		n.route(pr.Packet.Topic, pr.Packet.Payload)
		return true, nil
	})

	return n, nil
}

// AwaitConnection blocks until the broker connection is up or ctx
// expires.
func (n *Node) AwaitConnection(ctx context.Context) error {
	return n.cm.AwaitConnection(ctx)
}

// Name returns the node's name on the fabric; required for
// transport.Node.
func (n *Node) Name() string { return n.name }

// NewPublisher creates a publisher on one topic; required for
// transport.Node.
func (n *Node) NewPublisher(topic string, msgType msgs.MessageType) (transport.Publisher, error) {
	return &publisher{node: n, topic: topic}, nil
}

// NewSubscriber subscribes to one topic; required for transport.Node.
func (n *Node) NewSubscriber(topic string, msgType msgs.MessageType, handler transport.MessageHandler) (transport.Subscriber, error) {
	sub := &subscriber{node: n, topic: topic, msgType: msgType, handler: handler}

	n.mutex.Lock()
	first := len(n.subscribers[topic]) == 0
	n.subscribers[topic] = append(n.subscribers[topic], sub)
	n.mutex.Unlock()

	if first {
		subCtx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if _, err := n.cm.Subscribe(subCtx, &paho.Subscribe{
			Subscriptions: []paho.SubscribeOptions{{Topic: n.fullTopic(topic), QoS: n.cfg.QoS}},
		}); err != nil {
			// Not fatal: the OnConnectionUp re-subscribe covers the
			// not-yet-connected case.
			logger := *n.logger
			logger.Warnf("[MQTT] subscribe to %s failed: %v", topic, err)
		}
	}

	return sub, nil
}

// Shutdown announces the node offline and disconnects from the broker.
func (n *Node) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	n.publishAvailability(ctx, n.cm, "offline")
	if err := n.cm.Disconnect(ctx); err != nil {
		logger := *n.logger
		logger.Warnf("[MQTT] disconnect: %v", err)
	}
}

func (n *Node) fullTopic(topic string) string {
	if n.namespace == "" {
		return topic
	}
	return n.namespace + "/" + topic
}

// availabilityTopic is where the node's online/offline state is
// retained; the will message marks it offline on an unclean disconnect.
func (n *Node) availabilityTopic() string {
	return n.fullTopic(n.name + "/availability")
}

func (n *Node) publishAvailability(ctx context.Context, cm *autopaho.ConnectionManager, status string) {
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   n.availabilityTopic(),
		Payload: []byte(status),
		QoS:     1,
		Retain:  true,
	}); err != nil {
		logger := *n.logger
		logger.Warnf("[MQTT] availability publish failed: %v (status %s)", err, status)
	} else {
		logger := *n.logger
		logger.Infof("[MQTT] availability published: %s", status)
	}
}

func (n *Node) resubscribe(ctx context.Context, cm *autopaho.ConnectionManager) {
	n.mutex.Lock()
	topics := make([]string, 0, len(n.subscribers))
	for topic, subs := range n.subscribers {
		if len(subs) > 0 {
			topics = append(topics, topic)
		}
	}
	n.mutex.Unlock()

	if len(topics) == 0 {
		return
	}

	opts := make([]paho.SubscribeOptions, 0, len(topics))
	for _, topic := range topics {
		opts = append(opts, paho.SubscribeOptions{Topic: n.fullTopic(topic), QoS: n.cfg.QoS})
	}

	if _, err := cm.Subscribe(ctx, &paho.Subscribe{Subscriptions: opts}); err != nil {
		logger := *n.logger
		logger.Errorf("[MQTT] subscribe failed: %v (topics %v)", err, topics)
	}
}

func (n *Node) route(wireTopic string, payload []byte) {
	topic := wireTopic
	if n.namespace != "" {
		prefix := n.namespace + "/"
		if len(wireTopic) <= len(prefix) || wireTopic[:len(prefix)] != prefix {
			return
		}
		topic = wireTopic[len(prefix):]
	}

	n.mutex.Lock()
	subs := make([]*subscriber, len(n.subscribers[topic]))
	copy(subs, n.subscribers[topic])
	n.mutex.Unlock()

	event := transport.MessageEvent{ReceiptTime: msgs.Now()}
	for _, sub := range subs {
		msg := sub.msgType.NewMessage()
		if err := msg.Unmarshal(payload); err != nil {
			logger := *n.logger
			logger.Errorf("[MQTT] error decoding message on %s: %v", topic, err)
			continue
		}
		sub.handler(msg, event)
	}
}

// removeSubscriber drops one subscriber from the routing table and
// reports whether it was the topic's last.
func (n *Node) removeSubscriber(sub *subscriber) bool {
	n.mutex.Lock()
	defer n.mutex.Unlock()

	subs := n.subscribers[sub.topic]
	for i, s := range subs {
		if s == sub {
			subs[i] = subs[len(subs)-1]
			subs[len(subs)-1] = nil
			n.subscribers[sub.topic] = subs[:len(subs)-1]
			break
		}
	}
	return len(n.subscribers[sub.topic]) == 0
}

func (n *Node) unsubscribe(sub *subscriber) {
	if n.removeSubscriber(sub) {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if _, err := n.cm.Unsubscribe(ctx, &paho.Unsubscribe{Topics: []string{n.fullTopic(sub.topic)}}); err != nil {
			logger := *n.logger
			logger.Warnf("[MQTT] unsubscribe from %s failed: %v", sub.topic, err)
		}
	}
}

type publisher struct {
	node  *Node
	topic string
}

func (p *publisher) Topic() string { return p.topic }

// Publish encodes and sends the message. Delivery runs on its own
// goroutine so callers never block on broker acknowledgements.
func (p *publisher) Publish(msg msgs.Message) {
	payload, err := msg.Marshal()
	if err != nil {
		logger := *p.node.logger
		logger.Errorf("[MQTT] error encoding message on %s: %v", p.topic, err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if _, err := p.node.cm.Publish(ctx, &paho.Publish{
			Topic:   p.node.fullTopic(p.topic),
			Payload: payload,
			QoS:     p.node.cfg.QoS,
		}); err != nil {
			logger := *p.node.logger
			logger.Warnf("[MQTT] publish on %s failed: %v", p.topic, err)
		}
	}()
}

func (p *publisher) Shutdown() {}

type subscriber struct {
	node    *Node
	topic   string
	msgType msgs.MessageType
	handler transport.MessageHandler
}

func (s *subscriber) Topic() string { return s.topic }

func (s *subscriber) Shutdown() {
	s.node.unsubscribe(s)
}
