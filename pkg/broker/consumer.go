package broker

import (
	"context"
	"log"
	"strings"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler receives the subscription topic and the delivered message.
type Handler func(topic string, message mqtt.Message) error

type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// QoSFor picks the subscription QoS. Node frames use QoS 1 so a broker
// restart does not silently drop the last value; redeliveries are
// deduplicated by the ingest side.
func QoSFor(topic string) byte {
	t := strings.TrimSpace(topic)
	if strings.HasPrefix(t, "event/") {
		return 1
	}
	if strings.Contains(t, "/node") {
		return 1
	}
	return 0
}

// MultiConsumer subscribes one handler to several topics. With paho's
// default ordered delivery every callback runs on the client's single router
// goroutine, one message after another.
//
// The connection uses a clean session, so the broker forgets subscriptions
// whenever the link drops. Pass OnConnect as Config.OnConnect and the topics
// are subscribed again after every reconnect.
type MultiConsumer struct {
	mu      sync.Mutex
	client  mqtt.Client
	topics  []string
	handler Handler
	active  bool
}

var _ IConsumer = (*MultiConsumer)(nil)

// NewMultiConsumer may be given a nil client; OnConnect supplies it later.
func NewMultiConsumer(client mqtt.Client, topics []string, handler Handler) *MultiConsumer {
	return &MultiConsumer{client: client, topics: topics, handler: handler}
}

func (m *MultiConsumer) SetHandler(handler Handler) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

// OnConnect records client and, while consuming, subscribes every topic on it.
func (m *MultiConsumer) OnConnect(client mqtt.Client) {
	m.mu.Lock()
	m.client = client
	active := m.active
	m.mu.Unlock()

	if active {
		m.subscribe(client)
	}
}

// ConsumeMessage subscribes and blocks until ctx is cancelled.
func (m *MultiConsumer) ConsumeMessage(ctx context.Context) {
	m.mu.Lock()
	m.active = true
	client := m.client
	m.mu.Unlock()

	if client != nil {
		m.subscribe(client)
	}

	<-ctx.Done()

	m.mu.Lock()
	m.active = false
	client = m.client
	m.mu.Unlock()
	if client != nil && client.IsConnectionOpen() {
		for _, topic := range m.topics {
			client.Unsubscribe(topic).Wait()
		}
	}
}

func (m *MultiConsumer) subscribe(client mqtt.Client) {
	for _, topic := range m.topics {
		topic := topic
		token := client.Subscribe(topic, QoSFor(topic), func(_ mqtt.Client, msg mqtt.Message) {
			m.mu.Lock()
			h := m.handler
			m.mu.Unlock()
			if h == nil {
				log.Printf("broker: no handler set for topic %s", topic)
				return
			}
			if err := h(topic, msg); err != nil {
				log.Printf("broker: handling message on %s: %v", msg.Topic(), err)
			}
		})
		if token.Wait() && token.Error() != nil {
			log.Printf("broker: subscribe %s: %v", topic, token.Error())
			continue
		}
		log.Printf("broker: subscribed to %s", topic)
	}
}
