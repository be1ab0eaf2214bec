package broker

import (
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

type IPublisher interface {
	PublishMessage(payload []byte) error
	PublishMessageQos(qos byte, retained bool, payload []byte) error
}

// Publisher sends to one fixed topic over the shared client.
type Publisher struct {
	client mqtt.Client
	topic  string
}

var _ IPublisher = (*Publisher)(nil)

func NewPublisher(client mqtt.Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// PublishMessage publishes at QoS 0.
func (p *Publisher) PublishMessage(payload []byte) error {
	return p.PublishMessageQos(0, false, payload)
}

func (p *Publisher) PublishMessageQos(qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(p.topic, qos, retained, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.topic, err)
	}
	return nil
}

func (p *Publisher) Topic() string { return p.topic }
