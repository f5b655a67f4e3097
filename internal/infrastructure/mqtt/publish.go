package mqtt

import "fmt"

// maxPayloadSize caps publishes at 1MB, in line with common broker
// limits. Element payloads are tiny; this only guards against bugs.
const maxPayloadSize = 1 << 20

// Publish sends a payload to a topic and waits for the broker to accept
// it. Retained messages replace the broker's stored copy for the topic,
// which is how the element value and info topics always reflect current
// state; the event stream publishes unretained.
//
//	topic := client.Topics().ElementValue(42)
//	err := client.Publish(topic, []byte(`{"values":[80,80]}`), 1, true)
func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if qos > maxQoS {
		return ErrInvalidQoS
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes",
			ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	return waitToken(c.client.Publish(topic, qos, retained, payload), ErrPublishFailed)
}

// PublishRetained publishes retained with the configured default QoS.
// The gateway uses it for all state topics; a nil payload clears the
// broker's retained copy, which is how element topics disappear when
// the control they mirror does.
func (c *Client) PublishRetained(topic string, payload []byte) error {
	return c.Publish(topic, payload, byte(c.cfg.QoS), true)
}
