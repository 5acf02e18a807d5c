package mqtt

import (
	"encoding/json"
	"fmt"
)

// maxPayloadSize matches the usual broker limit of 1 MiB.
const maxPayloadSize = 1 << 20

// PublishState publishes a retained JSON snapshot on vehicle/{id}/state,
// so a dashboard that subscribes late still sees the current state.
func (c *Client) PublishState(state any) error {
	return c.publishJSON(c.topics.State(), state, true)
}

// PublishResult publishes the outcome of an MQTT command on
// vehicle/{id}/result. Results are not retained.
func (c *Client) PublishResult(result any) error {
	return c.publishJSON(c.topics.Result(), result, false)
}

func (c *Client) publishJSON(topic string, v any, retained bool) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: encoding payload: %w", ErrPublishFailed, err)
	}
	return c.Publish(topic, payload, retained)
}

// Publish sends payload on topic at the configured QoS and waits for the
// broker acknowledgement.
func (c *Client) Publish(topic string, payload []byte, retained bool) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if len(payload) > maxPayloadSize {
		return fmt.Errorf("%w: payload size %d exceeds maximum %d bytes", ErrPublishFailed, len(payload), maxPayloadSize)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	token := c.paho.Publish(topic, c.qos, retained, payload)
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}
