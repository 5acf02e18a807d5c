package mqtt

import "fmt"

// SubscribeCommands routes every message on vehicle/{id}/command to h.
// The subscription is restored after each reconnect.
func (c *Client) SubscribeCommands(h MessageHandler) error {
	return c.subscribe(c.topics.Command(), h)
}

func (c *Client) subscribe(topic string, h MessageHandler) error {
	if h == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	// Registered first so a reconnect racing this call still restores it.
	c.mu.Lock()
	c.handlers[topic] = h
	c.mu.Unlock()

	token := c.paho.Subscribe(topic, c.qos, c.wrapHandler(h))
	var err error
	if token.WaitTimeout(defaultPublishTimeout) {
		err = token.Error()
	} else {
		err = fmt.Errorf("timeout after %v", defaultPublishTimeout)
	}
	if err != nil {
		c.mu.Lock()
		delete(c.handlers, topic)
		c.mu.Unlock()
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	c.logger.Info("MQTT subscribed", "topic", topic, "qos", c.qos)
	return nil
}
