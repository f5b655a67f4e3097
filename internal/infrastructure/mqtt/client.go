package mqtt

import (
	"context"
	"fmt"
	"sync"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ctlremap/internal/infrastructure/config"
)

// Client is the daemon's connection to the MQTT broker. It wraps
// paho.mqtt.golang with the pieces the mirror needs: retained publishes,
// tracked subscriptions that survive reconnects, a Last Will for crash
// detection, and status announcements on the system topic.
//
// All methods are safe for concurrent use. Reconnection is automatic
// with exponential backoff; the subscriptions registered through
// Subscribe are replayed on every reconnect.
type Client struct {
	client  pahomqtt.Client
	options *pahomqtt.ClientOptions
	cfg     config.MQTTConfig
	topics  Topics

	// subMu guards the subscription ledger replayed on reconnect.
	subMu         sync.RWMutex
	subscriptions map[string]subscription

	// mu guards connection state, lifecycle callbacks, and the logger.
	mu           sync.RWMutex
	connected    bool
	onConnect    func()
	onDisconnect func(err error)
	logger       Logger
}

// Logger is the slice of logging.Logger the client needs for handler
// panics and errors. *slog.Logger satisfies it too.
type Logger interface {
	Error(msg string, args ...any)
	Warn(msg string, args ...any)
}

// MessageHandler receives inbound messages. The paho library invokes
// handlers on its own goroutines; a handler that blocks stalls message
// dispatch. A returned error is logged and the message is still acked.
type MessageHandler func(topic string, payload []byte) error

// Connect dials the broker described by the mqtt section of config.yaml
// and waits for the initial connection. The Last Will is registered
// before dialing, so a later crash flips the system status topic to
// offline without the daemon's help. Once connected the client
// announces itself online on the same topic.
func Connect(cfg config.MQTTConfig) (*Client, error) {
	topics := NewTopics(cfg.BaseTopic)
	opts := brokerOptions(cfg)
	setWill(opts, topics, cfg.Broker.ClientID)

	c := &Client{
		cfg:           cfg,
		options:       opts,
		topics:        topics,
		subscriptions: make(map[string]subscription),
	}

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		c.connectionUp()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		c.connectionLost(err)
	})

	c.client = pahomqtt.NewClient(opts)
	token := c.client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	// The OnConnect handler runs asynchronously and may not have fired
	// yet; mark connected here so IsConnected holds as soon as Connect
	// returns.
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	return c, nil
}

// Topics returns the topic builder rooted at this client's base topic.
func (c *Client) Topics() Topics {
	return c.topics
}

// connectionUp runs on every (re)connect: replay subscriptions, announce
// online, notify the callback.
func (c *Client) connectionUp() {
	c.mu.Lock()
	c.connected = true
	c.mu.Unlock()

	c.resubscribeAll()
	c.announceOnline()

	c.mu.RLock()
	callback := c.onConnect
	c.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

func (c *Client) connectionLost(err error) {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.mu.RLock()
	callback := c.onDisconnect
	c.mu.RUnlock()
	if callback != nil {
		callback(err)
	}
}

// resubscribeAll replays the subscription ledger after a reconnect.
// Failures are left to the next reconnect cycle.
func (c *Client) resubscribeAll() {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for _, sub := range c.subscriptions {
		c.client.Subscribe(sub.topic, sub.qos, c.wrapHandler(sub.handler))
	}
}

func (c *Client) announceOnline() {
	payload := statusPayload("online", c.cfg.Broker.ClientID, "")
	c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, payload)
}

// Close announces a graceful offline status, distinct from the Will's
// crash status, then disconnects with a quiesce period for in-flight
// messages. Always returns nil.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if c.IsConnected() {
		payload := statusPayload("offline", c.cfg.Broker.ClientID, "graceful_shutdown")
		token := c.client.Publish(c.topics.SystemStatus(), byte(c.cfg.QoS), true, payload)
		token.WaitTimeout(defaultPublishTimeout)
	}

	c.client.Disconnect(defaultDisconnectQuiesce)

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	return nil
}

// HealthCheck reports whether the broker connection is up.
func (c *Client) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("mqtt health check: %w", ctx.Err())
	default:
	}

	if !c.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// IsConnected reports the current connection state, combining the
// client's own record with the paho session state.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && c.client.IsConnected()
}

// SetOnConnect registers a callback for every successful connect,
// including reconnects.
func (c *Client) SetOnConnect(callback func()) {
	c.mu.Lock()
	c.onConnect = callback
	c.mu.Unlock()
}

// SetOnDisconnect registers a callback for lost connections. The error
// says why the broker went away.
func (c *Client) SetOnDisconnect(callback func(err error)) {
	c.mu.Lock()
	c.onDisconnect = callback
	c.mu.Unlock()
}

// SetLogger routes handler panics and errors somewhere visible. Without
// it they are swallowed.
func (c *Client) SetLogger(logger Logger) {
	c.mu.Lock()
	c.logger = logger
	c.mu.Unlock()
}

func (c *Client) currentLogger() Logger {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.logger
}

// waitToken waits out a paho token and wraps whatever went wrong around
// the given sentinel.
func waitToken(token pahomqtt.Token, sentinel error) error {
	if !token.WaitTimeout(defaultPublishTimeout) {
		return fmt.Errorf("%w: timeout after %v", sentinel, defaultPublishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", sentinel, err)
	}
	return nil
}
