package mqtt

import (
	"crypto/tls"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/ctlremap/internal/infrastructure/config"
)

const (
	// defaultConnectTimeout bounds the initial dial; reconnects retry
	// forever on their own schedule.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout bounds waiting for broker acknowledgment of
	// publishes, subscribes, and unsubscribes.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is how many milliseconds in-flight
	// messages get to drain during Close.
	defaultDisconnectQuiesce = 1000

	// defaultKeepAlive is the PING interval for dead-connection
	// detection.
	defaultKeepAlive = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// brokerOptions translates the mqtt section of config.yaml into paho
// client options: broker URL, credentials, clean session, and
// auto-reconnect with exponential backoff between the configured
// initial and max delays.
func brokerOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// No persistent session on the broker. State topics are retained,
	// so a fresh session catches up immediately anyway.
	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(time.Duration(cfg.Reconnect.InitialDelay) * time.Second)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// setWill registers the Last Will on the system status topic. The
// broker publishes it if the daemon dies without saying goodbye, so
// subscribers know the retained element topics have gone stale. QoS 1
// and retained, like the status messages the daemon publishes itself.
func setWill(opts *pahomqtt.ClientOptions, topics Topics, clientID string) {
	payload := statusPayload("offline", clientID, "unexpected_disconnect")
	opts.SetWill(topics.SystemStatus(), payload, 1, true)
}

// statusPayload builds the JSON for the system status topic. The reason
// field distinguishes a graceful shutdown from the Will's crash notice
// and is omitted for online announcements.
func statusPayload(status, clientID, reason string) string {
	ts := time.Now().UTC().Format(time.RFC3339)
	if reason == "" {
		return fmt.Sprintf(`{"status":%q,"client_id":%q,"timestamp":%q}`, status, clientID, ts)
	}
	return fmt.Sprintf(`{"status":%q,"client_id":%q,"reason":%q,"timestamp":%q}`, status, clientID, reason, ts)
}
