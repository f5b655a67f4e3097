package mqtt

import "errors"

// Sentinel errors for the broker client. Callers branch with errors.Is;
// failures with more to say arrive wrapped around one of these.
var (
	// ErrConnectionFailed covers a refused, timed-out, or rejected
	// initial connect. Once connected, the client reconnects on its own
	// and never returns this again.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected is returned for publish, subscribe, and health
	// operations attempted while the broker is away.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrPublishFailed wraps broker-side publish rejections, timeouts,
	// and oversized payloads.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed wraps subscription rejections and timeouts,
	// including a nil handler.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrUnsubscribeFailed wraps unsubscribe rejections and timeouts.
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects QoS levels outside 0..2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects empty topics.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
