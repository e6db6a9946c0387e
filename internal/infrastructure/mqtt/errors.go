package mqtt

import "errors"

var (
	// ErrNotConnected means the broker link is down; paho keeps retrying
	// in the background.
	ErrNotConnected = errors.New("mqtt: client not connected")

	// ErrConnectionFailed wraps the first connection attempt's error.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	ErrPublishFailed     = errors.New("mqtt: publish failed")
	ErrSubscribeFailed   = errors.New("mqtt: subscribe failed")
	ErrUnsubscribeFailed = errors.New("mqtt: unsubscribe failed")

	// ErrInvalidQoS rejects anything outside 0, 1 and 2.
	ErrInvalidQoS = errors.New("mqtt: invalid QoS level (must be 0, 1, or 2)")

	// ErrInvalidTopic rejects an empty topic or filter.
	ErrInvalidTopic = errors.New("mqtt: topic cannot be empty")
)
