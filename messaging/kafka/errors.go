package kafka

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTopicAlreadyExists is returned by AdminClient implementations when the broker
	// already has the topic. The provisioner treats it as success.
	ErrTopicAlreadyExists = errors.New("kafka: topic already exists")

	// ErrInvalidTopicSpec wraps TopicSpec validation failures.
	ErrInvalidTopicSpec = errors.New("kafka: invalid topic spec")

	// ErrPublisherClosed is returned by Publish once the publisher left the Ready state.
	ErrPublisherClosed = errors.New("kafka: publisher is closed")
)

// ProvisionError reports a topic creation failure other than "already exists".
type ProvisionError struct {
	Topic string
	Err   error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("kafka: provision topic %s: %v", e.Topic, e.Err)
}

func (e *ProvisionError) Unwrap() error { return e.Err }

// PublishError reports a failed submission to the transport or a publish on a closed publisher.
type PublishError struct {
	Topic string
	Err   error
}

func (e *PublishError) Error() string {
	return fmt.Sprintf("kafka: publish to %s: %v", e.Topic, e.Err)
}

func (e *PublishError) Unwrap() error { return e.Err }

// DrainTimeoutError is returned by Shutdown when the flush window elapsed with
// messages still queued. The transport handle has been released regardless.
type DrainTimeoutError struct {
	Topic     string
	Remaining int
	Timeout   time.Duration
}

func (e *DrainTimeoutError) Error() string {
	return fmt.Sprintf("kafka: drain %s: %d message(s) still queued after %s", e.Topic, e.Remaining, e.Timeout)
}
