package messaging

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/samber/lo"
)

// ErrUnsupported is returned when a feature is not supported by the selected broker.
var ErrUnsupported = errors.New("messaging: unsupported operation")

// Messaging is a broker client that can publish and consume messages.
type Messaging interface {
	io.Closer

	Publisher
	Consumer
}

// Publisher publishes messages to a destination (topic or subject).
type Publisher interface {
	Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error)
}

// Consumer consumes messages from a source. Consume blocks until ctx is done
// or the subscription fails.
type Consumer interface {
	Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error
}

// Handler processes a received message. With auto-ack enabled a nil error
// acks the message and a non-nil error nacks it.
type Handler func(ctx context.Context, msg Message) error

// OutgoingMessage is a message to be published.
type OutgoingMessage struct {
	Body []byte
	// Key is used by Kafka for partitioning.
	Key []byte
	// Headers are dropped by brokers without header support (NSQ).
	Headers []Header
	// Delay defers delivery where supported.
	Delay time.Duration
}

// Header is a key/value pair used for message headers.
type Header struct {
	Key   string
	Value []byte
}

// HeaderValue returns the first value stored under key.
func HeaderValue(headers []Header, key string) (string, bool) {
	h, ok := lo.Find(headers, func(h Header) bool { return h.Key == key })
	if !ok {
		return "", false
	}
	return string(h.Value), true
}

// PublishResult carries optional broker-specific publish metadata.
type PublishResult struct {
	Topic     string
	Partition int32
	Offset    int64
	Timestamp time.Time
}

// Message is a received message.
type Message interface {
	Body() []byte
	Key() []byte
	Headers() []Header
	ID() string
	// Source is the topic or subject the message came from.
	Source() string
	Timestamp() time.Time

	// Ack acknowledges successful processing.
	Ack(ctx context.Context) error
	// Nack asks the broker to redeliver the message.
	Nack(ctx context.Context) error
}
