package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

var (
	// ErrKafkaTopicRequired is returned when the topic is empty.
	ErrKafkaTopicRequired = errors.New("messaging: kafka topic is required")
	// ErrKafkaBrokersRequired is returned when no Kafka brokers are configured.
	ErrKafkaBrokersRequired = errors.New("messaging: kafka brokers are required")
	// ErrKafkaGroupRequired is returned when Consume is called without a consumer group.
	ErrKafkaGroupRequired = errors.New("messaging: kafka consumer group is required")
)

// KafkaConfig configures the Kafka implementation.
type KafkaConfig struct {
	Brokers []string
	// Dialer is optional; kafka-go's default dialer is used when nil.
	Dialer *kafka.Dialer
}

// Kafka is a messaging implementation backed by kafka-go.
type Kafka struct {
	brokers []string
	dialer  *kafka.Dialer

	mu      sync.Mutex
	writers map[string]*kafka.Writer
	closed  bool
}

// NewKafka constructs a Kafka messaging client. Connections are opened lazily.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, ErrKafkaBrokersRequired
	}

	return &Kafka{
		brokers: append([]string{}, cfg.Brokers...),
		dialer:  cfg.Dialer,
		writers: map[string]*kafka.Writer{},
	}, nil
}

// Close shuts down all writers. Readers close when their Consume call returns.
func (k *Kafka) Close() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.closed {
		return nil
	}
	k.closed = true

	var closeErr error
	for _, w := range k.writers {
		closeErr = errors.Join(closeErr, w.Close())
	}
	k.writers = nil
	return closeErr
}

func (k *Kafka) writer(topic string) (*kafka.Writer, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.closed {
		return nil, io.ErrClosedPipe
	}
	if w, ok := k.writers[topic]; ok {
		return w, nil
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(k.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
	if k.dialer != nil {
		w.Transport = &kafka.Transport{Dial: k.dialer.DialFunc, TLS: k.dialer.TLS, SASL: k.dialer.SASLMechanism}
	}
	k.writers[topic] = w
	return w, nil
}

// Publish writes a message to a Kafka topic, keyed for partitioning.
func (k *Kafka) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if destination == "" {
		return PublishResult{}, ErrKafkaTopicRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	w, err := k.writer(destination)
	if err != nil {
		return PublishResult{}, err
	}

	kmsg := kafka.Message{Key: msg.Key, Value: msg.Body, Time: time.Now()}
	for _, h := range msg.Headers {
		if h.Key != "" {
			kmsg.Headers = append(kmsg.Headers, kafka.Header{Key: h.Key, Value: h.Value})
		}
	}

	if err := w.WriteMessages(ctx, kmsg); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: kafka publish: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: kmsg.Time}, nil
}

// Consume reads a topic as part of a consumer group. Offsets are committed on Ack.
func (k *Kafka) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	switch {
	case source == "":
		return ErrKafkaTopicRequired
	case handler == nil:
		return ErrHandlerRequired
	case co.group == "":
		return ErrKafkaGroupRequired
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  k.brokers,
		GroupID:  co.group,
		Topic:    source,
		MaxBytes: 10e6,
		Dialer:   k.dialer,
	})

	msgCh := make(chan kafka.Message)
	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for m := range msgCh {
				dispatch(ctx, DriverKafka, handler, &kafkaMessage{reader: reader, msg: m}, co.autoAck)
			}
		})
	}

	var fetchErr error
	for {
		m, err := reader.FetchMessage(ctx)
		if err != nil {
			fetchErr = err
			break
		}
		select {
		case msgCh <- m:
		case <-ctx.Done():
		}
	}

	close(msgCh)
	wg.Wait()
	closeErr := reader.Close()

	if errors.Is(fetchErr, context.Canceled) || errors.Is(fetchErr, context.DeadlineExceeded) {
		return errors.Join(fetchErr, closeErr)
	}
	return errors.Join(fmt.Errorf("messaging: kafka consume: %w", fetchErr), closeErr)
}

type kafkaMessage struct {
	reader    *kafka.Reader
	msg       kafka.Message
	responded atomic.Bool
}

func (m *kafkaMessage) Body() []byte { return m.msg.Value }
func (m *kafkaMessage) Key() []byte  { return m.msg.Key }

func (m *kafkaMessage) Headers() []Header {
	out := make([]Header, 0, len(m.msg.Headers))
	for _, h := range m.msg.Headers {
		out = append(out, Header{Key: h.Key, Value: h.Value})
	}
	return out
}

func (m *kafkaMessage) ID() string {
	return fmt.Sprintf("%s/%d/%d", m.msg.Topic, m.msg.Partition, m.msg.Offset)
}

func (m *kafkaMessage) Source() string       { return m.msg.Topic }
func (m *kafkaMessage) Timestamp() time.Time { return m.msg.Time }

func (m *kafkaMessage) Ack(ctx context.Context) error {
	if m.responded.Swap(true) {
		return nil
	}
	return m.reader.CommitMessages(ctx, m.msg)
}

// Nack leaves the offset uncommitted so the group redelivers after a rebalance.
func (m *kafkaMessage) Nack(context.Context) error {
	m.responded.Store(true)
	return nil
}
