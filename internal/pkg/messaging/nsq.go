package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	nsq "github.com/nsqio/go-nsq"
)

var (
	// ErrNSQTopicRequired is returned when the topic is empty.
	ErrNSQTopicRequired = errors.New("messaging: nsq topic is required")
	// ErrNSQChannelRequired is returned when the channel is empty.
	ErrNSQChannelRequired = errors.New("messaging: nsq channel is required")
	// ErrNSQProducerAddrRequired is returned when the producer address is missing.
	ErrNSQProducerAddrRequired = errors.New("messaging: nsq producer address is required")
	// ErrNSQConsumerAddrsRequired is returned when no nsqd/lookupd consumer addresses are configured.
	ErrNSQConsumerAddrsRequired = errors.New("messaging: nsq consumer nsqd/lookupd addresses are required")
)

// NSQConfig configures the NSQ implementation.
type NSQConfig struct {
	ProducerAddr         string
	ConsumerNSQDAddrs    []string
	ConsumerLookupdAddrs []string
}

// NSQ is a messaging implementation backed by NSQ. NSQ has no message
// headers, so OutgoingMessage.Headers are not transmitted.
type NSQ struct {
	producer *nsq.Producer
	cfg      NSQConfig
}

// NewNSQ constructs an NSQ messaging client.
func NewNSQ(cfg NSQConfig) (*NSQ, error) {
	n := &NSQ{cfg: cfg}
	if cfg.ProducerAddr == "" {
		return n, nil
	}

	p, err := nsq.NewProducer(cfg.ProducerAddr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("messaging: nsq new producer: %w", err)
	}
	p.SetLoggerLevel(nsq.LogLevelError)
	n.producer = p

	return n, nil
}

// Close stops the producer. Consumers stop when their Consume call returns.
func (n *NSQ) Close() error {
	if n.producer != nil {
		n.producer.Stop()
	}
	return nil
}

// Publish sends a message to an NSQ topic, deferred when msg.Delay is set.
func (n *NSQ) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if err := ctx.Err(); err != nil {
		return PublishResult{}, err
	}
	if destination == "" {
		return PublishResult{}, ErrNSQTopicRequired
	}
	if n.producer == nil {
		return PublishResult{}, ErrNSQProducerAddrRequired
	}

	var err error
	if msg.Delay > 0 {
		err = n.producer.DeferredPublish(destination, msg.Delay, msg.Body)
	} else {
		err = n.producer.Publish(destination, msg.Body)
	}
	if err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nsq publish: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}

// Consume reads a topic through a channel until ctx is done.
func (n *NSQ) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	co := newConsumeOptions(opts...)
	switch {
	case source == "":
		return ErrNSQTopicRequired
	case handler == nil:
		return ErrHandlerRequired
	case co.channel == "":
		return ErrNSQChannelRequired
	case len(n.cfg.ConsumerNSQDAddrs) == 0 && len(n.cfg.ConsumerLookupdAddrs) == 0:
		return ErrNSQConsumerAddrsRequired
	}

	ccfg := nsq.NewConfig()
	ccfg.MaxInFlight = max(co.maxInFlight, co.concurrency)

	consumer, err := nsq.NewConsumer(source, co.channel, ccfg)
	if err != nil {
		return fmt.Errorf("messaging: nsq new consumer: %w", err)
	}
	consumer.SetLoggerLevel(nsq.LogLevelError)
	consumer.AddConcurrentHandlers(nsq.HandlerFunc(func(m *nsq.Message) error {
		m.DisableAutoResponse()
		dispatch(ctx, DriverNSQ, handler, &nsqMessage{topic: source, msg: m}, co.autoAck)
		return nil
	}), co.concurrency)

	if len(n.cfg.ConsumerLookupdAddrs) > 0 {
		err = consumer.ConnectToNSQLookupds(n.cfg.ConsumerLookupdAddrs)
	} else {
		err = consumer.ConnectToNSQDs(n.cfg.ConsumerNSQDAddrs)
	}
	if err != nil {
		consumer.Stop()
		<-consumer.StopChan
		return fmt.Errorf("messaging: nsq connect: %w", err)
	}

	select {
	case <-ctx.Done():
		consumer.Stop()
		<-consumer.StopChan
		return ctx.Err()
	case <-consumer.StopChan:
		return nil
	}
}

type nsqMessage struct {
	topic     string
	msg       *nsq.Message
	responded atomic.Bool
}

func (m *nsqMessage) Body() []byte         { return m.msg.Body }
func (m *nsqMessage) Key() []byte          { return nil }
func (m *nsqMessage) Headers() []Header    { return nil }
func (m *nsqMessage) ID() string           { return fmt.Sprintf("%x", m.msg.ID) }
func (m *nsqMessage) Source() string       { return m.topic }
func (m *nsqMessage) Timestamp() time.Time { return time.Unix(0, m.msg.Timestamp) }

func (m *nsqMessage) Ack(context.Context) error {
	if !m.responded.Swap(true) {
		m.msg.Finish()
	}
	return nil
}

func (m *nsqMessage) Nack(context.Context) error {
	if !m.responded.Swap(true) {
		m.msg.Requeue(-1)
	}
	return nil
}
