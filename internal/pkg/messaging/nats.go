package messaging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"
)

var (
	// ErrNATSSubjectRequired is returned when the subject is empty.
	ErrNATSSubjectRequired = errors.New("messaging: nats subject is required")
	// ErrNATSURLRequired is returned when the NATS server URL is missing.
	ErrNATSURLRequired = errors.New("messaging: nats url is required")
	// ErrHandlerRequired is returned when Consume is called with a nil handler.
	ErrHandlerRequired = errors.New("messaging: handler is required")
)

// NATSConfig configures the NATS implementation.
type NATSConfig struct {
	URL     string
	Options []nats.Option
}

// NATS is a messaging implementation backed by core NATS.
type NATS struct {
	conn *nats.Conn

	mu     sync.Mutex
	closed bool
}

// NewNATS connects to the NATS server.
func NewNATS(cfg NATSConfig) (*NATS, error) {
	if cfg.URL == "" {
		return nil, ErrNATSURLRequired
	}

	conn, err := nats.Connect(cfg.URL, cfg.Options...)
	if err != nil {
		return nil, fmt.Errorf("messaging: nats connect: %w", err)
	}

	return &NATS{conn: conn}, nil
}

// Close drains the connection, letting in-flight handlers finish.
func (n *NATS) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true

	err := n.conn.Drain()
	n.conn.Close()
	return err
}

// Publish sends a message to a NATS subject and flushes it to the server.
func (n *NATS) Publish(ctx context.Context, destination string, msg OutgoingMessage) (PublishResult, error) {
	if destination == "" {
		return PublishResult{}, ErrNATSSubjectRequired
	}
	if msg.Delay > 0 {
		return PublishResult{}, ErrUnsupported
	}

	nmsg := nats.NewMsg(destination)
	nmsg.Data = msg.Body
	for _, h := range msg.Headers {
		if h.Key != "" {
			nmsg.Header.Add(h.Key, string(h.Value))
		}
	}

	if err := n.conn.PublishMsg(nmsg); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats publish: %w", err)
	}
	if err := n.conn.FlushWithContext(ctx); err != nil {
		return PublishResult{}, fmt.Errorf("messaging: nats flush: %w", err)
	}

	return PublishResult{Topic: destination, Timestamp: time.Now()}, nil
}

// Consume subscribes to a subject, inside a queue group when one is set, and
// fans messages out to the configured number of workers.
func (n *NATS) Consume(ctx context.Context, source string, handler Handler, opts ...ConsumeOption) error {
	if source == "" {
		return ErrNATSSubjectRequired
	}
	if handler == nil {
		return ErrHandlerRequired
	}

	n.mu.Lock()
	closed := n.closed
	n.mu.Unlock()
	if closed {
		return io.ErrClosedPipe
	}

	co := newConsumeOptions(opts...)
	msgCh := make(chan *nats.Msg, co.concurrency)

	sub, err := n.conn.QueueSubscribe(source, co.queueGroup, func(m *nats.Msg) {
		select {
		case msgCh <- m:
		case <-ctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("messaging: nats subscribe: %w", err)
	}

	var wg sync.WaitGroup
	for range co.concurrency {
		wg.Go(func() {
			for {
				select {
				case m := <-msgCh:
					dispatch(ctx, DriverNATS, handler, &natsMessage{msg: m, receivedAt: time.Now()}, co.autoAck)
				case <-ctx.Done():
					return
				}
			}
		})
	}

	<-ctx.Done()
	derr := sub.Drain()
	wg.Wait()

	return errors.Join(ctx.Err(), derr)
}

type natsMessage struct {
	msg        *nats.Msg
	receivedAt time.Time
	responded  atomic.Bool
}

func (m *natsMessage) Body() []byte { return m.msg.Data }
func (m *natsMessage) Key() []byte  { return nil }

func (m *natsMessage) Headers() []Header {
	var headers []Header
	for k, values := range m.msg.Header {
		for _, v := range values {
			headers = append(headers, Header{Key: k, Value: []byte(v)})
		}
	}
	return headers
}

func (m *natsMessage) ID() string           { return m.msg.Header.Get(nats.MsgIdHdr) }
func (m *natsMessage) Source() string       { return m.msg.Subject }
func (m *natsMessage) Timestamp() time.Time { return m.receivedAt }

// Ack and Nack are no-ops for core NATS messages without a reply subject.
func (m *natsMessage) Ack(context.Context) error {
	if m.responded.Swap(true) {
		return nil
	}
	return ignoreNATSNoReply(m.msg.Ack())
}

func (m *natsMessage) Nack(context.Context) error {
	if m.responded.Swap(true) {
		return nil
	}
	return ignoreNATSNoReply(m.msg.Nak())
}

func ignoreNATSNoReply(err error) error {
	if errors.Is(err, nats.ErrMsgNoReply) || errors.Is(err, nats.ErrMsgNotBound) {
		return nil
	}
	return err
}
